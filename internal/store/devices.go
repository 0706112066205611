package store

// DeviceDB is the record store for provisioned devices, keyed by hardware
// identity (MAC). One complete record is written per successfully
// confirmed instruction; a prior record for the same device is replaced
// but its import-time metadata survives inside the new instruction copy.
type DeviceDB struct {
	Path    string
	Records map[string]*Instruction
}

// LoadDevices reads the device database. A missing file yields an empty
// database.
func LoadDevices(path string) (*DeviceDB, error) {
	db := &DeviceDB{Path: path, Records: make(map[string]*Instruction)}
	if _, err := readJSON(path, &db.Records); err != nil {
		return nil, err
	}
	if db.Records == nil {
		db.Records = make(map[string]*Instruction)
	}
	return db, nil
}

// Save rewrites the device database atomically.
func (db *DeviceDB) Save() error {
	return writeJSON(db.Path, db.Records)
}

// Put stores a record under the device's hardware identity.
func (db *DeviceDB) Put(mac string, rec *Instruction) {
	db.Records[mac] = rec
}

// Get returns the record for a device, or nil.
func (db *DeviceDB) Get(mac string) *Instruction {
	return db.Records[mac]
}
