package store

import (
	"encoding/json"
	"time"
)

// Now returns the current time as epoch seconds, the timestamp format the
// stores use. A variable so tests can pin it.
var Now = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Instruction is one entry in the provisioning queue. Field names in the
// JSON form are fixed; external tooling reads these files.
type Instruction struct {
	// Target network
	SSID     string `json:"SSID"`
	Password string `json:"Password"`

	// Optional static addressing. StaticIP requires NetMask.
	StaticIP string `json:"StaticIP,omitempty"`
	NetMask  string `json:"NetMask,omitempty"`
	Gateway  string `json:"Gateway,omitempty"`

	// Optional device metadata applied during provisioning
	DeviceName string `json:"DeviceName,omitempty"`
	LatLng     string `json:"LatLng,omitempty"`
	TZ         string `json:"TZ,omitempty"`

	// Optional bookkeeping
	Group   string `json:"Group,omitempty"`
	Label   string `json:"Label,omitempty"`
	Tags    string `json:"Tags,omitempty"`
	ProbeIP string `json:"ProbeIP,omitempty"`
	Access  string `json:"Access,omitempty"`

	// Filled in as provisioning progresses
	ID          string `json:"ID,omitempty"`
	IP          string `json:"IP,omitempty"`
	FactorySSID string `json:"factory_ssid,omitempty"`
	Origin      string `json:"Origin,omitempty"`

	// Lifecycle timestamps, epoch seconds, non-decreasing in this order.
	// A zero value means the instruction has not reached that phase.
	InsertTime     float64 `json:"InsertTime,omitempty"`
	InProgressTime float64 `json:"InProgressTime,omitempty"`
	CompletedTime  float64 `json:"CompletedTime,omitempty"`
	ConfirmedTime  float64 `json:"ConfirmedTime,omitempty"`

	// Read-back state captured at confirmation
	Status   json.RawMessage `json:"status,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// Done reports whether the instruction has been fully processed.
// Completed instructions are never reprocessed.
func (in *Instruction) Done() bool {
	return in.CompletedTime != 0
}

// InGroup reports whether the instruction belongs to the given group.
// An empty group matches everything.
func (in *Instruction) InGroup(group string) bool {
	return group == "" || in.Group == group
}

// Queue is the ordered instruction list backed by one JSON file.
type Queue struct {
	Path         string
	Instructions []*Instruction
}

// LoadQueue reads the queue file. A missing file yields an empty queue.
func LoadQueue(path string) (*Queue, error) {
	q := &Queue{Path: path}
	if _, err := readJSON(path, &q.Instructions); err != nil {
		return nil, err
	}
	return q, nil
}

// Save rewrites the queue file atomically. Called at every provisioning
// checkpoint so a crash loses at most the in-flight instruction.
func (q *Queue) Save() error {
	return writeJSON(q.Path, q.Instructions)
}

// Pending returns the instructions in the group that have not completed,
// in queue order.
func (q *Queue) Pending(group string) []*Instruction {
	var out []*Instruction
	for _, in := range q.Instructions {
		if !in.Done() && in.InGroup(group) {
			out = append(out, in)
		}
	}
	return out
}

// Append adds validated instructions, stamping their insert time.
func (q *Queue) Append(instructions []*Instruction) {
	now := Now()
	for _, in := range instructions {
		in.InsertTime = now
		q.Instructions = append(q.Instructions, in)
	}
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.Instructions = nil
}
