package store

import (
	"fmt"
	"sort"

	"github.com/wclark/autoprov/internal/ddwrt"
)

// RouterDB is the control-device profile store, keyed by device name.
// Profiles are written by the learn operation and read-only to the
// provisioning engine.
type RouterDB struct {
	Path    string
	Routers map[string]*ddwrt.Router
}

// LoadRouters reads the profile store. A missing file yields an empty
// store.
func LoadRouters(path string) (*RouterDB, error) {
	db := &RouterDB{Path: path, Routers: make(map[string]*ddwrt.Router)}
	if _, err := readJSON(path, &db.Routers); err != nil {
		return nil, err
	}
	if db.Routers == nil {
		db.Routers = make(map[string]*ddwrt.Router)
	}
	return db, nil
}

// Save rewrites the profile store atomically.
func (db *RouterDB) Save() error {
	return writeJSON(db.Path, db.Routers)
}

// Put stores a profile under its name.
func (db *RouterDB) Put(router *ddwrt.Router) {
	db.Routers[router.Name] = router
}

// Get returns the profile for a name, or an error naming the store so the
// operator knows where to look.
func (db *RouterDB) Get(name string) (*ddwrt.Router, error) {
	r, ok := db.Routers[name]
	if !ok {
		return nil, fmt.Errorf("no control device named %q in %s (run ddwrt-learn first)", name, db.Path)
	}
	return r, nil
}

// All returns every profile sorted by name.
func (db *RouterDB) All() []*ddwrt.Router {
	names := make([]string, 0, len(db.Routers))
	for name := range db.Routers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*ddwrt.Router, 0, len(names))
	for _, name := range names {
		out = append(out, db.Routers[name])
	}
	return out
}
