package domain

import (
	"fmt"
	"sort"
)

// Role of a participant.
type Role string

const (
	RoleNone    Role = ""
	RoleManager Role = "manager"
	RoleDriver  Role = "driver"
)

// Identity is a resolved participant.
type Identity struct {
	ID   int64
	Role Role
	Name string
}

// Member is one roster entry.
type Member struct {
	ID   int64
	Name string
}

// RoleDirectory maps participant ids to role and display name.
// It is built once at startup and never mutated.
type RoleDirectory struct {
	managers map[int64]string
	drivers  map[int64]string
}

// NewRoleDirectory copies the two rosters. The sets must be disjoint and
// names non-empty.
func NewRoleDirectory(managers, drivers map[int64]string) (*RoleDirectory, error) {
	d := &RoleDirectory{
		managers: make(map[int64]string, len(managers)),
		drivers:  make(map[int64]string, len(drivers)),
	}
	for id, name := range managers {
		if name == "" {
			return nil, fmt.Errorf("manager %d has empty name", id)
		}
		d.managers[id] = name
	}
	for id, name := range drivers {
		if name == "" {
			return nil, fmt.Errorf("driver %d has empty name", id)
		}
		if _, dup := d.managers[id]; dup {
			return nil, fmt.Errorf("participant %d is listed as both manager and driver", id)
		}
		d.drivers[id] = name
	}
	return d, nil
}

// Lookup resolves a participant. Unknown ids get RoleNone.
func (d *RoleDirectory) Lookup(id int64) Identity {
	if name, ok := d.managers[id]; ok {
		return Identity{ID: id, Role: RoleManager, Name: name}
	}
	if name, ok := d.drivers[id]; ok {
		return Identity{ID: id, Role: RoleDriver, Name: name}
	}
	return Identity{ID: id, Role: RoleNone}
}

// ManagerName returns the manager's display name.
func (d *RoleDirectory) ManagerName(id int64) (string, bool) {
	name, ok := d.managers[id]
	return name, ok
}

// DriverName returns the driver's display name.
func (d *RoleDirectory) DriverName(id int64) (string, bool) {
	name, ok := d.drivers[id]
	return name, ok
}

// Managers returns managers ordered by id.
func (d *RoleDirectory) Managers() []Member { return sortedMembers(d.managers) }

// Drivers returns drivers ordered by id.
func (d *RoleDirectory) Drivers() []Member { return sortedMembers(d.drivers) }

func sortedMembers(m map[int64]string) []Member {
	out := make([]Member, 0, len(m))
	for id, name := range m {
		out = append(out, Member{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
