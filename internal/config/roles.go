package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Desteles/deli-pwa-app/internal/domain"
)

// RosterFile is the layout of ROLES_FILE.
//
//	managers:
//	  - id: 597890387
//	    name: Olga
//	drivers:
//	  - id: 8293490412
//	    name: Jane
type RosterFile struct {
	Managers []RosterEntry `yaml:"managers"`
	Drivers  []RosterEntry `yaml:"drivers"`
}

type RosterEntry struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// BuildDirectory builds the role directory from ROLES_FILE, or from the
// MANAGERS and DRIVERS lists when no file is configured.
func (c *Config) BuildDirectory() (*domain.RoleDirectory, error) {
	var managers, drivers map[int64]string
	if c.Roles.File != "" {
		raw, err := os.ReadFile(c.Roles.File)
		if err != nil {
			return nil, fmt.Errorf("read roles file: %w", err)
		}
		managers, drivers, err = parseRoster(raw)
		if err != nil {
			return nil, fmt.Errorf("parse roles file %s: %w", c.Roles.File, err)
		}
	} else {
		var err error
		if managers, err = parseMembers(c.Roles.Managers); err != nil {
			return nil, fmt.Errorf("MANAGERS: %w", err)
		}
		if drivers, err = parseMembers(c.Roles.Drivers); err != nil {
			return nil, fmt.Errorf("DRIVERS: %w", err)
		}
	}
	return domain.NewRoleDirectory(managers, drivers)
}

func parseRoster(raw []byte) (map[int64]string, map[int64]string, error) {
	var f RosterFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, nil, err
	}
	managers, err := entriesToMap(f.Managers)
	if err != nil {
		return nil, nil, fmt.Errorf("managers: %w", err)
	}
	drivers, err := entriesToMap(f.Drivers)
	if err != nil {
		return nil, nil, fmt.Errorf("drivers: %w", err)
	}
	return managers, drivers, nil
}

func entriesToMap(entries []RosterEntry) (map[int64]string, error) {
	out := make(map[int64]string, len(entries))
	for _, e := range entries {
		if e.ID == 0 {
			return nil, fmt.Errorf("entry %q has no id", e.Name)
		}
		if _, dup := out[e.ID]; dup {
			return nil, fmt.Errorf("duplicate id %d", e.ID)
		}
		out[e.ID] = strings.TrimSpace(e.Name)
	}
	return out, nil
}

// parseMembers reads "id:Name,id:Name".
func parseMembers(s string) (map[int64]string, error) {
	out := map[int64]string{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		idPart, name, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q is not id:Name", item)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", item, err)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("duplicate id %d", id)
		}
		out[id] = strings.TrimSpace(name)
	}
	return out, nil
}
