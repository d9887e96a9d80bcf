package ugi

import (
	"fmt"
	"os/user"
	"slices"
)

// GroupMapping resolves the groups a user belongs to.
type GroupMapping interface {
	Groups(username string) ([]string, error)
}

// GroupMappingConfig selects and configures the group mapping.
type GroupMappingConfig struct {
	// Type is "os" (local account database) or "static".
	Type string `mapstructure:"type" yaml:"type" json:"type,omitempty" validate:"omitempty,oneof=os static"`

	// Static maps user names to groups for the static mapping. The first
	// group listed is the user's primary group.
	Static map[string][]string `mapstructure:"static" yaml:"static,omitempty" json:"static,omitempty"`
}

// NewGroupMapping builds the mapping described by cfg.
func NewGroupMapping(cfg GroupMappingConfig) (GroupMapping, error) {
	switch cfg.Type {
	case "", "os":
		return OSGroupMapping{}, nil
	case "static":
		return StaticGroupMapping(cfg.Static), nil
	default:
		return nil, fmt.Errorf("unknown group mapping type %q", cfg.Type)
	}
}

// StaticGroupMapping resolves groups from a fixed table. Unknown users have
// no groups.
type StaticGroupMapping map[string][]string

func (m StaticGroupMapping) Groups(username string) ([]string, error) {
	return slices.Clone(m[username]), nil
}

// OSGroupMapping resolves groups from the local account database, primary
// group first.
type OSGroupMapping struct{}

func (OSGroupMapping) Groups(username string) ([]string, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, err
	}

	gids, err := u.GroupIds()
	if err != nil {
		return nil, err
	}

	// Primary group first, then supplementary groups in lookup order.
	slices.SortStableFunc(gids, func(a, b string) int {
		switch {
		case a == u.Gid && b != u.Gid:
			return -1
		case b == u.Gid && a != u.Gid:
			return 1
		}
		return 0
	})

	groups := make([]string, 0, len(gids))
	for _, gid := range gids {
		g, err := user.LookupGroupId(gid)
		if err != nil {
			continue
		}
		if !slices.Contains(groups, g.Name) {
			groups = append(groups, g.Name)
		}
	}
	return groups, nil
}
