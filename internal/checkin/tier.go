package checkin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnmappedRole means a configured role names no known tier.
	ErrUnmappedRole = errors.New("role does not map to a check-in tier")
	// ErrUnmappedTier means a tier has no configured reward value.
	ErrUnmappedTier = errors.New("check-in tier has no reward value")
)

// Tier is a role-based check-in reward class, ordered lowest to highest.
type Tier int

const (
	TierNew Tier = iota
	TierVerified
	TierCitizen
	TierSquire
	TierKnight
	TierNoble
	TierMonarch
	TierBearer
)

// AllTiers lists every tier, lowest first.
var AllTiers = []Tier{
	TierNew,
	TierVerified,
	TierCitizen,
	TierSquire,
	TierKnight,
	TierNoble,
	TierMonarch,
	TierBearer,
}

func (t Tier) String() string {
	switch t {
	case TierNew:
		return "new"
	case TierVerified:
		return "verified"
	case TierCitizen:
		return "citizen"
	case TierSquire:
		return "squire"
	case TierKnight:
		return "knight"
	case TierNoble:
		return "noble"
	case TierMonarch:
		return "monarch"
	case TierBearer:
		return "bearer"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Action is the reward table entry holding the tier's check-in value.
func (t Tier) Action() (string, error) {
	if t < TierNew || t > TierBearer {
		return "", fmt.Errorf("%w: %s", ErrUnmappedTier, t)
	}
	return "checkin_" + t.String(), nil
}

// ParseTier parses a tier name such as "knight".
func ParseTier(name string) (Tier, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range AllTiers {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnmappedRole, name)
}

// TierTable maps Discord role IDs to tiers.
type TierTable struct {
	roles map[string]Tier
}

// NewTierTable validates a role ID -> tier name mapping. Any entry that does
// not resolve to exactly one tier rejects the whole table.
func NewTierTable(roleTiers map[string]string) (*TierTable, error) {
	roleIDs := make([]string, 0, len(roleTiers))
	for roleID := range roleTiers {
		roleIDs = append(roleIDs, roleID)
	}
	sort.Strings(roleIDs)

	roles := make(map[string]Tier, len(roleTiers))
	for _, roleID := range roleIDs {
		tier, err := ParseTier(roleTiers[roleID])
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", roleID, err)
		}
		roles[roleID] = tier
	}
	return &TierTable{roles: roles}, nil
}

// Resolve returns the highest tier among the given roles, or TierNew when
// none of them is mapped.
func (tt *TierTable) Resolve(roles []string) Tier {
	best := TierNew
	for _, roleID := range roles {
		if tier, ok := tt.roles[roleID]; ok && tier > best {
			best = tier
		}
	}
	return best
}
