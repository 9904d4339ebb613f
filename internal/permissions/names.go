package permissions

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrUserNotFound is returned when the resolution target does not exist or is inactive.
var ErrUserNotFound = errors.New("permissions: user not found")

// Name is a permission name such as "content.publish". Keeping it distinct from
// plain strings stops user ids and role names from being compared against it by accident.
type Name string

func (n Name) String() string { return string(n) }

// Set is an unordered collection of permission names.
type Set map[Name]struct{}

// NewSet builds a set from plain strings, skipping blanks.
func NewSet(names ...string) Set {
	set := make(Set, len(names))
	set.Add(names...)
	return set
}

// Add inserts names into the set.
func (s Set) Add(names ...string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s[Name(name)] = struct{}{}
	}
}

// Has reports whether name is present.
func (s Set) Has(name Name) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members sorted alphabetically.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a JSON array of names.
func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSet(names...)
	return nil
}

// ResolvedSet is the effective permission state of one user at ResolvedAt.
// Values handed out by a Cache are shared and must be treated as read-only.
type ResolvedSet struct {
	UserID          string         `json:"user_id"`
	Role            string         `json:"role"`
	Permissions     Set            `json:"permissions"`
	TeamPermissions map[string]Set `json:"team_permissions"`
	ResolvedAt      time.Time      `json:"resolved_at"`
}

// Allows evaluates a single permission. The global set is consulted first; when it
// misses and teamID names a team the user belongs to, the team set alone decides.
func (r *ResolvedSet) Allows(name Name, teamID string) bool {
	if r == nil {
		return false
	}
	if r.Permissions.Has(name) {
		return true
	}
	if teamID == "" {
		return false
	}
	if team, ok := r.TeamPermissions[teamID]; ok {
		return team.Has(name)
	}
	return false
}

// TeamIDs returns the ids of teams with resolved permissions, sorted.
func (r *ResolvedSet) TeamIDs() []string {
	ids := make([]string, 0, len(r.TeamPermissions))
	for id := range r.TeamPermissions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
