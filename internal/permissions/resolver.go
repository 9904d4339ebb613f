package permissions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Resolver computes a user's effective permissions from the Store.
type Resolver struct {
	store Store
	now   func() time.Time
}

// NewResolver constructs a Resolver over store.
func NewResolver(store Store) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("permission resolver: store is required")
	}
	return &Resolver{store: store, now: time.Now}, nil
}

// Resolve loads the active user, the grants of their role and the effective
// permissions of every team they belong to. Caching is the caller's concern.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*ResolvedSet, error) {
	ctx = ensureContext(ctx)

	userID = normaliseID(userID)
	if userID == "" {
		return nil, ErrUserNotFound
	}

	user, err := r.store.ActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	roleGrants := make(map[string][]string)
	grantsFor := func(role string) ([]string, error) {
		if names, ok := roleGrants[role]; ok {
			return names, nil
		}
		names, err := r.store.RolePermissions(ctx, role)
		if err != nil {
			return nil, err
		}
		roleGrants[role] = names
		return names, nil
	}

	global, err := grantsFor(user.Role)
	if err != nil {
		return nil, fmt.Errorf("permission resolver: %w", err)
	}

	// Per-user overrides would be layered here; none are stored yet.

	memberships, err := r.store.TeamMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("permission resolver: %w", err)
	}

	teams := make(map[string]Set, len(memberships))
	for _, membership := range memberships {
		names, err := grantsFor(membership.Role)
		if err != nil {
			return nil, fmt.Errorf("permission resolver: team %s: %w", membership.TeamID, err)
		}
		custom, err := decodeCustomPermissions(membership.Permissions)
		if err != nil {
			return nil, fmt.Errorf("permission resolver: team %s custom permissions: %w", membership.TeamID, err)
		}

		set := NewSet(names...)
		set.Add(custom...)
		teams[membership.TeamID] = set
	}

	return &ResolvedSet{
		UserID:          user.ID,
		Role:            user.Role,
		Permissions:     NewSet(global...),
		TeamPermissions: teams,
		ResolvedAt:      r.now(),
	}, nil
}

func decodeCustomPermissions(raw []byte) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, err
	}
	return names, nil
}
