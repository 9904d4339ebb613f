package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Definition describes one catalog permission.
type Definition struct {
	Name        string
	Category    string
	Description string
}

// Catalog is the set of known permissions plus the grants seeded for built-in roles.
type Catalog struct {
	Definitions []Definition
	RoleGrants  map[string][]string
}

// Built-in role names.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleAuthor = "author"
	RoleViewer = "viewer"
)

var (
	errEmptyName       = errors.New("permission catalog: name is required")
	errDuplicateName   = errors.New("permission catalog: duplicate name")
	errUnknownGrant    = errors.New("permission catalog: grant references unknown permission")
	errMissingCategory = errors.New("permission catalog: category is required")
)

// DefaultCatalog returns the CMS permission catalog.
func DefaultCatalog() Catalog {
	defs := []Definition{
		{"content.read", "content", "View content entries"},
		{"content.create", "content", "Create content entries"},
		{"content.update", "content", "Edit content entries"},
		{"content.delete", "content", "Delete content entries"},
		{"content.publish", "content", "Publish and unpublish content"},

		{"collections.read", "collections", "View collection schemas"},
		{"collections.create", "collections", "Create collections"},
		{"collections.update", "collections", "Modify collection schemas"},
		{"collections.delete", "collections", "Delete collections"},

		{"media.read", "media", "Browse the media library"},
		{"media.upload", "media", "Upload media"},
		{"media.update", "media", "Edit media metadata"},
		{"media.delete", "media", "Delete media"},

		{"users.read", "users", "View users"},
		{"users.create", "users", "Create users"},
		{"users.update", "users", "Edit users, roles and status"},
		{"users.delete", "users", "Delete users"},

		{"teams.read", "teams", "View teams and members"},
		{"teams.manage", "teams", "Manage teams and memberships"},

		{"permissions.read", "permissions", "View permissions and role grants"},
		{"permissions.manage", "permissions", "Change role grants and resync the catalog"},

		{"activity.read", "activity", "View the activity log"},
		{"activity.export", "activity", "Export the activity log"},

		{"plugins.read", "plugins", "View installed plugins"},
		{"plugins.manage", "plugins", "Install, configure and remove plugins"},

		{"settings.read", "settings", "View system settings"},
		{"settings.update", "settings", "Change system settings"},

		{"workflow.read", "workflow", "View workflow states"},
		{"workflow.transition", "workflow", "Move content between workflow states"},
		{"workflow.manage", "workflow", "Configure workflows"},
	}

	all := make([]string, 0, len(defs))
	for _, def := range defs {
		all = append(all, def.Name)
	}

	return Catalog{
		Definitions: defs,
		RoleGrants: map[string][]string{
			RoleAdmin: all,
			RoleEditor: {
				"content.read", "content.create", "content.update", "content.delete", "content.publish",
				"media.read", "media.upload", "media.update", "media.delete",
				"collections.read",
				"workflow.read", "workflow.transition", "workflow.manage",
			},
			RoleAuthor: {
				"content.read", "content.create", "content.update",
				"media.read", "media.upload",
			},
			RoleViewer: {"content.read", "media.read"},
		},
	}
}

// Validate checks names are unique and every grant refers to a defined permission.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c.Definitions))
	for _, def := range c.Definitions {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return errEmptyName
		}
		if strings.TrimSpace(def.Category) == "" {
			return fmt.Errorf("%w: %s", errMissingCategory, name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", errDuplicateName, name)
		}
		seen[name] = struct{}{}
	}

	for role, grants := range c.RoleGrants {
		for _, grant := range grants {
			if _, ok := seen[grant]; !ok {
				return fmt.Errorf("%w: %s grants %s", errUnknownGrant, role, grant)
			}
		}
	}
	return nil
}

// Names returns every defined permission name, sorted.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Definitions))
	for _, def := range c.Definitions {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names
}

// Roles returns the roles with seeded grants, sorted.
func (c Catalog) Roles() []string {
	roles := make([]string, 0, len(c.RoleGrants))
	for role := range c.RoleGrants {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
