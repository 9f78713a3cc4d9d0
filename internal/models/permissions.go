package models

import "sort"

// Permission is a single capability flag
type Permission string

const (
	PermViewEvents      Permission = "view_events"
	PermCreateEvents    Permission = "create_events"
	PermEditOwnEvents   Permission = "edit_own_events"
	PermEditAllEvents   Permission = "edit_all_events"
	PermDeleteOwnEvents Permission = "delete_own_events"
	PermDeleteAllEvents Permission = "delete_all_events"
	PermViewUsers       Permission = "view_users"
	PermEditOwnProfile  Permission = "edit_own_profile"
	PermEditAllProfiles Permission = "edit_all_profiles"
	PermModerateContent Permission = "moderate_content"
	PermManageUsers     Permission = "manage_users"
	PermSystemAdmin     Permission = "system_admin"
	PermPromoteEvents   Permission = "promote_events"
	PermAccessAnalytics Permission = "access_analytics"
)

var allPermissions = []Permission{
	PermViewEvents, PermCreateEvents, PermEditOwnEvents, PermEditAllEvents,
	PermDeleteOwnEvents, PermDeleteAllEvents, PermViewUsers, PermEditOwnProfile,
	PermEditAllProfiles, PermModerateContent, PermManageUsers, PermSystemAdmin,
	PermPromoteEvents, PermAccessAnalytics,
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

func newPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func (s PermissionSet) union(perms ...Permission) PermissionSet {
	out := make(PermissionSet, len(s)+len(perms))
	for p := range s {
		out[p] = struct{}{}
	}
	for _, p := range perms {
		out[p] = struct{}{}
	}
	return out
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the permissions in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var rolePermissions = func() map[Role]PermissionSet {
	resident := newPermissionSet(
		PermViewEvents, PermCreateEvents, PermEditOwnEvents,
		PermDeleteOwnEvents, PermViewUsers, PermEditOwnProfile,
	)
	organizer := resident.union(PermPromoteEvents, PermAccessAnalytics)
	return map[Role]PermissionSet{
		RoleResident:        resident,
		RoleBusinessOwner:   resident.union(PermPromoteEvents, PermAccessAnalytics),
		RoleEventOrganizer:  organizer,
		RoleCommunityLeader: organizer.union(PermModerateContent, PermEditAllEvents),
		RoleAdmin:           newPermissionSet(allPermissions...),
	}
}()

// PermissionsFor returns the capability set of a role. Unknown roles get an empty set.
func PermissionsFor(r Role) PermissionSet {
	if s, ok := rolePermissions[r]; ok {
		return s.union()
	}
	return PermissionSet{}
}

// Can reports whether the role grants p.
func (r Role) Can(p Permission) bool {
	return rolePermissions[r].Has(p)
}
