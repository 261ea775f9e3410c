package auth

import "github.com/jroosing/pdnsadmin/internal/database"

// Permission item names as stored in perm_items.
const (
	PermUeberuser      = "user_is_ueberuser"
	PermZoneMasterAdd  = "zone_master_add"
	PermZoneSlaveAdd   = "zone_slave_add"
	PermViewOwn        = "zone_content_view_own"
	PermViewOthers     = "zone_content_view_others"
	PermEditOwn        = "zone_content_edit_own"
	PermEditOthers     = "zone_content_edit_others"
	PermMetaEditOwn    = "zone_meta_edit_own"
	PermMetaEditOthers = "zone_meta_edit_others"
	PermManageAPIKeys  = "api_manage_keys"
)

// Permissions is the set of permission items granted to a user.
type Permissions map[string]bool

// NewPermissions builds a set from item names.
func NewPermissions(items ...string) Permissions {
	p := make(Permissions, len(items))
	for _, item := range items {
		p[item] = true
	}
	return p
}

// IsUeberuser reports whether the user has full access.
func (p Permissions) IsUeberuser() bool { return p[PermUeberuser] }

// Has reports whether the item is granted. Ueberusers have every item.
func (p Permissions) Has(item string) bool {
	return p[PermUeberuser] || p[item]
}

// List returns the granted items in no particular order.
func (p Permissions) List() []string {
	out := make([]string, 0, len(p))
	for item, ok := range p {
		if ok {
			out = append(out, item)
		}
	}
	return out
}

// ZoneViewScope returns the zone listing scope: all, own or none.
func (p Permissions) ZoneViewScope() string {
	switch {
	case p.Has(PermViewOthers):
		return database.ScopeAll
	case p.Has(PermViewOwn):
		return database.ScopeOwn
	default:
		return database.ScopeNone
	}
}

// CanViewZone reports whether a zone's content may be viewed.
func (p Permissions) CanViewZone(owns bool) bool {
	return p.Has(PermViewOthers) || (owns && p.Has(PermViewOwn))
}

// CanEditZone reports whether records of a zone may be changed.
func (p Permissions) CanEditZone(owns bool) bool {
	return p.Has(PermEditOthers) || (owns && p.Has(PermEditOwn))
}

// CanEditZoneMeta reports whether zone metadata and DNSSEC keys may be changed.
func (p Permissions) CanEditZoneMeta(owns bool) bool {
	return p.Has(PermMetaEditOthers) || (owns && p.Has(PermMetaEditOwn))
}

// CanDeleteZone reports whether a zone may be deleted.
func (p Permissions) CanDeleteZone(owns bool) bool {
	return p.CanEditZone(owns)
}

// CanCreateZone reports whether zones of the given type may be added.
func (p Permissions) CanCreateZone(zoneType string) bool {
	switch zoneType {
	case "MASTER", "NATIVE":
		return p.Has(PermZoneMasterAdd)
	case "SLAVE":
		return p.Has(PermZoneSlaveAdd)
	default:
		return false
	}
}
