package auth

import "context"

// Delegation answers "may this hub act on this tenant" from the grant
// store. It is a pure authorization query: no caching, so a grant change
// is visible on the next request. Token scope checks are a separate
// concern handled by the scope filter.
type Delegation struct {
	grants GrantStore
}

// NewDelegation constructs the service over a grant store.
func NewDelegation(grants GrantStore) *Delegation {
	return &Delegation{grants: grants}
}

// HasPermissionForTenant reports whether a grant relates the hub to the
// tenant. A hub with no grants and a hub id that does not exist both
// return plain false; callers must not be able to tell the two apart.
func (d *Delegation) HasPermissionForTenant(ctx context.Context, hubID, tenantID string) (bool, error) {
	if hubID == "" || tenantID == "" {
		return false, nil
	}
	return d.grants.Exists(ctx, hubID, tenantID)
}

// ListTenantsForHub returns the tenant ids the hub is delegated to act
// on. An unknown hub yields an empty list, not an error.
func (d *Delegation) ListTenantsForHub(ctx context.Context, hubID string) ([]string, error) {
	if hubID == "" {
		return nil, nil
	}
	return d.grants.ListTenants(ctx, hubID)
}
