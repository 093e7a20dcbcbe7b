package auth

import (
	"context"
	"testing"
)

func TestDelegationHasPermissionForTenant(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	store.AddGrant("hub-1", "t-1")
	store.AddGrant("hub-1", "t-2")
	d := NewDelegation(store.Grants())

	ok, err := d.HasPermissionForTenant(ctx, "hub-1", "t-1")
	if err != nil {
		t.Fatalf("HasPermissionForTenant: %v", err)
	}
	if !ok {
		t.Fatal("granted pair reported false")
	}

	ok, err = d.HasPermissionForTenant(ctx, "hub-1", "t-9")
	if err != nil {
		t.Fatalf("HasPermissionForTenant: %v", err)
	}
	if ok {
		t.Fatal("ungranted tenant reported true")
	}
}

// An unknown hub and a grant-less hub must be indistinguishable: plain
// false, no error.
func TestDelegationUnknownHub(t *testing.T) {
	ctx := context.Background()
	d := NewDelegation(NewMemStore().Grants())

	for _, tenant := range []string{"t-1", "t-2", "t-3"} {
		ok, err := d.HasPermissionForTenant(ctx, "ghost-hub", tenant)
		if err != nil {
			t.Fatalf("HasPermissionForTenant(%s): %v", tenant, err)
		}
		if ok {
			t.Fatalf("unknown hub granted tenant %s", tenant)
		}
	}

	tenants, err := d.ListTenantsForHub(ctx, "ghost-hub")
	if err != nil {
		t.Fatalf("ListTenantsForHub: %v", err)
	}
	if len(tenants) != 0 {
		t.Fatalf("unknown hub listed tenants %v", tenants)
	}
}

func TestDelegationEmptyIDs(t *testing.T) {
	ctx := context.Background()
	d := NewDelegation(NewMemStore().Grants())

	if ok, err := d.HasPermissionForTenant(ctx, "", "t-1"); err != nil || ok {
		t.Fatalf("empty hub id = %v, %v", ok, err)
	}
	if ok, err := d.HasPermissionForTenant(ctx, "hub-1", ""); err != nil || ok {
		t.Fatalf("empty tenant id = %v, %v", ok, err)
	}
	if tenants, err := d.ListTenantsForHub(ctx, ""); err != nil || tenants != nil {
		t.Fatalf("empty hub list = %v, %v", tenants, err)
	}
}
