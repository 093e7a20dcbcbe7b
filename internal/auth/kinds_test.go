package auth

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		kind  string
		class string
		want  ClassifiedActor
	}{
		{"customer access", "customer", "access", ClassifiedActor{KindCustomer, ClassAccess}},
		{"admin access", "admin", "access", ClassifiedActor{KindAdmin, ClassAccess}},
		{"tenant user refresh", "tenant-user", "refresh", ClassifiedActor{KindTenantUser, ClassRefresh}},
		{"tenant hub access", "tenant-hub", "access", ClassifiedActor{KindTenantHub, ClassAccess}},
		{"agency user access", "agency-user", "access", ClassifiedActor{KindAgencyUser, ClassAccess}},
		{"agency hub refresh", "agency-hub", "refresh", ClassifiedActor{KindAgencyHub, ClassRefresh}},
		{"unknown kind", "superuser", "access", ClassifiedActor{Kind: KindUnclassified}},
		{"missing kind", "", "access", ClassifiedActor{Kind: KindUnclassified}},
		{"unknown class", "customer", "session", ClassifiedActor{Kind: KindUnclassified}},
		{"missing class", "customer", "", ClassifiedActor{Kind: KindUnclassified}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(Claims{ActorKind: tc.kind, TokenClass: tc.class})
			if got != tc.want {
				t.Fatalf("Classify = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestClassifyUnknownIsUnauthenticated(t *testing.T) {
	got := Classify(Claims{ActorKind: "robot", TokenClass: "access"})
	if !got.Unauthenticated() {
		t.Fatalf("unknown marker classified as %+v", got)
	}
}

func TestKindFamilies(t *testing.T) {
	cases := map[ActorKind]Family{
		KindCustomer:   FamilyCustomer,
		KindAdmin:      FamilyAdmin,
		KindTenantUser: FamilyTenant,
		KindTenantHub:  FamilyTenant,
		KindAgencyUser: FamilyAgency,
		KindAgencyHub:  FamilyAgency,
	}
	for kind, family := range cases {
		if got := kind.Family(); got != family {
			t.Errorf("%s.Family() = %q, want %q", kind, got, family)
		}
	}
	if got := KindUnclassified.Family(); got != FamilyNone {
		t.Errorf("unclassified family = %q", got)
	}
}

func TestIsHub(t *testing.T) {
	for _, kind := range []ActorKind{KindTenantHub, KindAgencyHub} {
		if !kind.IsHub() {
			t.Errorf("%s.IsHub() = false", kind)
		}
	}
	for _, kind := range []ActorKind{KindCustomer, KindAdmin, KindTenantUser, KindAgencyUser, KindUnclassified} {
		if kind.IsHub() {
			t.Errorf("%s.IsHub() = true", kind)
		}
	}
}
