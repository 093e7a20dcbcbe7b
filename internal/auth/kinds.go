package auth

// ActorKind identifies the concrete kind of an authenticable principal.
type ActorKind string

const (
	KindCustomer   ActorKind = "customer"
	KindAdmin      ActorKind = "admin"
	KindTenantUser ActorKind = "tenant-user"
	KindTenantHub  ActorKind = "tenant-hub"
	KindAgencyUser ActorKind = "agency-user"
	KindAgencyHub  ActorKind = "agency-hub"

	// KindUnclassified is returned for unknown or missing kind markers.
	// Every consumer must treat it as unauthenticated.
	KindUnclassified ActorKind = ""
)

// TokenClass distinguishes access tokens from refresh tokens.
type TokenClass string

const (
	ClassAccess  TokenClass = "access"
	ClassRefresh TokenClass = "refresh"
)

// Family is the coarse grouping of actor kinds used to match a token
// against an endpoint group.
type Family string

const (
	FamilyCustomer Family = "customer"
	FamilyAdmin    Family = "admin"
	FamilyTenant   Family = "tenant"
	FamilyAgency   Family = "agency"

	FamilyNone Family = ""
)

var kindFamilies = map[ActorKind]Family{
	KindCustomer:   FamilyCustomer,
	KindAdmin:      FamilyAdmin,
	KindTenantUser: FamilyTenant,
	KindTenantHub:  FamilyTenant,
	KindAgencyUser: FamilyAgency,
	KindAgencyHub:  FamilyAgency,
}

// Family returns the endpoint-group family for the kind, or FamilyNone
// for unclassified kinds.
func (k ActorKind) Family() Family {
	return kindFamilies[k]
}

// IsHub reports whether the kind gains tenant access through delegation
// grants instead of a fixed tenant scope.
func (k ActorKind) IsHub() bool {
	return k == KindTenantHub || k == KindAgencyHub
}

// Valid reports whether the kind is one of the six concrete kinds.
func (k ActorKind) Valid() bool {
	_, ok := kindFamilies[k]
	return ok
}

// ClassifiedActor is the result of classifying a presented token.
type ClassifiedActor struct {
	Kind  ActorKind
	Class TokenClass
}

// Unauthenticated reports whether the classification must be treated as
// no authentication at all.
func (c ClassifiedActor) Unauthenticated() bool {
	return !c.Kind.Valid()
}

// Classify derives the actor kind and token class from verified claims.
// The decision is a pure function of the claims; request paths never
// participate, that is the scope filter's job. Unknown markers yield
// KindUnclassified.
func Classify(claims Claims) ClassifiedActor {
	kind := ActorKind(claims.ActorKind)
	if !kind.Valid() {
		return ClassifiedActor{Kind: KindUnclassified}
	}
	class := TokenClass(claims.TokenClass)
	if class != ClassAccess && class != ClassRefresh {
		return ClassifiedActor{Kind: KindUnclassified}
	}
	return ClassifiedActor{Kind: kind, Class: class}
}
