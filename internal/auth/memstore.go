package auth

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store. It backs single-instance deployments
// and tests; multi-instance deployments use PGStore so counters and
// single-use tokens are shared.
type MemStore struct {
	mu         sync.RWMutex
	principals map[string]*Principal // by id
	grants     map[string][]string   // hub id -> tenant ids
	tokens     map[string]*SingleUseToken
	counters   *MemCounterStore
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		principals: make(map[string]*Principal),
		grants:     make(map[string][]string),
		tokens:     make(map[string]*SingleUseToken),
		counters:   NewMemCounterStore(),
	}
}

func (s *MemStore) Directory() Directory                 { return (*memDirectory)(s) }
func (s *MemStore) Grants() GrantStore                   { return (*memGrantStore)(s) }
func (s *MemStore) SingleUseTokens() SingleUseTokenStore { return (*memTokenStore)(s) }
func (s *MemStore) FailureCounters() FailureCounterStore { return s.counters }

// AddPrincipal registers a principal record.
func (s *MemStore) AddPrincipal(p *Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.principals[p.ID] = &cp
}

// AddGrant records a delegation grant.
func (s *MemStore) AddGrant(hubID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[hubID] = append(s.grants[hubID], tenantID)
}

type memDirectory MemStore

func (s *memDirectory) FindByLoginID(_ context.Context, kind ActorKind, loginID string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.principals {
		if p.Kind == kind && p.LoginID == loginID && p.Status != StatusDeleted {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memDirectory) FindByLoginIDAndTenant(_ context.Context, loginID, tenantID string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.principals {
		if p.LoginID == loginID && p.TenantID == tenantID && p.Status != StatusDeleted {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memDirectory) FindByID(_ context.Context, principalID string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[principalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memDirectory) UpdateStatus(_ context.Context, principalID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	return nil
}

func (s *memDirectory) UpdateCredential(_ context.Context, principalID, credentialHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return ErrNotFound
	}
	p.CredentialHash = credentialHash
	return nil
}

type memGrantStore MemStore

func (s *memGrantStore) Exists(_ context.Context, hubID, tenantID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.grants[hubID] {
		if t == tenantID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memGrantStore) ListTenants(_ context.Context, hubID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.grants[hubID]))
	copy(out, s.grants[hubID])
	return out, nil
}

type memTokenStore MemStore

func (s *memTokenStore) Create(_ context.Context, tok *SingleUseToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.OwnerID == tok.OwnerID && t.Purpose == tok.Purpose {
			return ErrTokenExists
		}
	}
	cp := *tok
	s.tokens[tok.ID] = &cp
	return nil
}

func (s *memTokenStore) FindByValue(_ context.Context, value string) (*SingleUseToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.Value == value {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memTokenStore) FindByOwner(_ context.Context, ownerID string, purpose TokenPurpose) (*SingleUseToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.OwnerID == ownerID && t.Purpose == purpose {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memTokenStore) Replace(_ context.Context, id, newValue string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	t.Value = newValue
	t.ExpiresAt = expiresAt
	return nil
}

func (s *memTokenStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
	return nil
}
