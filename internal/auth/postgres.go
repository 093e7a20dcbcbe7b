package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Directory() Directory                 { return &pgDirectory{db: s.db} }
func (s *PGStore) Grants() GrantStore                   { return &pgGrantStore{db: s.db} }
func (s *PGStore) SingleUseTokens() SingleUseTokenStore { return &pgTokenStore{db: s.db} }
func (s *PGStore) FailureCounters() FailureCounterStore { return &pgCounterStore{db: s.db} }

// Principal directory -------------------------------------------------------
type pgDirectory struct{ db *sql.DB }

const principalColumns = `id, kind, login_id, credential_hash, status, authorities, tenant_id, created_at, updated_at`

func scanPrincipal(row *sql.Row) (*Principal, error) {
	var (
		p           Principal
		authorities []byte
		tenantID    sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Kind, &p.LoginID, &p.CredentialHash, &p.Status, &authorities, &tenantID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(authorities) > 0 {
		if err := json.Unmarshal(authorities, &p.Authorities); err != nil {
			return nil, fmt.Errorf("auth: decode authorities for %s: %w", p.ID, err)
		}
	}
	p.TenantID = tenantID.String
	return &p, nil
}

func (s *pgDirectory) FindByLoginID(ctx context.Context, kind ActorKind, loginID string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where kind=$1 and login_id=$2 and status <> 'deleted'`,
		kind, loginID,
	)
	return scanPrincipal(row)
}

func (s *pgDirectory) FindByLoginIDAndTenant(ctx context.Context, loginID, tenantID string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where login_id=$1 and tenant_id=$2 and status <> 'deleted'`,
		loginID, tenantID,
	)
	return scanPrincipal(row)
}

func (s *pgDirectory) FindByID(ctx context.Context, principalID string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+principalColumns+` from principals where id=$1`, principalID,
	)
	return scanPrincipal(row)
}

func (s *pgDirectory) UpdateStatus(ctx context.Context, principalID string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`update principals set status=$2, updated_at=now() where id=$1`, principalID, status,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgDirectory) UpdateCredential(ctx context.Context, principalID, credentialHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update principals set credential_hash=$2, updated_at=now() where id=$1`, principalID, credentialHash,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delegation grants ---------------------------------------------------------
type pgGrantStore struct{ db *sql.DB }

func (s *pgGrantStore) Exists(ctx context.Context, hubID, tenantID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from delegation_grants where hub_id=$1 and tenant_id=$2)`,
		hubID, tenantID,
	).Scan(&exists)
	return exists, err
}

func (s *pgGrantStore) ListTenants(ctx context.Context, hubID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select tenant_id from delegation_grants where hub_id=$1 order by created_at`, hubID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

// Single-use tokens ---------------------------------------------------------
type pgTokenStore struct{ db *sql.DB }

const tokenColumns = `id, value, owner_id, owner_kind, purpose, expires_at, created_at`

func (s *pgTokenStore) Create(ctx context.Context, tok *SingleUseToken) error {
	// The unique (owner_id, purpose) index enforces the one-live-token
	// invariant even under concurrent issue calls.
	_, err := s.db.ExecContext(ctx,
		`insert into single_use_tokens(id, value, owner_id, owner_kind, purpose, expires_at)
		 values($1,$2,$3,$4,$5,$6)`,
		tok.ID, tok.Value, tok.OwnerID, tok.OwnerKind, tok.Purpose, tok.ExpiresAt,
	)
	return err
}

func scanToken(row *sql.Row) (*SingleUseToken, error) {
	var t SingleUseToken
	if err := row.Scan(&t.ID, &t.Value, &t.OwnerID, &t.OwnerKind, &t.Purpose, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *pgTokenStore) FindByValue(ctx context.Context, value string) (*SingleUseToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from single_use_tokens where value=$1`, value,
	)
	return scanToken(row)
}

func (s *pgTokenStore) FindByOwner(ctx context.Context, ownerID string, purpose TokenPurpose) (*SingleUseToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from single_use_tokens where owner_id=$1 and purpose=$2`, ownerID, purpose,
	)
	return scanToken(row)
}

func (s *pgTokenStore) Replace(ctx context.Context, id, newValue string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update single_use_tokens set value=$2, expires_at=$3 where id=$1`, id, newValue, expiresAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgTokenStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from single_use_tokens where id=$1`, id)
	return err
}

// Login failure counters ----------------------------------------------------
type pgCounterStore struct{ db *sql.DB }

func (s *pgCounterStore) Increment(ctx context.Context, addr string, at, staleBefore time.Time) (FailureRecord, error) {
	// Single upsert so the increment is atomic at the row level. A row
	// whose last failure aged past staleBefore restarts at 1.
	row := s.db.QueryRowContext(ctx,
		`insert into login_failures(addr, count, last_failure) values($1, 1, $2)
		 on conflict (addr) do update set
		   count = case when login_failures.last_failure < $3 then 1 else login_failures.count + 1 end,
		   last_failure = $2
		 returning addr, count, last_failure`,
		addr, at, staleBefore,
	)
	var rec FailureRecord
	if err := row.Scan(&rec.Addr, &rec.Count, &rec.LastFailure); err != nil {
		return FailureRecord{}, err
	}
	return rec, nil
}

func (s *pgCounterStore) Get(ctx context.Context, addr string) (FailureRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select addr, count, last_failure from login_failures where addr=$1`, addr,
	)
	var rec FailureRecord
	if err := row.Scan(&rec.Addr, &rec.Count, &rec.LastFailure); err != nil {
		if err == sql.ErrNoRows {
			return FailureRecord{}, ErrNotFound
		}
		return FailureRecord{}, err
	}
	return rec, nil
}

func (s *pgCounterStore) Reset(ctx context.Context, addr string) error {
	_, err := s.db.ExecContext(ctx, `delete from login_failures where addr=$1`, addr)
	return err
}
