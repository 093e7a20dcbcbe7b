package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"tavolo.org/internal/audit"
	"tavolo.org/internal/auth"
	"tavolo.org/internal/obs"
)

type loginRequest struct {
	LoginID    string `json:"login_id"`
	Credential string `json:"credential"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type switchRequest struct {
	TenantID string `json:"tenant_id"`
}

type confirmRequest struct {
	Token string `json:"token"`
}

type forgotRequest struct {
	Kind    string `json:"kind"`
	LoginID string `json:"login_id"`
}

type resetRequest struct {
	Token      string `json:"token"`
	Credential string `json:"credential"`
}

type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func pairResponse(pair auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

// loginHandler authenticates a single-record principal kind. All credential
// failures collapse to one 401 body so the endpoint cannot be used to probe
// which accounts exist.
func (a *API) loginHandler(kind auth.ActorKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		pair, err := a.auth.Login(r.Context(), kind, req.LoginID, req.Credential, clientIP(r))
		a.finishLogin(w, r, kind, req.LoginID, pair, err)
	}
}

// loginHubHandler authenticates a hub principal. When the hub is delegated
// to exactly one tenant the response carries tenant-scoped tokens and the
// caller never sees the hub state.
func (a *API) loginHubHandler(kind auth.ActorKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		pair, err := a.auth.LoginHub(r.Context(), kind, req.LoginID, req.Credential, clientIP(r))
		a.finishLogin(w, r, kind, req.LoginID, pair, err)
	}
}

func (a *API) finishLogin(w http.ResponseWriter, r *http.Request, kind auth.ActorKind, loginID string, pair auth.TokenPair, err error) {
	switch {
	case err == nil:
		obs.CountLogin(string(kind), "success")
		obs.CountTokenIssued(string(kind), "access")
		obs.CountTokenIssued(string(kind), "refresh")
		_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
			"kind":     string(kind),
			"login_id": loginID,
		})
		writeJSON(w, http.StatusOK, pairResponse(pair))
	case errors.Is(err, auth.ErrBlockedSource):
		obs.CountLogin(string(kind), "blocked")
		obs.CountBlockedSource()
		respondError(w, http.StatusTooManyRequests, "too many failed attempts")
	case errors.Is(err, auth.ErrBadCredentials):
		obs.CountLogin(string(kind), "failure")
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		obs.Log("error", "login failed", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "authentication error")
	}
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (a *API) handleSwitchTenant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ac, ok := auth.AuthFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req switchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TenantID) == "" {
		respondError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	pair, err := a.auth.SwitchTenant(r.Context(), ac, req.TenantID)
	if err != nil {
		if errors.Is(err, auth.ErrKindMismatch) || errors.Is(err, auth.ErrBadCredentials) {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		obs.Log("error", "tenant switch failed", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.switch", map[string]any{
		"tenant_id": req.TenantID,
	})
	writeJSON(w, http.StatusOK, pairResponse(pair))
}

func (a *API) handleListTenants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ac, ok := auth.AuthFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	tenants, err := a.auth.TenantsForHub(r.Context(), ac)
	if err != nil {
		if errors.Is(err, auth.ErrKindMismatch) {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		obs.Log("error", "tenant list failed", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	if tenants == nil {
		tenants = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

// handleConfirm consumes a registration verification token. The outcome is
// reported verbatim so the caller UI can distinguish an expired link (offer
// a resend) from a bogus one.
func (a *API) handleConfirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if r.Method == http.MethodPost {
		var req confirmRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		token = req.Token
	} else if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet+", "+http.MethodPost)
		return
	}
	if strings.TrimSpace(token) == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}
	outcome, err := a.auth.ConfirmRegistration(r.Context(), token)
	if err != nil {
		obs.Log("error", "confirm failed", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	writeJSON(w, outcomeStatus(outcome), map[string]any{"result": string(outcome)})
}

func (a *API) handleResend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}
	tok, err := a.auth.ResendVerification(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) || errors.Is(err, auth.ErrNotEligible) {
			writeJSON(w, http.StatusOK, map[string]any{"result": string(auth.OutcomeInvalid)})
			return
		}
		obs.Log("error", "resend failed", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.verification_resent", map[string]any{
		"owner_kind": string(tok.OwnerKind),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"result":     string(auth.OutcomeConsumed),
		"expires_at": tok.ExpiresAt,
	})
}

// handleForgotPassword always answers 202: whether the account exists is
// not observable from the response.
func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req forgotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := auth.ActorKind(req.Kind)
	if !kind.Valid() || kind.IsHub() {
		respondError(w, http.StatusBadRequest, "unsupported kind")
		return
	}
	if strings.TrimSpace(req.LoginID) == "" {
		respondError(w, http.StatusBadRequest, "login_id is required")
		return
	}
	if _, err := a.auth.BeginPasswordReset(r.Context(), kind, req.LoginID); err != nil {
		if !errors.Is(err, auth.ErrNotFound) && !errors.Is(err, auth.ErrNotEligible) {
			obs.Log("error", "password reset issue failed", map[string]any{"error": err.Error()})
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (a *API) handleConfirmPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" || req.Credential == "" {
		respondError(w, http.StatusBadRequest, "token and credential are required")
		return
	}
	outcome, err := a.auth.CompletePasswordReset(r.Context(), req.Token, req.Credential)
	if err != nil {
		obs.Log("error", "password reset failed", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	if outcome == auth.OutcomeConsumed {
		_ = audit.LogEvent(r.Context(), "auth.password_reset", nil)
	}
	writeJSON(w, outcomeStatus(outcome), map[string]any{"result": string(outcome)})
}

func outcomeStatus(outcome auth.Outcome) int {
	switch outcome {
	case auth.OutcomeConsumed:
		return http.StatusOK
	case auth.OutcomeExpired:
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
