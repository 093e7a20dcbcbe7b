package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tavolo.org/internal/auth"
	"tavolo.org/internal/obs"
)

// ReadyProbe is a readiness check, e.g. a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer. Routing stays deliberately thin: the interesting
// behavior lives in the scope filters and the auth service.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	readyProbe ReadyProbe
	version    string
}

func New(service *auth.Service, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       service,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// Login/refresh per endpoint group.
	a.mux.HandleFunc("/customer/auth/login", a.loginHandler(auth.KindCustomer))
	a.mux.HandleFunc("/admin/auth/login", a.loginHandler(auth.KindAdmin))
	a.mux.HandleFunc("/tenant/user/auth/login", a.loginHubHandler(auth.KindTenantHub))
	a.mux.HandleFunc("/agency/user/auth/login", a.loginHubHandler(auth.KindAgencyHub))

	a.mux.HandleFunc("/customer/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/admin/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/tenant/user/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/tenant/user/auth/refresh/hub", a.handleRefresh)
	a.mux.HandleFunc("/agency/user/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/agency/user/auth/refresh/hub", a.handleRefresh)

	// Hub cross-tenant endpoints, reachable only through the whitelist.
	a.mux.HandleFunc("/tenant/user/auth/switch", a.handleSwitchTenant)
	a.mux.HandleFunc("/tenant/user/auth/tenants", a.handleListTenants)
	a.mux.HandleFunc("/agency/user/auth/switch", a.handleSwitchTenant)
	a.mux.HandleFunc("/agency/user/auth/agencies", a.handleListTenants)

	// Single-use token flows (email driven, public).
	a.mux.HandleFunc("/auth/confirm", a.handleConfirm)
	a.mux.HandleFunc("/auth/resend", a.handleResend)
	a.mux.HandleFunc("/auth/password/forgot", a.handleForgotPassword)
	a.mux.HandleFunc("/auth/password/confirm", a.handleConfirmPassword)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler: metrics, hardening,
// rate limiting and one scope filter per endpoint group.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	for _, group := range []string{groupCustomer, groupAdmin, groupTenant, groupAgency} {
		h = a.groupFilter(group, h)
	}
	h = SecurityHeaders(h)
	h = RateLimit(h, 20, 10)
	h = Logging(h)
	return obs.Instrument(h)
}

// groupFilter applies the group's scope filter to requests under its path
// prefix and passes everything else through untouched.
func (a *API) groupFilter(group string, next http.Handler) http.Handler {
	filter := NewScopeFilter(group, a.auth)
	guarded := filter.Wrap(next)
	prefix := "/" + group + "/"
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) >= len(prefix) && r.URL.Path[:len(prefix)] == prefix {
			guarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tavolo-auth",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid request body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}
