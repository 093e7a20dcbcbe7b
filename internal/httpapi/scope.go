package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tavolo.org/internal/auth"
	"tavolo.org/internal/obs"
)

// Endpoint groups. One scope filter instance guards each group.
const (
	groupCustomer = "customer"
	groupAdmin    = "admin"
	groupTenant   = "tenant"
	groupAgency   = "agency"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

var groupFamilies = map[string]auth.Family{
	groupCustomer: auth.FamilyCustomer,
	groupAdmin:    auth.FamilyAdmin,
	groupTenant:   auth.FamilyTenant,
	groupAgency:   auth.FamilyAgency,
}

// ScopeFilter is the per-request gate for one endpoint group. Each
// request runs the pipeline public-bypass -> extract -> classify ->
// group-match -> hub-whitelist -> context-build, with early exits to 401
// or 403. The filter never explains to the client why a token was
// rejected; detail goes to the logs only.
type ScopeFilter struct {
	group   string
	family  auth.Family
	service *auth.Service
}

// NewScopeFilter builds the filter for an endpoint group.
func NewScopeFilter(group string, service *auth.Service) *ScopeFilter {
	return &ScopeFilter{
		group:   group,
		family:  groupFamilies[group],
		service: service,
	}
}

// Wrap applies the filter to a handler.
func (f *ScopeFilter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Public paths skip straight through with no auth context.
		if r.Method == http.MethodOptions || isPublicPath(f.group, path) {
			next.ServeHTTP(w, r)
			return
		}

		// A missing header is not an error here: the request falls
		// through unauthenticated and a later authorization check
		// rejects it if the endpoint actually requires auth.
		token, ok := extractBearer(r.Header.Get(authHeader))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ac, err := f.service.Authenticate(r.Context(), token)
		if err != nil {
			f.reject(w, r, err)
			return
		}

		if ac.Kind.Family() != f.family {
			obs.CountFilterRejection(f.group, "group-match")
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		// Refresh-class tokens are only ever accepted by the dedicated
		// refresh endpoints; conversely those endpoints take nothing else.
		if isRefreshPath(path) {
			if ac.Class != auth.ClassRefresh {
				obs.CountFilterRejection(f.group, "token-class")
				respondError(w, http.StatusUnauthorized, "refresh token required")
				return
			}
		} else if ac.Class == auth.ClassRefresh {
			obs.CountFilterRejection(f.group, "token-class")
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if ac.Kind.IsHub() && !isHubAllowedPath(f.group, path) {
			obs.CountFilterRejection(f.group, "hub-whitelist")
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}

		ctx := auth.ContextWithAuth(r.Context(), ac)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (f *ScopeFilter) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrNotEligible),
		errors.Is(err, auth.ErrWrongTokenClass):
		// One generic message for every token-level failure.
		obs.CountFilterRejection(f.group, "verify")
		obs.Log("warn", "token rejected", map[string]any{
			"group": f.group,
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		respondError(w, http.StatusUnauthorized, "invalid token")
	default:
		obs.Log("error", "authentication error", map[string]any{
			"group": f.group,
			"path":  r.URL.Path,
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "authentication error")
	}
}

// RequireAuth rejects requests that carry no authentication context, for
// endpoints behind a filter that still demand a principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.AuthFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tavolo"`)
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthority gates a handler on a single authority key.
func RequireAuthority(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := auth.AuthFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="tavolo"`)
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !ac.HasAuthority(key) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="tavolo"`)
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) {
		return "", false
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
