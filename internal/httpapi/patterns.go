package httpapi

import "strings"

// Path pattern sets. These are the single source of truth for public
// bypass, refresh endpoints and the hub whitelists; the scope filters and
// the router both consult them. Patterns support exact paths, "prefix/**",
// "prefix*" and "**suffix" forms.

var globalPublicPatterns = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/openapi.yaml",
	"/favicon.ico",
	"/static/**",
	"/assets/**",
	"/auth/confirm*",
	"/auth/resend",
	"/auth/password/forgot",
	"/auth/password/confirm",
}

var groupAuthPatterns = map[string][]string{
	groupCustomer: {
		"/customer/auth/**",
		"/customer/register/**",
	},
	groupAdmin: {
		"/admin/auth/login",
		"/admin/auth/refresh",
	},
	groupTenant: {
		"/tenant/user/auth/login",
		"/tenant/auth/**",
		"/tenant/register/**",
	},
	groupAgency: {
		"/agency/user/auth/login",
		"/agency/auth/**",
		"/agency/register/**",
	},
}

var refreshPatterns = []string{
	"/customer/auth/refresh",
	"/admin/auth/refresh",
	"/tenant/user/auth/refresh",
	"/tenant/user/auth/refresh/hub",
	"/agency/user/auth/refresh",
	"/agency/user/auth/refresh/hub",
}

// Hub tokens carry broad synthetic authorities, so they are confined to
// the small set of cross-tenant-switch endpoints below. Everything else
// is forbidden to them regardless of what their claims say.
var tenantHubPatterns = []string{
	"**/auth/refresh",
	"**/refresh",
	"/tenant/user/auth/switch",
	"/tenant/user/auth/tenants",
	"**/logout",
	"**/profile/hub",
	"**/change-password",
}

var agencyHubPatterns = []string{
	"**/auth/refresh",
	"**/refresh",
	"/agency/user/auth/switch",
	"/agency/user/auth/agencies",
	"**/logout",
	"**/profile/hub",
	"**/change-password",
}

// isPublicPath reports whether the path bypasses authentication for the
// given endpoint group.
func isPublicPath(group, path string) bool {
	if matchesAny(path, globalPublicPatterns) {
		return true
	}
	return matchesAny(path, groupAuthPatterns[group])
}

// isRefreshPath reports whether the path is a dedicated refresh endpoint,
// the only place refresh-class tokens are accepted.
func isRefreshPath(path string) bool {
	return matchesAny(path, refreshPatterns)
}

// isHubAllowedPath reports whether a hub token of the given group may
// reach the path.
func isHubAllowedPath(group, path string) bool {
	if group == groupAgency {
		return matchesAny(path, agencyHubPatterns)
	}
	return matchesAny(path, tenantHubPatterns)
}

func matchesAny(path string, patterns []string) bool {
	if path == "" {
		return false
	}
	for _, pattern := range patterns {
		if matchesPattern(path, pattern) {
			return true
		}
	}
	return false
}

func matchesPattern(path, pattern string) bool {
	if path == "" || pattern == "" {
		return false
	}
	if pattern == path {
		return true
	}
	if i := strings.Index(pattern, "**"); i >= 0 {
		prefix, suffix := pattern[:i], pattern[i+2:]
		return strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(path, pattern[:len(pattern)-1])
	}
	// Exact patterns match exactly. Prefix behavior is opt-in via the
	// wildcard forms, so whitelists stay closed.
	return false
}
