package httpapi

import "testing"

func TestMatchesPattern(t *testing.T) {
	cases := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"/healthz", "/healthz", true},
		{"/healthz/extra", "/healthz", false},
		{"/healthzzz", "/healthz", false},
		{"/static/app.js", "/static/**", true},
		{"/auth/confirm", "/auth/confirm*", true},
		{"/auth/confirmation", "/auth/confirm*", true},
		{"/auth/resend", "/auth/confirm*", false},
		{"/tenant/user/auth/refresh", "**/auth/refresh", true},
		{"/tenant/user/auth/refresh/hub", "**/auth/refresh", false},
		{"/tenant/user/logout", "**/logout", true},
		{"", "/healthz", false},
		{"/healthz", "", false},
	}
	for _, tc := range cases {
		if got := matchesPattern(tc.path, tc.pattern); got != tc.want {
			t.Errorf("matchesPattern(%q, %q) = %v, want %v", tc.path, tc.pattern, got, tc.want)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	cases := []struct {
		group string
		path  string
		want  bool
	}{
		{groupCustomer, "/healthz", true},
		{groupCustomer, "/metrics", true},
		{groupCustomer, "/auth/confirm", true},
		{groupCustomer, "/customer/auth/login", true},
		{groupCustomer, "/customer/register/start", true},
		{groupCustomer, "/customer/orders", false},
		{groupAdmin, "/admin/auth/login", true},
		{groupAdmin, "/admin/reports", false},
		{groupTenant, "/tenant/user/auth/login", true},
		{groupTenant, "/tenant/reservations", false},
		{groupAgency, "/agency/user/auth/login", true},
	}
	for _, tc := range cases {
		if got := isPublicPath(tc.group, tc.path); got != tc.want {
			t.Errorf("isPublicPath(%q, %q) = %v, want %v", tc.group, tc.path, got, tc.want)
		}
	}
}

func TestIsRefreshPath(t *testing.T) {
	for _, path := range []string{
		"/customer/auth/refresh",
		"/admin/auth/refresh",
		"/tenant/user/auth/refresh",
		"/tenant/user/auth/refresh/hub",
		"/agency/user/auth/refresh",
		"/agency/user/auth/refresh/hub",
	} {
		if !isRefreshPath(path) {
			t.Errorf("isRefreshPath(%q) = false", path)
		}
	}
	for _, path := range []string{"/customer/auth/login", "/tenant/user/auth/switch", "/metrics"} {
		if isRefreshPath(path) {
			t.Errorf("isRefreshPath(%q) = true", path)
		}
	}
}

// Hub tokens get the whitelist and nothing else; the default answer must
// be a closed door.
func TestIsHubAllowedPath(t *testing.T) {
	allowed := []struct {
		group string
		path  string
	}{
		{groupTenant, "/tenant/user/auth/switch"},
		{groupTenant, "/tenant/user/auth/tenants"},
		{groupTenant, "/tenant/user/auth/refresh"},
		{groupTenant, "/tenant/user/logout"},
		{groupTenant, "/tenant/user/profile/hub"},
		{groupTenant, "/tenant/user/change-password"},
		{groupAgency, "/agency/user/auth/switch"},
		{groupAgency, "/agency/user/auth/agencies"},
	}
	for _, tc := range allowed {
		if !isHubAllowedPath(tc.group, tc.path) {
			t.Errorf("isHubAllowedPath(%q, %q) = false", tc.group, tc.path)
		}
	}

	denied := []struct {
		group string
		path  string
	}{
		{groupTenant, "/tenant/reservations"},
		{groupTenant, "/tenant/user/profile"},
		{groupTenant, "/tenant/user/auth/switch/anything"},
		{groupTenant, "/tenant/user/auth/tenants/extra"},
		{groupTenant, "/agency/user/auth/switch"},
		{groupAgency, "/tenant/user/auth/switch"},
		{groupAgency, "/agency/bookings"},
	}
	for _, tc := range denied {
		if isHubAllowedPath(tc.group, tc.path) {
			t.Errorf("isHubAllowedPath(%q, %q) = true", tc.group, tc.path)
		}
	}
}
