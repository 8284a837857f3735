package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/projects/01ABC":           "/projects/:id",
		"/projects":                 "/projects",
		"/projects/01ABC?fields=id": "/projects/:id",
		"/password/reset/abc.def":   "/password/reset/:token",
		"/password/reset-request":   "/password/reset-request",
		"/authenticate/local":       "/authenticate/local",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
