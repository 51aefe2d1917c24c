package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "us")
				r.Header.Set("CF-IPCountry", "nz")
			},
			want: "US",
		},
		{
			name: "cloudflare header",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "nz")
			},
			resolver: func(ip string) (string, error) {
				t.Fatal("resolver must not run when a header is present")
				return "", nil
			},
			want: "NZ",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "ca", nil
			},
			want: "CA",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
		{
			name: "nothing known",
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			got := ResolveCountry(req, tc.resolver)
			if got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientMiddleware(t *testing.T) {
	var got ClientInfo
	h := Client(func(ip string) (string, error) { return "us", nil })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientInfoFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	req.Header.Set("User-Agent", "tattty-test/1.0")
	h.ServeHTTP(httptest.NewRecorder(), req)

	want := ClientInfo{IP: "198.51.100.7", UserAgent: "tattty-test/1.0", Country: "US"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("client info mismatch (-want +got):\n%s", diff)
	}
	fields := got.Fields()
	if fields["country"] != "US" || fields["user_agent"] != "tattty-test/1.0" {
		t.Fatalf("Fields() = %v", fields)
	}
}

func TestClientInfoFromEmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := ClientInfoFromContext(req.Context()); got != (ClientInfo{}) {
		t.Fatalf("ClientInfoFromContext() = %+v, want zero", got)
	}
	if len((ClientInfo{}).Fields()) != 0 {
		t.Fatal("zero info must render no fields")
	}
}
