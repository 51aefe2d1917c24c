package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientInfoContextKey struct{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// ClientInfo describes the caller of a request. It is attached to log records sent to
// the spreadsheet webhook.
type ClientInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Country   string `json:"country,omitempty"`
}

// Fields renders the info as log record data, omitting empty values.
func (c ClientInfo) Fields() map[string]any {
	out := map[string]any{}
	if c.IP != "" {
		out["ip"] = c.IP
	}
	if c.UserAgent != "" {
		out["user_agent"] = c.UserAgent
	}
	if c.Country != "" {
		out["country"] = c.Country
	}
	return out
}

func Client(lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := ClientInfo{
				IP:        ClientIP(r),
				UserAgent: strings.TrimSpace(r.UserAgent()),
				Country:   ResolveCountry(r, lookup),
			}
			ctx := context.WithValue(r.Context(), clientInfoContextKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClientInfoFromContext(ctx context.Context) ClientInfo {
	if v, ok := ctx.Value(clientInfoContextKey{}).(ClientInfo); ok {
		return v
	}
	return ClientInfo{}
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ResolveCountry resolves a best-effort ISO country code for the given request. Proxy
// headers win over the geoip lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}
