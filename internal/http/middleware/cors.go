package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	corsAllowHeaders  = "Authorization, Content-Type, X-Request-ID"
	corsExposeHeaders = "X-Request-ID, Retry-After"
	corsAllowMethods  = "GET, POST, PUT, PATCH, OPTIONS"
)

// originPolicy decides which browser origins may call the API. Entries are
// exact origins, "*" for any origin, or "https://*.example.com" for every
// subdomain of example.com over https.
type originPolicy struct {
	any      bool
	exact    map[string]bool
	wildcard []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string
	suffix string
}

func newOriginPolicy(entries []string) originPolicy {
	p := originPolicy{exact: map[string]bool{}}
	for _, entry := range entries {
		entry = strings.TrimRight(strings.TrimSpace(entry), "/")
		switch {
		case entry == "":
		case entry == "*":
			p.any = true
		case strings.Contains(entry, "://*."):
			scheme, host, _ := strings.Cut(entry, "://*.")
			p.wildcard = append(p.wildcard, wildcardOrigin{scheme: scheme, suffix: "." + strings.ToLower(host)})
		default:
			p.exact[entry] = true
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if p.any || p.exact[origin] {
		return true
	}
	if len(p.wildcard) == 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, w := range p.wildcard {
		if u.Scheme == w.scheme && strings.HasSuffix(host, w.suffix) {
			return true
		}
	}
	return false
}

// CORS lets the listed browser origins call the API with bearer tokens.
// Preflights from other origins are refused with 403.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			allowed := policy.allows(origin)
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
