package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"veoqueue/internal/i18n"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// countryHeaders are set by CDNs and load balancers in front of the API.
var countryHeaders = []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}

// I18N stores the negotiated locale and, when known, the caller's country in
// the request context.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// detectLocale prefers explicit language headers over the caller's country.
func detectLocale(r *http.Request, fallback, country string) string {
	if hints := languageHints(r); len(hints) > 0 {
		return MatchLocale(hints[0], fallback)
	}
	if locale := i18n.ForCountry(country); locale != "" {
		return locale
	}
	return MatchLocale("", fallback)
}

// languageHints returns the non-empty language headers, X-Locale first.
func languageHints(r *http.Request) []string {
	var hints []string
	for _, key := range []string{"X-Locale", "Accept-Language"} {
		if v := strings.TrimSpace(r.Header.Get(key)); v != "" {
			hints = append(hints, v)
		}
	}
	return hints
}

// MatchLocale negotiates raw against the supported locales.
func MatchLocale(raw, fallback string) string {
	return i18n.Match(raw, fallback)
}

// ClientIP returns the first X-Forwarded-For hop, else the remote host.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry returns a best-effort upper-case ISO country code. Edge
// headers win over a region named in the language headers, which wins over
// the Indonesian language itself, which wins over a GeoIP lookup.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	for _, key := range countryHeaders {
		if v := strings.TrimSpace(r.Header.Get(key)); v != "" {
			return strings.ToUpper(v)
		}
	}
	hints := languageHints(r)
	for _, raw := range hints {
		if region := i18n.Region(raw); region != "" {
			return region
		}
	}
	for _, raw := range hints {
		if MatchLocale(raw, "") == "id" {
			return "ID"
		}
	}
	if lookup == nil {
		return ""
	}
	ip := ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}
