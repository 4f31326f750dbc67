package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

const maxCached = 4096

// Resolver maps client addresses to ISO country codes using a MaxMind GeoIP2
// database. Lookups are memoized.
type Resolver struct {
	reader *geoip2.Reader

	mu    sync.RWMutex
	cache map[string]string
}

// NewResolver opens the GeoIP database at the given path. When the path is
// empty, nil is returned.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader, cache: make(map[string]string)}, nil
}

// CountryCode returns the ISO country code for ip, which may carry a port.
// Private and loopback addresses resolve to "".
func (r *Resolver) CountryCode(ip string) (string, error) {
	host := strings.TrimSpace(ip)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	parsed := net.ParseIP(host)
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return "", nil
	}
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}

	key := parsed.String()
	r.mu.RLock()
	code, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return code, nil
	}

	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record != nil {
		code = strings.ToUpper(record.Country.IsoCode)
	}

	r.mu.Lock()
	if len(r.cache) >= maxCached {
		r.cache = make(map[string]string)
	}
	r.cache[key] = code
	r.mu.Unlock()
	return code, nil
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
