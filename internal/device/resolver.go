// Package device derives the fingerprint recorded with every login attempt:
// browser, OS and device type from the User-Agent, and a coarse location
// from the client address.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	ua "github.com/mileusna/useragent"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shopcore/admin-guard/internal/config"
	"github.com/shopcore/admin-guard/internal/model"
)

// Placeholder values. Locations starting with "Unknown" or "Local" are never
// used for location-based threat heuristics.
const (
	UnknownBrowser  = "Unknown Browser"
	UnknownOS       = "Unknown OS"
	DeviceDesktop   = "Desktop"
	DeviceMobile    = "Mobile"
	DeviceIPhone    = "iPhone"
	DeviceTablet    = "Tablet"
	LocationUnknown = "Unknown Location"
	LocationLocal   = "Local Network"
)

// IsKnownLocation reports whether loc names a real place.
func IsKnownLocation(loc string) bool {
	loc = strings.TrimSpace(loc)
	return loc != "" && !strings.HasPrefix(loc, "Unknown") && !strings.HasPrefix(loc, "Local")
}

// ParseUserAgent extracts browser name, OS name and device type.
func ParseUserAgent(userAgent string) (browser, os, deviceType string) {
	if strings.TrimSpace(userAgent) == "" {
		return UnknownBrowser, UnknownOS, DeviceDesktop
	}

	parsed := ua.Parse(userAgent)

	browser = strings.TrimSpace(parsed.Name)
	if browser == "" {
		browser = UnknownBrowser
	}
	os = strings.TrimSpace(parsed.OS)
	if os == "" {
		os = UnknownOS
	}

	deviceType = DeviceDesktop
	switch {
	case parsed.Tablet:
		deviceType = DeviceTablet
	case parsed.Mobile && strings.Contains(userAgent, "iPhone"):
		deviceType = DeviceIPhone
	case parsed.Mobile:
		deviceType = DeviceMobile
	}
	return browser, os, deviceType
}

type geoResponse struct {
	City    string `json:"city"`
	Country string `json:"country_name"`
	Code    string `json:"country"`
	Error   bool   `json:"error"`
	Reason  string `json:"reason"`
}

// Resolver builds DeviceInfo values. Remote geo lookups are cached in Redis
// when a client is supplied.
type Resolver struct {
	client    *http.Client
	rdb       *redis.Client
	lookupURL string
	cacheTTL  time.Duration
	highRisk  []*net.IPNet
	log       zerolog.Logger
}

// NewResolver creates a Resolver. rdb may be nil to disable caching.
func NewResolver(cfg *config.Config, rdb *redis.Client, log zerolog.Logger) (*Resolver, error) {
	nets, err := parseNetworks(cfg.HighRiskNetworks)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		client:    &http.Client{Timeout: cfg.GeoLookupTimeout},
		rdb:       rdb,
		lookupURL: cfg.GeoLookupURL,
		cacheTTL:  cfg.GeoCacheTTL,
		highRisk:  nets,
		log:       log.With().Str("component", "device_resolver").Logger(),
	}, nil
}

// Resolve fingerprints one request.
func (r *Resolver) Resolve(ctx context.Context, ip, userAgent string) model.DeviceInfo {
	browser, os, deviceType := ParseUserAgent(userAgent)
	return model.DeviceInfo{
		IP:         ip,
		UserAgent:  userAgent,
		Browser:    browser,
		OS:         os,
		DeviceType: deviceType,
		Location:   r.LocationFromIP(ctx, ip),
	}
}

// LocationFromIP returns "City, Country" for a public address. Lookup
// failures degrade to LocationUnknown and are not cached.
func (r *Resolver) LocationFromIP(ctx context.Context, ip string) string {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return LocationUnknown
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return LocationLocal
	}
	if r.lookupURL == "" {
		return LocationUnknown
	}

	key := config.CacheKey.GeoLocationKey(addr.String())
	if r.rdb != nil {
		if cached, err := r.rdb.Get(ctx, key).Result(); err == nil {
			return cached
		} else if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Msg("geo cache read failed")
		}
	}

	loc, err := r.lookup(ctx, addr.String())
	if err != nil {
		r.log.Debug().Err(err).Str("ip", addr.String()).Msg("geo lookup failed")
		return LocationUnknown
	}

	if r.rdb != nil {
		if err := r.rdb.Set(ctx, key, loc, r.cacheTTL).Err(); err != nil {
			r.log.Warn().Err(err).Msg("geo cache write failed")
		}
	}
	return loc
}

func (r *Resolver) lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(r.lookupURL, ip), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo lookup status %d", resp.StatusCode)
	}

	var geo geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return "", fmt.Errorf("decode geo response: %w", err)
	}
	if geo.Error {
		return "", fmt.Errorf("geo lookup: %s", geo.Reason)
	}

	country := geo.Country
	if country == "" {
		country = geo.Code
	}
	switch {
	case geo.City != "" && country != "":
		return geo.City + ", " + country, nil
	case country != "":
		return country, nil
	}
	return LocationUnknown, nil
}

// IsHighRiskIP reports whether ip falls inside a configured high-risk network.
func (r *Resolver) IsHighRiskIP(ip string) bool {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return false
	}
	for _, n := range r.highRisk {
		if n.Contains(addr) {
			return true
		}
	}
	return false
}

func parseNetworks(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("invalid high-risk address %q", e)
			}
			if ip.To4() != nil {
				e += "/32"
			} else {
				e += "/128"
			}
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("invalid high-risk network %q: %w", e, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
