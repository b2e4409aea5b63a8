// Package settings is the key-value store the host uses to keep the agent
// configuration across restarts. The agent itself never writes it.
package settings

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
)

// Logical keys of the persisted configuration.
const (
	KeyDomain   = "domain"
	KeyToken    = "token"
	KeyInterval = "interval"
)

// ErrNotFound is returned by Load when nothing was persisted yet.
var ErrNotFound = errors.New("settings not found")

// Store loads and saves the key-value map.
type Store interface {
	Load() (map[string]string, error)
	Save(values map[string]string) error
}

// FromConfig encodes cfg into the persisted keys. Whole-second intervals are
// stored in seconds, anything finer as a Go duration.
func FromConfig(cfg ddns.Config) map[string]string {
	return map[string]string{
		KeyDomain:   cfg.Domain,
		KeyToken:    cfg.Token,
		KeyInterval: formatInterval(cfg.Interval),
	}
}

func formatInterval(d time.Duration) string {
	if d%time.Second == 0 {
		return strconv.FormatInt(int64(d/time.Second), 10)
	}
	return d.String()
}

// ToConfig overlays persisted values onto base. Missing or malformed keys keep
// the base value.
func ToConfig(values map[string]string, base ddns.Config) ddns.Config {
	cfg := base
	if v, ok := values[KeyDomain]; ok && strings.TrimSpace(v) != "" {
		cfg.Domain = v
	}
	if v, ok := values[KeyToken]; ok && strings.TrimSpace(v) != "" {
		cfg.Token = v
	}
	if v, ok := values[KeyInterval]; ok {
		if d, err := ParseInterval(v); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
	return cfg
}

// LoadConfig reads store and overlays it onto base. A store with nothing in
// it yields base unchanged.
func LoadConfig(store Store, base ddns.Config) (ddns.Config, error) {
	values, err := store.Load()
	if errors.Is(err, ErrNotFound) {
		return base, nil
	}
	if err != nil {
		return base, err
	}
	return ToConfig(values, base), nil
}

// SaveConfig persists cfg.
func SaveConfig(store Store, cfg ddns.Config) error {
	return store.Save(FromConfig(cfg))
}

// ParseInterval accepts plain seconds ("300") or a Go duration ("5m").
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
