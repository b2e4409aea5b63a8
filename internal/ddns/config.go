package ddns

import (
	"strings"
	"time"
)

// DefaultInterval is used when a config carries a non-positive interval.
const DefaultInterval = 5 * time.Minute

// Config is the host-owned configuration surface of the agent.
type Config struct {
	Domain   string        `json:"domain" yaml:"domain"`
	Token    string        `json:"token" yaml:"token"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// normalize trims the string fields and applies the interval default.
func (c Config) normalize() Config {
	c.Domain = strings.TrimSpace(c.Domain)
	c.Token = strings.TrimSpace(c.Token)
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// Ready reports whether the config carries enough to talk to the provider.
func (c Config) Ready() bool {
	return strings.TrimSpace(c.Domain) != "" && strings.TrimSpace(c.Token) != ""
}

// MaskedToken returns the token with all but the last four characters hidden.
func (c Config) MaskedToken() string {
	if len(c.Token) <= 4 {
		return strings.Repeat("*", len(c.Token))
	}
	return strings.Repeat("*", len(c.Token)-4) + c.Token[len(c.Token)-4:]
}
