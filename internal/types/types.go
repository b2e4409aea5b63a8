package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserConfig user config structure
type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// UsersConfig user config file structure
type UsersConfig struct {
	Users []UserConfig `yaml:"users"`
}

// AppConfig application config structure (app.yaml)
type AppConfig struct {
	Port              int            `yaml:"port" json:"port"`
	JWTSecret         string         `yaml:"jwt_secret" json:"-"`
	JWTExpiryDuration int            `yaml:"jwt_expiry_duration" json:"jwt_expiry_duration"` // hours
	Mode              string         `yaml:"mode" json:"mode"`                               // "dev" | "prod" | "test"
	Database          DatabaseConfig `yaml:"database" json:"database"`
	DDNS              DDNSConfig     `yaml:"ddns" json:"ddns"`
}

// DatabaseConfig database config
type DatabaseConfig struct {
	Type             string `yaml:"type" json:"type"`         // sqlite, sqlite-pure
	Database         string `yaml:"database" json:"database"` // database file path
	LogRetentionDays int    `yaml:"log_retention_days" json:"log_retention_days"`
}

// DDNSConfig bootstraps the update agent. Domain, token and interval only
// seed the settings store; once persisted, the store wins.
type DDNSConfig struct {
	Domain          string           `yaml:"domain" json:"domain"`
	Token           string           `yaml:"token" json:"-"`
	IntervalSeconds int              `yaml:"interval_seconds" json:"interval_seconds"`
	UpdateURL       string           `yaml:"update_url,omitempty" json:"update_url,omitempty"`
	Endpoints       []EndpointConfig `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
	TimeoutSeconds  int              `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	AutoStart       bool             `yaml:"autostart" json:"autostart"`
}

// EndpointConfig address-echo endpoint
type EndpointConfig struct {
	URL   string `yaml:"url" json:"url"`
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
}

// Interval returns the bootstrap interval as a duration.
func (c DDNSConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the HTTP timeout for echo and update requests.
func (c DDNSConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Claims JWT claim structure
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserResponse user response structure
type UserResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ClientSession client session structure
type ClientSession struct {
	ID        int       `json:"id"`
	Token     string    `json:"-"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	LastUsed  time.Time `json:"lastUsed"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClientResponse client response structure
type ClientResponse struct {
	Token string `json:"token"`
	ID    int    `json:"id"`
	Name  string `json:"name"`
}

var NightGardAppConfig *AppConfig // application config

var NightGardUsersConfig *UsersConfig // user config

// SetMode only "test", "dev" or "prod" is allowed
func (c *AppConfig) SetMode(mode string) {
	if mode != "test" && mode != "dev" && mode != "prod" {
		mode = "test"
	}
	c.Mode = mode
}
