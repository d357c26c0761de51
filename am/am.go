package am

import (
	"net/url"
	"time"
)

// Config represents the apruver configuration.
// It is loaded and validated once at startup and passed explicitly to every component.
type Config struct {
	Node     NodeConfig     `mapstructure:"node" toml:"node" json:"node" yaml:"node"`
	Feeds    FeedsConfig    `mapstructure:"feeds" toml:"feeds" json:"feeds" yaml:"feeds"`
	Approval ApprovalConfig `mapstructure:"approval" toml:"approval" json:"approval" yaml:"approval"`
	Schedule ScheduleConfig `mapstructure:"schedule" toml:"schedule" json:"schedule" yaml:"schedule"`
	Notify   NotifyConfig   `mapstructure:"notify" toml:"notify" json:"notify" yaml:"notify"`
	Log      LogConfig      `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
}

// NodeConfig configures access to the node's admin interface
type NodeConfig struct {
	URL                   string  `mapstructure:"url" toml:"url" json:"url" yaml:"url"`
	Email                 string  `mapstructure:"email" toml:"email" json:"email" yaml:"email"`
	Password              string  `mapstructure:"password" toml:"password" json:"password" yaml:"password"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" toml:"request_timeout_seconds" json:"request_timeout_seconds" yaml:"request_timeout_seconds"` // Per-call timeout (default: 15)
	LoginAttempts         int     `mapstructure:"login_attempts" toml:"login_attempts" json:"login_attempts" yaml:"login_attempts"`                                     // Login retry bound (default: 3)
	LoginBackoffSeconds   int     `mapstructure:"login_backoff_seconds" toml:"login_backoff_seconds" json:"login_backoff_seconds" yaml:"login_backoff_seconds"`         // Linear backoff step (default: 5)
	SessionTTLSeconds     int     `mapstructure:"session_ttl_seconds" toml:"session_ttl_seconds" json:"session_ttl_seconds" yaml:"session_ttl_seconds"`                 // Proactive re-login (default: 3600)
	MaxRequestsPerSecond  float64 `mapstructure:"max_requests_per_second" toml:"max_requests_per_second" json:"max_requests_per_second" yaml:"max_requests_per_second"` // 0 = unlimited
	InsecureSkipVerify    bool    `mapstructure:"insecure_skip_verify" toml:"insecure_skip_verify" json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// FeedsConfig scopes proposal listing
type FeedsConfig struct {
	ManagerID string `mapstructure:"manager_id" toml:"manager_id" json:"manager_id" yaml:"manager_id"`
	Network   string `mapstructure:"network" toml:"network" json:"network" yaml:"network"`
}

// ApprovalConfig configures which proposals are approved automatically
type ApprovalConfig struct {
	States []string `mapstructure:"states" toml:"states" json:"states" yaml:"states"` // Comma-separated in env, array in TOML
	Force  bool     `mapstructure:"force" toml:"force" json:"force" yaml:"force"`     // force argument of the approve mutation (default: true)
}

// ScheduleConfig configures the polling loop
type ScheduleConfig struct {
	IntervalSeconds      int `mapstructure:"interval_seconds" toml:"interval_seconds" json:"interval_seconds" yaml:"interval_seconds"`                         // Base poll interval (default: 300)
	MaxBackoffMultiplier int `mapstructure:"max_backoff_multiplier" toml:"max_backoff_multiplier" json:"max_backoff_multiplier" yaml:"max_backoff_multiplier"` // Backoff cap as a multiple of the interval (default: 8)
}

// NotifyConfig configures the cycle summary webhook
type NotifyConfig struct {
	WebhookURL          string `mapstructure:"webhook_url" toml:"webhook_url" json:"webhook_url" yaml:"webhook_url"` // Empty disables notifications
	NotifyQuietCycles   bool   `mapstructure:"notify_quiet_cycles" toml:"notify_quiet_cycles" json:"notify_quiet_cycles" yaml:"notify_quiet_cycles"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"` // Webhook timeout (default: 10)
	BlockPrivateWebhook bool   `mapstructure:"block_private_webhook" toml:"block_private_webhook" json:"block_private_webhook" yaml:"block_private_webhook"`
}

// LogConfig configures log output
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
	Theme string `mapstructure:"theme" toml:"theme" json:"theme" yaml:"theme"`
}

const redacted = "********"

// RequestTimeout returns the per-call timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Node.RequestTimeoutSeconds) * time.Second
}

// LoginBackoff returns the linear login backoff step
func (c *Config) LoginBackoff() time.Duration {
	return time.Duration(c.Node.LoginBackoffSeconds) * time.Second
}

// SessionTTL returns how long a session is trusted before re-login
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Node.SessionTTLSeconds) * time.Second
}

// Interval returns the base poll interval
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalSeconds) * time.Second
}

// NotifyTimeout returns the webhook timeout
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

// NotificationsEnabled reports whether a webhook is configured
func (c *Config) NotificationsEnabled() bool {
	return c.Notify.WebhookURL != ""
}

// Redacted returns a copy safe to print: password and webhook secret are masked
func (c *Config) Redacted() Config {
	out := *c
	if out.Node.Password != "" {
		out.Node.Password = redacted
	}
	if out.Notify.WebhookURL != "" {
		out.Notify.WebhookURL = redactURL(out.Notify.WebhookURL)
	}
	out.Approval.States = append([]string(nil), c.Approval.States...)
	return out
}

// redactURL keeps scheme and host; webhook paths carry the secret
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
