package am

import (
	"net/url"

	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/node/feeds"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Required keys: the daemon cannot do anything useful without them
	required := []struct {
		key   string
		value string
	}{
		{"node.url", c.Node.URL},
		{"node.email", c.Node.Email},
		{"node.password", c.Node.Password},
		{"feeds.manager_id", c.Feeds.ManagerID},
		{"feeds.network", c.Feeds.Network},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.WithHintf(
				errors.NewInvalidConfigError("%s is required", r.key),
				"set %s or add %s to %s", EnvBindings[r.key], r.key, ConfigFileName)
		}
	}

	if err := validateHTTPURL("node.url", c.Node.URL); err != nil {
		return err
	}
	if c.Notify.WebhookURL != "" {
		if err := validateHTTPURL("notify.webhook_url", c.Notify.WebhookURL); err != nil {
			return err
		}
	}

	// Timeouts and intervals: zero would spin or hang, negative is meaningless
	positive := []struct {
		key   string
		value int
	}{
		{"node.request_timeout_seconds", c.Node.RequestTimeoutSeconds},
		{"node.login_attempts", c.Node.LoginAttempts},
		{"node.session_ttl_seconds", c.Node.SessionTTLSeconds},
		{"schedule.interval_seconds", c.Schedule.IntervalSeconds},
		{"notify.timeout_seconds", c.Notify.TimeoutSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return errors.NewInvalidConfigError("%s must be > 0, got %d", p.key, p.value)
		}
	}

	if c.Node.LoginBackoffSeconds < 0 {
		return errors.NewInvalidConfigError("node.login_backoff_seconds must be >= 0, got %d", c.Node.LoginBackoffSeconds)
	}

	// Rate limit: 0 = unlimited, negative = invalid
	if c.Node.MaxRequestsPerSecond < 0 {
		return errors.NewInvalidConfigError("node.max_requests_per_second must be >= 0, got %f", c.Node.MaxRequestsPerSecond)
	}

	if c.Schedule.MaxBackoffMultiplier < 1 {
		return errors.NewInvalidConfigError("schedule.max_backoff_multiplier must be >= 1, got %d", c.Schedule.MaxBackoffMultiplier)
	}

	// Unknown states fail fast instead of silently never matching
	for _, state := range c.Approval.States {
		if _, err := feeds.ParseStatus(state); err != nil {
			return errors.WithHintf(
				errors.NewInvalidConfigError("approval.states: %v", err),
				"known statuses: %v", feeds.KnownStatuses())
		}
	}

	return nil
}

func validateHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.NewInvalidConfigError("%s is not a valid URL: %v", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.NewInvalidConfigError("%s must use http or https, got %q", key, u.Scheme)
	}
	if u.Host == "" {
		return errors.NewInvalidConfigError("%s has no host", key)
	}
	return nil
}
