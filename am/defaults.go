package am

import (
	"github.com/spf13/viper"
)

// EnvBindings maps configuration keys to the environment variables that set them.
// The CL_* names are the ones operators already export for the node tooling.
var EnvBindings = map[string]string{
	"node.url":                        "CL_NODE_URL",
	"node.email":                      "CL_EMAIL",
	"node.password":                   "CL_PASSWORD",
	"node.request_timeout_seconds":    "CL_REQUEST_TIMEOUT",
	"node.login_attempts":             "CL_LOGIN_ATTEMPTS",
	"node.login_backoff_seconds":      "CL_LOGIN_BACKOFF",
	"node.session_ttl_seconds":        "CL_SESSION_TTL",
	"node.max_requests_per_second":    "CL_MAX_RPS",
	"node.insecure_skip_verify":       "CL_INSECURE_SKIP_VERIFY",
	"feeds.manager_id":                "CL_FEEDS_MANAGER_ID",
	"feeds.network":                   "CL_NETWORK",
	"approval.states":                 "CL_APPROVABLE_STATES",
	"approval.force":                  "CL_APPROVE_FORCE",
	"schedule.interval_seconds":       "CL_INTERVAL",
	"schedule.max_backoff_multiplier": "CL_MAX_BACKOFF_MULTIPLIER",
	"notify.webhook_url":              "CL_SLACK_WEBHOOK",
	"notify.notify_quiet_cycles":      "CL_NOTIFY_QUIET",
	"notify.timeout_seconds":          "CL_NOTIFY_TIMEOUT",
	"notify.block_private_webhook":    "CL_NOTIFY_BLOCK_PRIVATE",
	"log.json":                        "CL_LOG_JSON",
	"log.theme":                       "CL_LOG_THEME",
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Node access
	v.SetDefault("node.request_timeout_seconds", 15)
	v.SetDefault("node.login_attempts", 3)
	v.SetDefault("node.login_backoff_seconds", 5)
	v.SetDefault("node.session_ttl_seconds", 3600)
	v.SetDefault("node.max_requests_per_second", 0) // Unlimited
	v.SetDefault("node.insecure_skip_verify", false)

	// Approval
	v.SetDefault("approval.states", []string{}) // Observe-only until states are configured
	v.SetDefault("approval.force", true)

	// Schedule
	v.SetDefault("schedule.interval_seconds", 300)
	v.SetDefault("schedule.max_backoff_multiplier", 8)

	// Notifications
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.notify_quiet_cycles", false)
	v.SetDefault("notify.timeout_seconds", 10)
	v.SetDefault("notify.block_private_webhook", false)

	// Logging
	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "everforest")
}

// BindEnvVars binds every configuration key to its CL_* variable and to
// the APRUVER_<SECTION>_<KEY> form picked up by AutomaticEnv.
func BindEnvVars(v *viper.Viper) {
	for key, env := range EnvBindings {
		_ = v.BindEnv(key, env, automaticEnvName(key))
	}
}
