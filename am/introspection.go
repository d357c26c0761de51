package am

import (
	"os"
	"sort"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/apruver/apruver.toml
	SourceUser        ConfigSource = "user"        // ~/.apruver/apruver.toml
	SourceProject     ConfigSource = "project"     // ./apruver.toml
	SourceFlag        ConfigSource = "flag"        // --config
	SourceEnvironment ConfigSource = "environment" // CL_* or APRUVER_* env vars
)

// secretKeys are never printed in clear
var secretKeys = map[string]bool{
	"node.password":      true,
	"notify.webhook_url": true,
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key" yaml:"key" toml:"key"`
	Value      interface{}  `json:"value" yaml:"value" toml:"value"`
	Source     ConfigSource `json:"source" yaml:"source" toml:"source"`
	SourcePath string       `json:"source_path,omitempty" yaml:"source_path,omitempty" toml:"source_path,omitempty"` // File path or env var name
}

// Settings returns every known key with its effective value and origin, sorted by key.
// Secrets are masked.
func (l *Loader) Settings() []SettingInfo {
	keys := l.v.AllKeys()
	sort.Strings(keys)

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		source, path := l.sourceOf(key)
		value := l.v.Get(key)
		if secretKeys[key] {
			if s, ok := value.(string); ok && s != "" {
				if key == "notify.webhook_url" {
					value = redactURL(s)
				} else {
					value = redacted
				}
			}
		}
		settings = append(settings, SettingInfo{
			Key:        key,
			Value:      value,
			Source:     source,
			SourcePath: path,
		})
	}
	return settings
}

// sourceOf resolves precedence the way viper does: env > files (last wins) > default
func (l *Loader) sourceOf(key string) (ConfigSource, string) {
	candidates := []string{automaticEnvName(key)}
	if env, ok := EnvBindings[key]; ok {
		candidates = append([]string{env}, candidates...)
	}
	for _, env := range candidates {
		if val, ok := os.LookupEnv(env); ok && val != "" {
			return SourceEnvironment, env
		}
	}

	for i := len(l.files) - 1; i >= 0; i-- {
		if l.files[i].keys[key] {
			return l.files[i].source, l.files[i].path
		}
	}
	return SourceDefault, "built-in default"
}

// SourceSummary counts settings by origin
func (l *Loader) SourceSummary() map[ConfigSource]int {
	summary := make(map[ConfigSource]int)
	for _, s := range l.Settings() {
		summary[s.Source]++
	}
	return summary
}
