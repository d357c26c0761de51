package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/apruver/errors"
)

// ConfigFileName is the file searched for in the standard locations
const ConfigFileName = "apruver.toml"

// Loader owns one viper instance and remembers which files fed it.
// There is no package-level configuration state; callers keep the Loader.
type Loader struct {
	v     *viper.Viper
	files []fileLayer
}

type fileLayer struct {
	path   string
	source ConfigSource
	keys   map[string]bool
}

// NewLoader prepares a viper instance with defaults, env bindings and config files.
// An explicit configFile must exist; the standard locations are optional.
func NewLoader(configFile string) (*Loader, error) {
	v := viper.New()

	v.SetEnvPrefix("APRUVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)
	SetDefaults(v)

	l := &Loader{v: v}
	if configFile != "" {
		if err := l.mergeFile(configFile, SourceFlag); err != nil {
			return nil, err
		}
		return l, nil
	}

	for _, candidate := range searchPaths() {
		if _, err := os.Stat(candidate.path); err != nil {
			continue
		}
		if err := l.mergeFile(candidate.path, candidate.source); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Load is NewLoader followed by Config.
func Load(configFile string) (*Config, error) {
	l, err := NewLoader(configFile)
	if err != nil {
		return nil, err
	}
	return l.Config()
}

// Viper returns the underlying instance for advanced access
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Files returns the merged config files, lowest precedence first
func (l *Loader) Files() []string {
	paths := make([]string, 0, len(l.files))
	for _, f := range l.files {
		paths = append(paths, f.path)
	}
	return paths
}

// Config unmarshals the merged settings. It does not validate.
func (l *Loader) Config() (*Config, error) {
	return LoadWithViper(l.v)
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	config.Approval.States = splitStates(config.Approval.States)
	return &config, nil
}

// mergeFile reads one TOML file and merges it over what is already loaded.
// MergeConfigMap keeps environment variables above file values.
func (l *Loader) mergeFile(path string, source ConfigSource) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	tmp.SetConfigType("toml")
	if err := tmp.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}

	if err := l.v.MergeConfigMap(tmp.AllSettings()); err != nil {
		return errors.Wrapf(err, "failed to merge config file %s", path)
	}

	keys := make(map[string]bool)
	for _, key := range tmp.AllKeys() {
		keys[key] = true
	}
	l.files = append(l.files, fileLayer{path: path, source: source, keys: keys})
	return nil
}

type searchPath struct {
	path   string
	source ConfigSource
}

// searchPaths lists config locations in precedence order: system < user < project
func searchPaths() []searchPath {
	paths := []searchPath{
		{path: filepath.Join("/etc/apruver", ConfigFileName), source: SourceSystem},
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, searchPath{path: filepath.Join(home, ".apruver", ConfigFileName), source: SourceUser})
	}
	paths = append(paths, searchPath{path: ConfigFileName, source: SourceProject})
	return paths
}

// splitStates accepts both list and comma-separated forms and drops blanks.
// Case and separators are normalized later by feeds.ParseStatus.
func splitStates(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// automaticEnvName is the APRUVER_* variable AutomaticEnv derives for key
func automaticEnvName(key string) string {
	return "APRUVER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
