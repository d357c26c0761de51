package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/apruver/am"
	"github.com/teranos/apruver/errors"
	"github.com/teranos/apruver/internal/util"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Inspect apruver configuration",
	Long: `am: inspect apruver configuration

Configuration sources (later overrides earlier):
1. Built-in defaults
2. System config (/etc/apruver/apruver.toml)
3. User config (~/.apruver/apruver.toml)
4. Project config (./apruver.toml), or the file given with --config
5. Environment variables (CL_* names, or APRUVER_* for any key)

Secrets (node.password, notify.webhook_url) are always masked.

Examples:
  apruver am show                  # Effective configuration as TOML
  apruver am show --format json    # ...as JSON
  apruver am where                 # Where every value came from
  apruver am validate              # Check configuration and exit`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE:  runAmShow,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where each setting is loaded from",
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := am.Load(path)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	safe := cfg.Redacted()
	out := cmd.OutOrStdout()

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(safe, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(safe)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# apruver configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(safe)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# apruver configuration\n%s", string(data))

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration is valid (network %s, feeds manager %s)\n",
		cfg.Feeds.Network, cfg.Feeds.ManagerID)
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	loader, err := am.NewLoader(path)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	out := cmd.OutOrStdout()
	files := loader.Files()
	if len(files) == 0 {
		fmt.Fprintln(out, "No config files found; using defaults and environment")
	} else {
		fmt.Fprintln(out, "Config files (later overrides earlier):")
		for _, f := range files {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	fmt.Fprintln(out)

	data := pterm.TableData{{"KEY", "VALUE", "SOURCE", "FROM"}}
	for _, s := range loader.Settings() {
		value := util.Truncate(fmt.Sprintf("%v", s.Value), 47)
		data = append(data, []string{s.Key, value, string(s.Source), s.SourcePath})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, table)

	summary := loader.SourceSummary()
	fmt.Fprint(out, "Settings by source:")
	for _, src := range []am.ConfigSource{am.SourceDefault, am.SourceSystem, am.SourceUser, am.SourceProject, am.SourceFlag, am.SourceEnvironment} {
		if n := summary[src]; n > 0 {
			fmt.Fprintf(out, " %s=%d", src, n)
		}
	}
	fmt.Fprintln(out)
	return nil
}
