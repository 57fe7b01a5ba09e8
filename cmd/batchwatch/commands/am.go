package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/batchwatch/am"
	"github.com/teranos/batchwatch/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage batchwatch configuration",
	Long: `am - Manage batchwatch configuration

Configuration sources (later overrides earlier):
  1. Built-in defaults
  2. System config (/etc/batchwatch/am.toml)
  3. User config (~/.batchwatch/am.toml)
  4. Project config (./am.toml, searched up from the working directory)
  5. Environment variables (BATCHWATCH_* prefix, .env and .env.local included)

At report time the app_config table of the job database may further
override report.lookback_hours, report.cutover_time, mail.from, mail.to,
mail.cc and calendar.holidays.

Examples:
  batchwatch am init                   # Write a default ./am.toml
  batchwatch am show                   # Show current configuration
  batchwatch am show --format json     # Show configuration in JSON format
  batchwatch am get report.lookback_hours
  batchwatch am where                  # Show where each value comes from`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g. report.cutover_time, mail.smtp.host)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	Args:  cobra.NoArgs,
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	Args:  cobra.NoArgs,
	RunE:  runAmWhere,
}

var amInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default am.toml",
	Long: `Write a configuration file holding the built-in defaults.

An existing file is only replaced with --force; the previous versions are
kept as .back1, .back2 and .back3 next to it.`,
	Args: cobra.NoArgs,
	RunE: runAmInit,
}

var (
	configFormat string
	initPath     string
	initForce    bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amInitCmd.Flags().StringVar(&initPath, "path", am.ConfigFileName, "Where to write the config file")
	amInitCmd.Flags().BoolVar(&initForce, "force", false, "Replace an existing file")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
	AmCmd.AddCommand(amInitCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	cfg = cfg.Redacted()
	out := cmd.OutOrStdout()

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Fprintln(out, string(data))

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(out, "# batchwatch configuration\n%s", data)

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(out, "# batchwatch configuration\n%s", data)

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !am.GetViper().IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	// Load validates
	if _, err := am.Load(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return errors.Wrap(err, "failed to get config introspection")
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration cascade (later overrides earlier):")
	fmt.Fprintln(out, "  1. [DEFAULT]  Built-in defaults")
	fmt.Fprintf(out, "  2. [SYSTEM]   %s\n", am.SystemConfigPath)
	fmt.Fprintf(out, "  3. [USER]     %s\n", am.UserConfigPath())
	fmt.Fprintln(out, "  4. [PROJECT]  ./am.toml (searches up directories)")
	fmt.Fprintln(out, "  5. [ENV]      BATCHWATCH_* environment variables")
	fmt.Fprintln(out)

	files := am.LoadedFiles()
	if len(files) == 0 {
		fmt.Fprintln(out, "No config files found; using defaults and environment.")
	} else {
		fmt.Fprintln(out, "Loaded files:")
		for _, f := range files {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
	fmt.Fprintln(out)

	settings := intro.Settings
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	for _, s := range settings {
		origin := string(s.Source)
		if s.SourcePath != "" {
			origin += " " + s.SourcePath
		}
		fmt.Fprintf(out, "  %-28s = %-30v [%s]\n", s.Key, s.Value, origin)
	}
	return nil
}

func runAmInit(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(initPath)
	if err != nil {
		return errors.Wrapf(err, "invalid path %s", initPath)
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return errors.WithHint(
			errors.Newf("%s already exists", path),
			"pass --force to replace it; the current file is kept as .back1")
	}

	if err := am.WriteConfig(path, am.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
