package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/VatsalSy/MPTimer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage MPTimer configuration",
	Long: `View and modify MPTimer configuration settings.

Configuration can be managed through:
  • Direct key-value updates
  • Environment variables (MPTIMER_*)
  • Direct file editing`,
	Example: `  # View all configuration
  mptimer config

  # View specific setting
  mptimer config get timing.poll_interval

  # Update setting
  mptimer config set display.show_threshold false

  # Reset one key, or everything
  mptimer config reset colors.fill
  mptimer config reset`,
}

var (
	configListCmd = &cobra.Command{
		Use:   "list",
		Short: "List configuration grouped by section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList()
		},
	}

	configGetCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Get configuration value",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigGet,
	}

	configSetCmd = &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set configuration value",
		Args:  cobra.ExactArgs(2),
		RunE:  runConfigSet,
	}

	configResetCmd = &cobra.Command{
		Use:   "reset [key]",
		Short: "Reset configuration to defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigReset,
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.ConfigPath(viper.GetViper()))
		},
	}
)

var resetYes bool

// keyDescriptions documents each configuration key for the list view.
var keyDescriptions = map[string]string{
	"display.enabled":                         "Show the tick bar",
	"display.lock_bar":                        "Lock bar size",
	"display.show_threshold":                  "Show commit threshold marker",
	"display.hide_out_of_combat":              "Hide outside combat",
	"display.always_show_in_duty":             "Always show in a duty",
	"display.always_show_with_hostile_target": "Always show with hostile target",
	"display.bar_width":                       "Bar width (cells)",
	"timing.period":                           "Regeneration period",
	"timing.poll_interval":                    "Estimator update interval",
	"timing.cast_time":                        "Timed action cast time",
	"timing.grace_period":                     "Commit grace period",
	"timing.acceleration_factor":              "Cast time factor when accelerated",
	"colors.border":                           "Bar border",
	"colors.background":                       "Bar background",
	"colors.fill":                             "Bar fill",
	"colors.threshold":                        "Threshold marker",
	"store.path":                              "Journal database",
	"store.batch_size":                        "Observations per write",
	"log.level":                               "Log level",
	"log.format":                              "Log format (pretty, json)",
	"log.output":                              "Log output (stderr, stdout, file)",
	"log.file":                                "Log file path",
	"log.max_size":                            "Log file size before rotation (MB)",
	"log.max_backups":                         "Rotated log files kept",
	"version":                                 "Config version",
}

var configSections = []struct {
	prefix string
	title  string
}{
	{"display.", "Display"},
	{"timing.", "Timing"},
	{"colors.", "Colors"},
	{"store.", "Journal"},
	{"log.", "Logging"},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configPathCmd)

	configResetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip confirmation")

	configCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigList()
	}
}

func runConfigList() error {
	if configErr != nil {
		fmt.Println(color.RedString("Configuration is invalid: %v", configErr))
		fmt.Println()
	}

	fmt.Println(color.CyanString("⚙️  MPTimer Configuration"))
	fmt.Println()
	fmt.Printf("Config file: %s\n\n", config.ConfigPath(viper.GetViper()))

	keys := config.Keys()
	defaults := config.Defaults()
	for _, section := range configSections {
		fmt.Println(color.YellowString(section.title + ":"))

		t := table.NewWriter()
		t.SetStyle(table.StyleLight)
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: 40},
			{Number: 2, WidthMax: 40},
			{Number: 3, WidthMax: 40},
		})

		for _, key := range keys {
			if !strings.HasPrefix(key, section.prefix) {
				continue
			}
			value := displayValue(viper.Get(key))
			if value == displayValue(defaults[key]) {
				value = color.New(color.FgHiBlack).Sprint(value)
			}
			t.AppendRow(table.Row{key, keyDescriptions[key], value})
		}

		fmt.Println(t.Render())
		fmt.Println()
	}

	fmt.Println("Use 'mptimer config set <key> <value>' to update settings")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, key := range config.Keys() {
			fmt.Printf("%s=%s\n", key, displayValue(viper.Get(key)))
		}
		return nil
	}

	key := strings.ToLower(args[0])
	if !config.IsKnownKey(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	fmt.Println(displayValue(viper.Get(key)))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := strings.ToLower(args[0]), args[1]
	v := viper.GetViper()

	old := v.Get(key)
	if err := config.Set(v, key, value); err != nil {
		return err
	}
	if _, err := config.LoadFromViper(v); err != nil {
		v.Set(key, old)
		return err
	}
	if err := config.Save(v); err != nil {
		return err
	}

	fmt.Printf("%s Set %s = %s\n", color.GreenString("✓"), key, displayValue(v.Get(key)))
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	if len(args) == 1 {
		if err := config.ResetKey(v, args[0]); err != nil {
			return err
		}
	} else {
		if !resetYes {
			fmt.Println(color.YellowString("⚠️  Warning: This will reset all configuration to defaults"))

			var confirm bool
			prompt := &survey.Confirm{
				Message: "Are you sure?",
				Default: false,
			}
			if err := survey.AskOne(prompt, &confirm); err != nil {
				return err
			}
			if !confirm {
				return nil
			}
		}
		config.ResetAll(v)
	}

	if err := config.Save(v); err != nil {
		return err
	}

	if len(args) == 1 {
		fmt.Printf("%s Reset %s = %s\n", color.GreenString("✓"), args[0], displayValue(v.Get(args[0])))
	} else {
		fmt.Println(color.GreenString("✓ Configuration reset to defaults"))
	}
	fmt.Fprintln(os.Stderr, "Config file:", config.ConfigPath(v))
	return nil
}

// displayValue renders a configuration value the way 'config set' parses it.
func displayValue(value interface{}) string {
	if value == nil {
		return "(not set)"
	}
	if d, ok := value.(fmt.Stringer); ok {
		return d.String()
	}
	return cast.ToString(value)
}
