package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bryanchriswhite/StepRecorder/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage StepRecorder settings",
	Long:  `View and manage the saved StepRecorder settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Long:  `Display the current StepRecorder settings.`,
	Example: `  # Show settings as YAML (default)
  steprecorder config show

  # Show settings as JSON
  steprecorder config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a settings value",
	Long:  `Set and save a specific settings value.`,
	Example: `  # Wait at least half a second between captured clicks
  steprecorder config set delay 0.5

  # Always write both the HTML report and the ZIP archive
  steprecorder config set format both`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a settings value",
	Long:  `Get a specific settings value.`,
	Example: `  # Get the stop hotkey
  steprecorder config get stop_hotkey`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Long:  `Display the path to the settings file.`,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	settings := configMgr.Get()

	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(settings)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(settings)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := configMgr.Set(key, value); err != nil {
		return err
	}

	saved, _ := configMgr.Lookup(key)
	fmt.Printf("Settings updated: %s = %s\n", key, saved)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	value, ok := configMgr.Lookup(key)
	if !ok {
		return fmt.Errorf("settings key not found: %s (known keys: %v)", key, config.Keys())
	}

	fmt.Println(value)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	fmt.Println(configMgr.Path())
	return nil
}
