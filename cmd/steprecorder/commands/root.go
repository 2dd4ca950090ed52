package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/StepRecorder/internal/config"
	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "steprecorder",
		Short: "StepRecorder - record what the user did as a shareable report",
		Long: `StepRecorder watches pointer clicks and keyboard input system-wide and
turns them into a numbered list of steps, each with the window title, the UI
element under the cursor and an annotated screenshot.

Features:
  • System-wide click and keyboard capture
  • Window title and UI element lookup (AT-SPI, X11)
  • Annotated screenshots of every click
  • Typed text is counted, never stored
  • Self-contained HTML report or ZIP archive
  • Stop hotkey, pause/resume and live step feed over HTTP`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogging()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is $HOME/.config/steprecorder/settings.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON instead of console text")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// initLogging applies the --log-level flag, falling back to the saved setting
func initLogging() {
	level := config.Defaults().LogLevel
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		level = viper.GetString("log_level")
	} else if path := GetConfigFile(); path != "" || fileExists(defaultSettingsPath()) {
		if mgr, err := config.NewManager(path); err == nil {
			level = mgr.Get().LogLevel
		}
	}
	logger.Init(level, !viper.GetBool("log_json"))
}

func defaultSettingsPath() string {
	path, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return path
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the settings file path
func GetConfigFile() string {
	return cfgFile
}
