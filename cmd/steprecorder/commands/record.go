package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bryanchriswhite/StepRecorder/internal/api"
	"github.com/bryanchriswhite/StepRecorder/internal/capture"
	"github.com/bryanchriswhite/StepRecorder/internal/config"
	"github.com/bryanchriswhite/StepRecorder/internal/hotkey"
	"github.com/bryanchriswhite/StepRecorder/internal/input"
	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	"github.com/bryanchriswhite/StepRecorder/internal/recorder"
	"github.com/bryanchriswhite/StepRecorder/internal/report"
	"github.com/bryanchriswhite/StepRecorder/internal/window"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a session",
	Long: `Record clicks and keyboard input until the stop hotkey is pressed, the
process is interrupted, or the session is stopped over the control API.

When the session ends the recorded steps are written as a self-contained HTML
report and/or a ZIP archive with the screenshots as separate files.`,
	Example: `  # Record with saved settings, stop with Ctrl+Shift+F9
  steprecorder record

  # Record to bug-1234.html and bug-1234.zip, capturing the whole screen
  steprecorder record -o bug-1234 --zip --fullscreen

  # Record with a live control server
  steprecorder record --listen localhost:8090

  # Remember the flags as the new defaults
  steprecorder record -d 0.5 --no-keyboard --save`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	f := recordCmd.Flags()
	f.StringP("output", "o", "", "report name without extension (default \"steps_report\")")
	f.Float64P("delay", "d", 0, "minimum seconds between captured clicks (default 0.3)")
	f.Bool("no-keyboard", false, "do not record keyboard input")
	f.Bool("fullscreen", false, "capture the whole screen instead of the active window")
	f.String("format", "", "report format: html, zip or both (default \"html\")")
	f.Bool("zip", false, "Also generate a ZIP archive")
	f.String("hotkey", "", "stop hotkey, e.g. ctrl+shift+f9")
	f.String("listen", "", "serve the control API on this address, e.g. localhost:8090")
	f.Uint32("own-window", 0, "X11 id of a window whose clicks are never recorded")
	f.Bool("save", false, "save the effective settings as the new defaults")

	// Bind flags to viper
	viper.BindPFlag("record.output", f.Lookup("output"))
	viper.BindPFlag("record.delay", f.Lookup("delay"))
	viper.BindPFlag("record.no_keyboard", f.Lookup("no-keyboard"))
	viper.BindPFlag("record.fullscreen", f.Lookup("fullscreen"))
	viper.BindPFlag("record.format", f.Lookup("format"))
	viper.BindPFlag("record.zip", f.Lookup("zip"))
	viper.BindPFlag("record.stop_hotkey", f.Lookup("hotkey"))
	viper.BindPFlag("record.listen", f.Lookup("listen"))
	viper.BindPFlag("record.own_window", f.Lookup("own-window"))
	viper.BindPFlag("record.save", f.Lookup("save"))
}

// applyRecordFlags overrides saved settings with the flags given on the command line
func applyRecordFlags(s config.Settings, v *viper.Viper) config.Settings {
	if v.IsSet("record.output") {
		s.Output = v.GetString("record.output")
	}
	if v.IsSet("record.delay") {
		s.Delay = v.GetFloat64("record.delay")
	}
	if v.IsSet("record.no_keyboard") {
		s.RecordKeyboard = !v.GetBool("record.no_keyboard")
	}
	if v.IsSet("record.fullscreen") {
		s.Fullscreen = v.GetBool("record.fullscreen")
	}
	if v.IsSet("record.format") {
		s.Format = v.GetString("record.format")
	}
	if v.IsSet("record.zip") && v.GetBool("record.zip") {
		s.Format = config.FormatBoth
	}
	if v.IsSet("record.stop_hotkey") {
		s.StopHotkey = v.GetString("record.stop_hotkey")
	}
	if v.IsSet("record.listen") {
		s.Listen = v.GetString("record.listen")
	}
	if v.IsSet("record.own_window") {
		s.OwnWindow = v.GetUint32("record.own_window")
	}
	s.Normalize()
	return s
}

// reportPaths returns the HTML and ZIP destinations for the configured output
// name; a path is empty when that format is not wanted.
func reportPaths(s config.Settings) (htmlPath, zipPath string) {
	base := s.Output
	switch strings.ToLower(filepath.Ext(base)) {
	case ".html", ".htm", ".zip":
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if s.WantsHTML() {
		htmlPath = base + ".html"
	}
	if s.WantsZIP() {
		zipPath = base + ".zip"
	}
	return htmlPath, zipPath
}

// writeReports saves every wanted format and returns the written paths
func writeReports(s config.Settings, meta report.Meta, steps []recorder.Step) ([]string, error) {
	htmlPath, zipPath := reportPaths(s)
	var written []string

	if htmlPath != "" {
		if err := report.SaveHTML(htmlPath, meta, steps); err != nil {
			return written, err
		}
		written = append(written, htmlPath)
	}
	if zipPath != "" {
		if err := report.SaveArchive(zipPath, meta, steps); err != nil {
			return written, err
		}
		written = append(written, zipPath)
	}
	return written, nil
}

// session holds the platform collaborators of one recording
type session struct {
	backend  window.Backend
	a11y     *window.AccessibilityStrategy
	locator  *window.Locator
	own      *window.OwnWindow
	capturer *capture.Capturer
	source   *input.HookSource
}

func (s *session) Close() {
	if s.source != nil {
		s.source.Close()
	}
	if s.a11y != nil {
		s.a11y.Close()
	}
	if s.backend != nil {
		s.backend.Close()
	}
}

// openSession connects to the display and installs the input hook. Window
// and element lookups degrade when unavailable; the input hook is required.
func openSession(settings config.Settings) (*session, error) {
	log := logger.WithComponent("record")
	s := &session{}

	var strategies []window.Strategy
	if a11y, err := window.NewAccessibilityStrategy(); err == nil {
		s.a11y = a11y
		strategies = append(strategies, a11y)
	} else {
		log.Warn().Err(err).Msg("Accessibility bus unavailable, element names limited to window handles")
	}

	if x11, err := window.NewX11Backend(); err == nil {
		s.backend = x11
		strategies = append(strategies, window.NewHandleStrategy(x11))
	} else {
		log.Warn().Err(err).Msg("X11 unavailable, window titles will be unknown")
	}

	s.locator = window.NewLocator(s.backend, strategies...)
	s.locator.SetExcluded(settings.OwnWindow)
	s.own = window.NewOwnWindow(s.backend, settings.OwnWindow)
	s.capturer = capture.NewCapturer(capture.NewRouter(), s.locator)

	log.Info().
		Strs("strategies", s.locator.Strategies()).
		Uint32("own_window", s.own.ID()).
		Msg("Locator ready")

	s.source = input.NewHookSource()
	if err := s.source.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to install input hook: %w", err)
	}
	return s, nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize settings manager: %w", err)
	}

	settings := applyRecordFlags(configMgr.Get(), viper.GetViper())

	chord, err := hotkey.Parse(settings.StopHotkey)
	if err != nil {
		return fmt.Errorf("invalid stop hotkey: %w", err)
	}

	if viper.GetBool("record.save") {
		// Settings persistence never blocks a recording
		if err := configMgr.Update(settings); err != nil {
			logger.WithComponent("record").Warn().Err(err).Msg("Failed to save settings")
		}
	}

	sess, err := openSession(settings)
	if err != nil {
		return err
	}
	defer sess.Close()

	engine, err := recorder.NewEngine(recorder.Options{
		MinDelay:       time.Duration(settings.Delay * float64(time.Second)),
		RecordKeyboard: settings.RecordKeyboard,
		Fullscreen:     settings.Fullscreen,
		StopHotkey:     chord,
		Source:         sess.source,
		Locator:        sess.locator,
		OwnWindow:      sess.own,
		Capturer:       sess.capturer,
	})
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.Listen != "" {
		server := api.NewServer(engine, configMgr)
		engine.AddObserver(server.Publish)

		serverCtx, cancelServer := context.WithCancel(ctx)
		defer cancelServer()
		go func() {
			if err := server.ListenAndServe(serverCtx, settings.Listen); err != nil {
				logger.WithComponent("record").Error().Err(err).Msg("Control server failed")
			}
		}()
	}

	fmt.Println("StepRecorder")
	fmt.Println("============")
	fmt.Printf("Recording session %s\n", engine.ID())
	fmt.Printf("   - Press %s or Ctrl+C to stop\n", chord)
	if settings.Listen != "" {
		fmt.Printf("   - Control API: http://%s/api\n", settings.Listen)
	}
	fmt.Println()

	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	steps, err := engine.Result()
	if errors.Is(err, recorder.ErrNoSteps) {
		fmt.Println("No steps recorded.")
		return nil
	}
	if err != nil {
		return err
	}

	written, err := writeReports(settings, report.Meta{
		SessionID:   engine.ID(),
		GeneratedAt: time.Now(),
	}, steps)
	for _, path := range written {
		fmt.Printf("Report saved: %s (%d step(s))\n", path, len(steps))
	}
	return err
}
