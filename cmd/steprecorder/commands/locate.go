package commands

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"text/tabwriter"

	"github.com/bryanchriswhite/StepRecorder/internal/window"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show what the recorder sees at a screen point",
	Long: `Query the active window and, when a point is given, the window and UI
element under it, the same way a recorded click is described.

Useful for checking which lookup tiers work on this desktop.`,
	Example: `  # Show the active window
  steprecorder locate

  # Describe the element at (640, 360)
  steprecorder locate --x 640 --y 360

  # Output as JSON
  steprecorder locate --x 640 --y 360 --format json`,
	Args: cobra.NoArgs,
	RunE: runLocate,
}

var (
	locateX      int
	locateY      int
	locateFormat string
)

func init() {
	rootCmd.AddCommand(locateCmd)

	locateCmd.Flags().IntVar(&locateX, "x", -1, "screen x coordinate")
	locateCmd.Flags().IntVar(&locateY, "y", -1, "screen y coordinate")
	locateCmd.Flags().StringVarP(&locateFormat, "format", "f", "table", "output format (table or json)")
}

type locateResult struct {
	Strategies   []string           `json:"strategies"`
	ActiveTitle  string             `json:"active_title"`
	ActiveWindow *window.WindowInfo `json:"active_window,omitempty"`
	Point        *image.Point       `json:"point,omitempty"`
	WindowAt     *window.WindowInfo `json:"window_at,omitempty"`
	TitleAt      string             `json:"title_at,omitempty"`
	Element      *window.Element    `json:"element,omitempty"`
}

func runLocate(cmd *cobra.Command, args []string) error {
	backend, err := window.NewX11Backend()
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer backend.Close()

	strategies := []window.Strategy{}
	if a11y, err := window.NewAccessibilityStrategy(); err == nil {
		defer a11y.Close()
		strategies = append(strategies, a11y)
	}
	strategies = append(strategies, window.NewHandleStrategy(backend))
	locator := window.NewLocator(backend, strategies...)

	res := locateResult{
		Strategies:  locator.Strategies(),
		ActiveTitle: locator.ActiveWindowTitle(),
	}
	if id, err := backend.ActiveWindow(); err == nil {
		res.ActiveWindow, _ = backend.GetWindowInfo(backend.ClientWindow(id))
	}

	if locateX >= 0 && locateY >= 0 {
		pt := image.Pt(locateX, locateY)
		res.Point = &pt
		res.TitleAt = locator.TitleAt(pt.X, pt.Y)
		if id, err := backend.WindowAt(pt.X, pt.Y); err == nil {
			res.WindowAt, _ = backend.GetWindowInfo(id)
		}
		el := locator.ElementAt(pt.X, pt.Y)
		res.Element = &el
	}

	switch locateFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res)
	case "table":
		printLocateTable(res)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", locateFormat)
	}
}

func printLocateTable(res locateResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Strategies:\t%v\n", res.Strategies)
	fmt.Fprintf(w, "Active title:\t%q\n", res.ActiveTitle)
	if res.ActiveWindow != nil {
		printWindow(w, "Active window:", res.ActiveWindow)
	}
	if res.Point == nil {
		return
	}

	fmt.Fprintf(w, "Point:\t(%d, %d)\n", res.Point.X, res.Point.Y)
	fmt.Fprintf(w, "Title at point:\t%q\n", res.TitleAt)
	if res.WindowAt != nil {
		printWindow(w, "Window at point:", res.WindowAt)
	}
	if res.Element == nil || !res.Element.Found() {
		fmt.Fprintln(w, "Element:\t(none)")
		return
	}
	fmt.Fprintf(w, "Element:\t%s\n", res.Element.Label)
	fmt.Fprintf(w, "Element source:\t%s\n", res.Element.Source)
	if !res.Element.Bounds.Empty() {
		fmt.Fprintf(w, "Element bounds:\t%v\n", res.Element.Bounds)
	}
}

func printWindow(w *tabwriter.Writer, heading string, info *window.WindowInfo) {
	fmt.Fprintf(w, "%s\t0x%x %q [%s] pid %d\n", heading, info.ID, info.Title, info.Class, info.PID)
	g := info.Geometry
	fmt.Fprintf(w, "\t%dx%d+%d+%d\n", g.Width, g.Height, g.X, g.Y)
}
