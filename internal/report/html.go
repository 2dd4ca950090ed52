// Package report renders a recorded session as an HTML document or a ZIP archive.
package report

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"sort"
	"time"

	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	"github.com/bryanchriswhite/StepRecorder/internal/recorder"
)

const (
	// DocumentName is the report's file name inside an archive
	DocumentName = "report.html"

	timeLayout = "2006-01-02 15:04:05"
)

//go:embed report.html.tmpl
var documentSource string

var document = template.Must(template.New("report").Parse(documentSource))

// Meta describes the session a report is generated for. The same Meta and
// steps always produce the same bytes.
type Meta struct {
	SessionID   string
	GeneratedAt time.Time
}

type documentView struct {
	SessionID   string
	GeneratedAt string
	Count       int
	Steps       []stepView
}

type stepView struct {
	Number   int
	Time     string
	Action   string
	Position string
	Title    string
	Element  string
	Details  string
	Image    template.URL
}

// imageSource returns the img src for a step, or "" when the step has none
type imageSource func(recorder.Step) template.URL

// ScreenshotPath is the archive-relative path of a step's screenshot
func ScreenshotPath(sequence int) string {
	return fmt.Sprintf("screenshots/step_%03d.png", sequence)
}

// Sorted returns a copy of steps in ascending sequence order
func Sorted(steps []recorder.Step) []recorder.Step {
	out := make([]recorder.Step, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func embeddedImage(s recorder.Step) template.URL {
	if !s.HasScreenshot() {
		return ""
	}
	// Screenshot bytes are our own PNG encoding, never caller-supplied markup
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(s.Screenshot))
}

func linkedImage(s recorder.Step) template.URL {
	if !s.HasScreenshot() {
		return ""
	}
	return template.URL(ScreenshotPath(s.Sequence))
}

// WriteHTML writes a self-contained document with every screenshot inlined
func WriteHTML(w io.Writer, meta Meta, steps []recorder.Step) error {
	return render(w, meta, steps, embeddedImage)
}

func render(w io.Writer, meta Meta, steps []recorder.Step, src imageSource) error {
	sorted := Sorted(steps)
	view := documentView{
		SessionID:   meta.SessionID,
		GeneratedAt: meta.GeneratedAt.Format(timeLayout),
		Count:       len(sorted),
		Steps:       make([]stepView, 0, len(sorted)),
	}
	for _, s := range sorted {
		v := stepView{
			Number:  s.Sequence,
			Time:    s.Timestamp.Format(timeLayout),
			Action:  s.Action.String(),
			Title:   s.WindowTitle,
			Element: s.Element,
			Details: s.Details,
			Image:   src(s),
		}
		if s.Position != nil {
			v.Position = fmt.Sprintf(" at (%d, %d)", s.Position.X, s.Position.Y)
		}
		view.Steps = append(view.Steps, v)
	}

	if err := document.Execute(w, view); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// SaveHTML writes the self-contained document to path
func SaveHTML(path string, meta Meta, steps []recorder.Step) error {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, meta, steps); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logger.WithComponent("report").Info().
		Str("path", path).
		Int("steps", len(steps)).
		Msg("HTML report saved")
	return nil
}
