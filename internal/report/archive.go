package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"

	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	"github.com/bryanchriswhite/StepRecorder/internal/recorder"
)

// WriteArchive writes a ZIP holding report.html plus one PNG per step that
// has a screenshot, referenced from the document by ScreenshotPath.
func WriteArchive(w io.Writer, meta Meta, steps []recorder.Step) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	sorted := Sorted(steps)

	doc, err := create(zw, DocumentName, meta)
	if err != nil {
		return err
	}
	if err := render(doc, meta, sorted, linkedImage); err != nil {
		return err
	}

	for _, s := range sorted {
		if !s.HasScreenshot() {
			continue
		}
		f, err := create(zw, ScreenshotPath(s.Sequence), meta)
		if err != nil {
			return err
		}
		if _, err := f.Write(s.Screenshot); err != nil {
			return fmt.Errorf("write step %d screenshot: %w", s.Sequence, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// create adds an entry stamped with the generation time so archives are reproducible
func create(zw *zip.Writer, name string, meta Meta) (io.Writer, error) {
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: meta.GeneratedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", name, err)
	}
	return f, nil
}

// SaveArchive writes the archive to path
func SaveArchive(path string, meta Meta, steps []recorder.Step) error {
	var buf bytes.Buffer
	if err := WriteArchive(&buf, meta, steps); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	logger.WithComponent("report").Info().
		Str("path", path).
		Int("steps", len(steps)).
		Msg("ZIP report saved")
	return nil
}
