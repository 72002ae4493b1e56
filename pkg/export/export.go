// Package export renders a mounted map to files: SVG and PNG snapshots, a
// self-contained interactive HTML page, a markdown report, JSON and SQLite.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/nodemap/pkg/analysis"
	"github.com/vanderheijden86/nodemap/pkg/engine"
	"github.com/vanderheijden86/nodemap/pkg/i18n"
	"github.com/vanderheijden86/nodemap/pkg/loader"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"github.com/vanderheijden86/nodemap/pkg/theme"
	"github.com/vanderheijden86/nodemap/pkg/viewport"
)

// Format is an export file type.
type Format string

const (
	FormatSVG      Format = "svg"
	FormatPNG      Format = "png"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatSQLite   Format = "db"
)

// Formats lists every supported format.
var Formats = []Format{FormatSVG, FormatPNG, FormatHTML, FormatMarkdown, FormatJSON, FormatSQLite}

// ParseFormat accepts a format name or a common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	case "html", "htm":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "db", "sqlite", "sqlite3":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Labels are the translated strings exporters print.
type Labels struct {
	Hint    string
	ZoomIn  string
	ZoomOut string
	Reset   string
	Close   string
	Empty   string

	NoDescription string
}

// Document is everything an exporter needs about one map.
type Document struct {
	Title      string
	Snapshot   model.MapSnapshot
	Palette    theme.Palette
	Language   i18n.Language
	Labels     Labels
	Viewport   viewport.Config
	Transform  viewport.Transform
	Emphasized []int
	Stats      *analysis.Stats
}

// NewDocument captures inst's current state with strings from tr.
func NewDocument(inst *engine.Instance, tr *i18n.Translator, pal theme.Palette) Document {
	return Document{
		Title:    tr.T("map.title"),
		Snapshot: inst.Snapshot(),
		Palette:  pal,
		Language: tr.Language(),
		Labels: Labels{
			Hint:    tr.T("map.hint"),
			ZoomIn:  tr.T("controls.zoom_in"),
			ZoomOut: tr.T("controls.zoom_out"),
			Reset:   tr.T("controls.reset"),
			Close:   tr.T("modal.close"),
			Empty:   tr.T("map.empty"),

			NoDescription: tr.T("modal.no_description"),
		},
		Viewport:   inst.Viewport().Config(),
		Transform:  inst.Viewport().Transform(),
		Emphasized: inst.Interaction().Emphasized(),
	}
}

// emphasized returns the emphasized edge indices as a set.
func (d Document) emphasized() map[int]bool {
	set := make(map[int]bool, len(d.Emphasized))
	for _, i := range d.Emphasized {
		set[i] = true
	}
	return set
}

// Render writes doc in format f. SQLite needs a file path; use WriteFile.
func Render(w io.Writer, f Format, doc Document) error {
	switch f {
	case FormatSVG:
		return WriteSVG(w, doc)
	case FormatPNG:
		return WritePNG(w, doc, DefaultPNGSize)
	case FormatHTML:
		return WriteHTML(w, doc)
	case FormatMarkdown:
		_, err := io.WriteString(w, GenerateMarkdown(doc))
		return err
	case FormatJSON:
		return WriteJSON(w, doc)
	case FormatSQLite:
		return fmt.Errorf("%s export needs a file path", f)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteFile renders doc to path, creating parent directories.
func WriteFile(ctx context.Context, path string, f Format, doc Document) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	if f == FormatSQLite {
		_ = os.Remove(path)
		return loader.WriteSQLite(ctx, path, "items", doc.Snapshot.Items)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(file, f, doc); err != nil {
		file.Close()
		return fmt.Errorf("render %s: %w", f, err)
	}
	return file.Close()
}

// WriteFiles renders doc once per format, concurrently, to base.<format>.
// It returns the written paths in the order of formats.
func WriteFiles(ctx context.Context, base string, formats []Format, doc Document) ([]string, error) {
	paths := make([]string, len(formats))
	eg, ctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		paths[i] = base + "." + string(f)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return WriteFile(ctx, paths[i], f, doc)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// GenerateFilename builds an export base name:
// {project}_{YYYYMMDD}_{HHMMSS}_{gitshort}
func GenerateFilename(projectName string) string {
	dateStr := time.Now().Format("20060102_150405")

	gitShort := "nogit"
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	if output, err := cmd.Output(); err == nil {
		gitShort = strings.TrimSpace(string(output))
	}

	safeName := strings.NewReplacer(" ", "_", "/", "_", string(filepath.Separator), "_").Replace(projectName)
	if safeName == "" {
		safeName = "nodemap"
	}
	return fmt.Sprintf("%s_%s_%s", safeName, dateStr, gitShort)
}
