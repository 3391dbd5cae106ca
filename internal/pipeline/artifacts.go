package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot/vg"

	"github.com/ppiankov/libertas/internal/llm"
	"github.com/ppiankov/libertas/internal/model"
)

// Plot size matching a 150 dpi export of the default figure
const (
	plotWidth  = 6.4 * vg.Inch
	plotHeight = 4.8 * vg.Inch
)

// Artifact is one file written by RenderReport
type Artifact struct {
	Kind string
	Path string
}

// RenderReport writes every configured artifact for a completed report.
// Each file is rendered to a temporary name beside its destination and
// renamed only when all of them succeeded, so a failure leaves no partial
// artifact set behind.
func (p *Pipeline) RenderReport(report *model.Report) ([]Artifact, error) {
	out := p.config.Output
	st := &staging{}

	if err := p.stageArtifacts(st, report, out); err != nil {
		st.discard()
		return nil, err
	}
	return st.commit()
}

func (p *Pipeline) stageArtifacts(st *staging, report *model.Report, out model.OutputConfig) error {
	// Render JSON
	if out.JSONPath != "" {
		if err := st.write("JSON", out.JSONPath, func(path string) error {
			return p.renderer.RenderJSON(report, path)
		}); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	}

	// Render Markdown
	if out.MDPath != "" {
		if err := st.write("Markdown", out.MDPath, func(path string) error {
			return p.renderer.RenderMarkdown(report, path)
		}); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
	}

	// Render LLM summary to separate file if present
	if report.LLM != nil && report.LLM.Enabled && out.MDPath != "" {
		llmMdPath := strings.TrimSuffix(out.MDPath, ".md") + ".llm.md"
		if err := st.write("LLM Summary", llmMdPath, func(path string) error {
			return p.renderer.RenderLLMMarkdown(llm.RenderSeparateMarkdown(report.LLM), path)
		}); err != nil {
			st.drop(llmMdPath)
			p.logger.Warn("Failed to write LLM summary", "path", llmMdPath, "error", err)
		}
	}

	if out.PlotPath != "" {
		if err := st.write("Plot", out.PlotPath, func(path string) error {
			return NewPlotRenderer(plotWidth, plotHeight).Render(report, path)
		}); err != nil {
			return fmt.Errorf("render plot: %w", err)
		}
	}

	if out.XLSXPath != "" {
		if err := st.write("Workbook", out.XLSXPath, func(path string) error {
			return p.renderer.RenderXLSX(report, path)
		}); err != nil {
			return fmt.Errorf("render workbook: %w", err)
		}
	}

	if path := p.config.Telemetry.MetricsFile; path != "" {
		if err := st.write("Metrics", path, p.telemetry.WriteMetrics); err != nil {
			return err
		}
	}

	return nil
}

type stagedArtifact struct {
	Artifact
	temp string
}

// staging collects rendered artifacts under temporary names until commit
type staging struct {
	files []stagedArtifact
}

// write reserves a temporary file next to path and renders into it.
// The temporary name keeps the extension of path, since the plot and
// workbook writers choose their encoding from it.
func (s *staging) write(kind, path string, render func(string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".libertas-*-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	temp := f.Name()
	s.files = append(s.files, stagedArtifact{Artifact: Artifact{Kind: kind, Path: path}, temp: temp})

	if err := f.Close(); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Chmod(temp, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	return render(temp)
}

// drop discards the staged file for path, leaving the others in place
func (s *staging) drop(path string) {
	kept := s.files[:0]
	for _, f := range s.files {
		if f.Path == path {
			_ = os.Remove(f.temp)
			continue
		}
		kept = append(kept, f)
	}
	s.files = kept
}

func (s *staging) discard() {
	for _, f := range s.files {
		_ = os.Remove(f.temp)
	}
	s.files = nil
}

// commit renames every staged file onto its destination. If a rename
// fails, the destinations already published in this call are removed.
func (s *staging) commit() ([]Artifact, error) {
	published := make([]Artifact, 0, len(s.files))
	for i, f := range s.files {
		if err := os.Rename(f.temp, f.Path); err != nil {
			for _, rest := range s.files[i:] {
				_ = os.Remove(rest.temp)
			}
			for _, a := range published {
				_ = os.Remove(a.Path)
			}
			s.files = nil
			return nil, fmt.Errorf("publish %s: %w", f.Path, err)
		}
		published = append(published, f.Artifact)
	}
	s.files = nil
	return published, nil
}

// Renderer returns the report renderer
func (p *Pipeline) Renderer() *Renderer {
	return p.renderer
}
