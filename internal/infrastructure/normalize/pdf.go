package normalize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const basePDFDPI = 72

// PageRasterizer converts single PDF pages to PNG. Pages are 1-based.
type PageRasterizer interface {
	PageCount(ctx context.Context, pdf []byte) (int, error)
	RenderPage(ctx context.Context, pdf []byte, page int, scale float64) ([]byte, error)
}

// CommandRunner runs an external binary and returns its stderr on failure.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// PopplerRasterizer counts pages with pdfcpu and renders them with pdftoppm.
type PopplerRasterizer struct {
	binary string
	runner CommandRunner
	conf   *model.Configuration
}

func NewPopplerRasterizer(binary string, runner CommandRunner) *PopplerRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if runner == nil {
		runner = execRunner{}
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PopplerRasterizer{binary: binary, runner: runner, conf: conf}
}

func (p *PopplerRasterizer) PageCount(_ context.Context, pdf []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(pdf), p.conf)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}

func (p *PopplerRasterizer) RenderPage(ctx context.Context, pdf []byte, page int, scale float64) ([]byte, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	dir, err := os.MkdirTemp("", "blueprint-page-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}
	prefix := filepath.Join(dir, "page")
	pageArg := strconv.Itoa(page)

	stderr, err := p.runner.Run(ctx, p.binary, renderArgs(pageArg, scale, in, prefix)...)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, bytes.TrimSpace(stderr))
	}

	out, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	return out, nil
}

func renderArgs(page string, scale float64, in, prefix string) []string {
	dpi := int(basePDFDPI * scale)
	return []string{
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", page,
		"-l", page,
		"-singlefile",
		in,
		prefix,
	}
}
