package conversion

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/printmitra/printmitra-backend/pkg/config"
	pkgerrors "github.com/printmitra/printmitra-backend/pkg/errors"
)

// localConverter shells out to a headless office binary.
type localConverter struct {
	binary  string
	timeout time.Duration
}

func newLocalConverter(cfg config.ConversionConfig) *localConverter {
	binary := cfg.LocalBinary
	if binary == "" {
		binary = "soffice"
	}
	timeout := cfg.LocalTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &localConverter{binary: binary, timeout: timeout}
}

func (l *localConverter) Convert(ctx context.Context, docx []byte) ([]byte, error) {
	workdir, err := os.MkdirTemp("", "pm-convert-*")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create conversion workdir")
	}
	defer func() { _ = os.RemoveAll(workdir) }()

	input := filepath.Join(workdir, "document.docx")
	if err := os.WriteFile(input, docx, 0o600); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write conversion input")
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.binary,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", workdir,
		input,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if ctx.Err() == context.DeadlineExceeded {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "local conversion timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err,
			fmt.Sprintf("local conversion failed: %s", msg))
	}

	pdf, err := os.ReadFile(filepath.Join(workdir, "document.pdf"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "local conversion produced no pdf")
	}
	return pdf, nil
}
