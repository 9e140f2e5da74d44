package ocr

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/BaSui01/agentflow/types"
)

// Tesseract wraps a single invocation of the local tesseract CLI binary.
// No multi-stage retry, no alternative engines: one config, one call.
type Tesseract struct {
	binPath string
	langs   string
	timeout time.Duration
}

func NewTesseract(binPath string, languages []string, timeout time.Duration) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if len(languages) == 0 {
		languages = []string{"deu", "eng", "rus", "ukr"}
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Tesseract{
		binPath: binPath,
		langs:   strings.Join(languages, "+"),
		timeout: timeout,
	}
}

// Run invokes tesseract once against the prepared grayscale raster,
// reading the image from stdin and the recognized text from stdout.
func (t *Tesseract) Run(ctx context.Context, raster []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.binPath,
		"stdin", "stdout",
		"-l", t.langs,
		"--oem", "3",
		"--psm", "6",
	)
	cmd.Stdin = bytes.NewReader(raster)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(err, exec.ErrNotFound) {
		return "", &types.Error{Code: types.ErrOcrBinaryMissing, Message: "tesseract binary not found", HTTPStatus: 500, Cause: err}
	}
	if ctx.Err() != nil {
		return "", &types.Error{Code: types.ErrOcrTimeout, Message: "ocr extraction exceeded hard timeout", HTTPStatus: 504}
	}
	if err != nil {
		return "", &types.Error{Code: types.ErrOcrBinaryMissing, Message: "tesseract invocation failed: " + stderr.String(), HTTPStatus: 500, Cause: err}
	}

	return stdout.String(), nil
}

// Available reports whether the configured tesseract binary can be located,
// used by the /ocr-status observability endpoint.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.binPath)
	return err == nil
}

// Version returns the tesseract binary's reported version string, best
// effort — empty on any failure.
func (t *Tesseract) Version(ctx context.Context) string {
	cmd := exec.CommandContext(ctx, t.binPath, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}
	lines := strings.SplitN(out.String(), "\n", 2)
	return strings.TrimSpace(lines[0])
}
