// Package ocr turns an uploaded image or PDF into plain text under a
// strict latency budget. It is deliberately single-path: one OCR
// configuration, no multi-stage enhancement, no online OCR services,
// no LLM-vision fallback inside this package.
package ocr

import (
	"context"
	"time"

	"github.com/BaSui01/agentflow/types"
)

// Method identifies which extraction path produced a Result.
type Method string

const (
	MethodTesseract Method = "tesseract_ocr"
	MethodDirectPDF Method = "direct_pdf"
)

// Result is the output of Extract.
type Result struct {
	Text      string
	Method    Method
	ElapsedMs int64
}

// Engine extracts text from uploaded bytes.
type Engine struct {
	tesseract *Tesseract
	maxSize   int64
}

// Config configures the Engine.
type Config struct {
	TesseractPath   string
	LanguagePackDir string
	Languages       []string
	Timeout         time.Duration
	MaxUploadBytes  int64
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		tesseract: NewTesseract(cfg.TesseractPath, cfg.Languages, cfg.Timeout),
		maxSize:   cfg.MaxUploadBytes,
	}
}

// Extract implements the algorithm from the spec: direct PDF text-layer
// extraction first (never rasterize-then-OCR a PDF), else a single-pass
// grayscale-resize-then-tesseract image path.
func (e *Engine) Extract(ctx context.Context, fileBytes []byte, mime string) (*Result, error) {
	start := time.Now()

	if int64(len(fileBytes)) > e.maxSize {
		return nil, &types.Error{Code: types.ErrInputTooLarge, Message: "upload exceeds configured maximum size", HTTPStatus: 413}
	}

	if IsPDF(mime) {
		text, ok := ExtractPDFText(fileBytes)
		if ok {
			return &Result{Text: text, Method: MethodDirectPDF, ElapsedMs: time.Since(start).Milliseconds()}, nil
		}
		// Scanned-image-only PDF: policy is to NOT rasterize+OCR (latency).
		return &Result{Text: "", Method: MethodDirectPDF, ElapsedMs: time.Since(start).Milliseconds()}, nil
	}

	if !IsSupportedImage(mime) {
		return nil, &types.Error{Code: types.ErrUnsupportedMime, Message: "unsupported mime type: " + mime, HTTPStatus: 400}
	}

	raster, err := DecodeAndPrepare(fileBytes, mime)
	if err != nil {
		return nil, &types.Error{Code: types.ErrDecodeFailed, Message: err.Error(), HTTPStatus: 400, Cause: err}
	}

	text, err := e.tesseract.Run(ctx, raster)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:      CleanText(text),
		Method:    MethodTesseract,
		ElapsedMs: time.Since(start).Milliseconds(),
	}, nil
}

// IsPDF reports whether mime denotes a PDF document.
func IsPDF(mime string) bool {
	return mime == "application/pdf"
}

var supportedImageMimes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// IsSupportedImage reports whether mime is one of the engine's seven
// supported image MIME types (six formats; image/jpg is an alias of
// image/jpeg).
func IsSupportedImage(mime string) bool {
	return supportedImageMimes[mime]
}
