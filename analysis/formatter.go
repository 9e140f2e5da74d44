// Package analysis composes the analysis prompt, invokes the LLM
// Router, strips disallowed markup from its answer, and splits the
// result into the fixed set of named sections the API surfaces.
package analysis

import (
	"context"
	"regexp"
	"strings"

	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/types"
)

// Result is the user-visible analysis, plus which provider/model
// produced it — mirrored directly into the analyze-file API response.
type Result struct {
	Sections     map[string]string
	FullText     string
	ProviderUsed string
	ModelUsed    string
}

// sectionIcons prefixes each section in the synthesized full_text,
// purely for display.
var sectionIcons = map[string]string{
	"summary": "📝", "sender_info": "✉️", "document_type": "📄",
	"key_content": "🔎", "required_actions": "✅", "deadlines": "⏰",
	"consequences": "⚠️", "urgency_level": "🚨", "response_template": "💬",
}

// Formatter produces the structured analysis for one document.
type Formatter struct {
	router *llm.Router
}

// NewFormatter binds a Formatter to the process-wide Router.
func NewFormatter(router *llm.Router) *Formatter {
	return &Formatter{router: router}
}

// Request bundles everything the Formatter needs for one analyze-file
// call.
type Request struct {
	Language          string
	ExtractedText     string
	Image             *types.ImageContent
	UserKeys          llm.UserKeys
	PreferredProvider string
	PreferredModel    string
	UserID            string
	TraceID           string
}

// Analyze renders the prompt, calls the Router, and formats the
// response. A scanned PDF with no extractable text layer and no
// vision fallback (Image is never attached for PDF uploads) still
// produces a 200 response: the prompt's own "no document content"
// branch drives the LLM call, and the returned summary section is
// replaced with a precise absence statement rather than whatever
// filler the model invents from nothing.
func (f *Formatter) Analyze(ctx context.Context, req Request) (*Result, error) {
	prompt, err := BuildPrompt(req.Language, req.ExtractedText, req.Image != nil)
	if err != nil {
		return nil, err
	}

	genReq := &llm.GenerateRequest{
		TraceID:           req.TraceID,
		UserID:            req.UserID,
		Messages:          []llm.Message{llm.NewUserMessage(prompt)},
		UserKeys:          req.UserKeys,
		PreferredProvider: req.PreferredProvider,
		PreferredModel:    req.PreferredModel,
	}
	// Attach the image only when OCR produced nothing — otherwise the
	// extracted text already carries the document's content.
	if req.ExtractedText == "" && req.Image != nil {
		genReq.Image = req.Image
	}

	genRes, err := f.router.Generate(ctx, genReq)
	if err != nil {
		return nil, err
	}

	sections := Split(req.Language, CleanMarkup(genRes.Text))
	if req.ExtractedText == "" && req.Image == nil {
		sections["summary"] = noTextSummary(req.Language)
	}

	return &Result{
		Sections:     sections,
		FullText:     BuildFullText(req.Language, sections),
		ProviderUsed: genRes.ProviderUsed,
		ModelUsed:    genRes.ModelUsed,
	}, nil
}

var (
	bulletGlyphRe  = regexp.MustCompile(`(?m)^[ \t]*[•◦▪·\-–]+[ \t]*`)
	excessBlankRe  = regexp.MustCompile(`\n{3,}`)
	starHashBacktk = regexp.MustCompile("[*#`]")
)

// CleanMarkup strips *, #, backticks, leading bullet glyphs, and
// collapses runs of two or more blank lines into a single blank line.
func CleanMarkup(text string) string {
	text = bulletGlyphRe.ReplaceAllString(text, "")
	text = starHashBacktk.ReplaceAllString(text, "")
	text = excessBlankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split parses the model's cleaned answer into the section map, keyed
// by the canonical English section names, by locating the first
// case-insensitive occurrence of each language's localized heading
// anywhere in the text (not only at the start of a line).
func Split(language, cleaned string) map[string]string {
	labels, ok := sectionLabels[language]
	if !ok {
		labels = sectionLabels["en"]
	}

	type marker struct {
		key   string
		start int
		end   int // index just past the heading text
	}

	var markers []marker
	lowerText := strings.ToLower(cleaned)
	for _, key := range sectionOrder {
		label := strings.ToLower(labels[key])
		idx := strings.Index(lowerText, label)
		if idx == -1 {
			continue
		}
		markers = append(markers, marker{key: key, start: idx, end: idx + len(label)})
	}

	sections := make(map[string]string, len(sectionOrder))
	for _, key := range sectionOrder {
		sections[key] = ""
	}
	if len(markers) == 0 {
		sections["summary"] = cleaned
		return sections
	}

	// Sort by position so each section's body runs up to the next
	// marker's start.
	for i := 0; i < len(markers); i++ {
		for j := i + 1; j < len(markers); j++ {
			if markers[j].start < markers[i].start {
				markers[i], markers[j] = markers[j], markers[i]
			}
		}
	}

	for i, m := range markers {
		end := len(cleaned)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		body := cleaned[m.end:end]
		body = strings.TrimLeft(body, ":：\n\r\t ")
		sections[m.key] = strings.TrimSpace(body)
	}
	return sections
}

// BuildFullText concatenates sections with simple dividers and leading
// icons for display, in the fixed section order.
func BuildFullText(language string, sections map[string]string) string {
	labels, ok := sectionLabels[language]
	if !ok {
		labels = sectionLabels["en"]
	}

	var b strings.Builder
	for i, key := range sectionOrder {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(sectionIcons[key])
		b.WriteString(" ")
		b.WriteString(labels[key])
		b.WriteString("\n")
		b.WriteString(sections[key])
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func noTextSummary(language string) string {
	switch language {
	case "ru":
		return "Не удалось извлечь текст из документа."
	case "de":
		return "Aus dem Dokument konnte kein Text extrahiert werden."
	case "uk":
		return "Не вдалося видобути текст із документа."
	default:
		return "No text could be extracted from the document."
	}
}
