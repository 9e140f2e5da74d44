package analysis

import (
	"bytes"
	"fmt"
	"text/template"
)

// sectionOrder is the fixed, ordered set of section keys every prompt
// instructs the model to produce, and every response is split back
// into.
var sectionOrder = []string{
	"summary",
	"sender_info",
	"document_type",
	"key_content",
	"required_actions",
	"deadlines",
	"consequences",
	"urgency_level",
	"response_template",
}

// sectionLabels gives each section key its localized heading, used
// both to instruct the model (in promptTemplate) and to split its
// answer back into the keyed map (formatter.go).
var sectionLabels = map[string]map[string]string{
	"en": {
		"summary": "Summary", "sender_info": "Sender Info", "document_type": "Document Type",
		"key_content": "Key Content", "required_actions": "Required Actions", "deadlines": "Deadlines",
		"consequences": "Consequences", "urgency_level": "Urgency Level", "response_template": "Response Template",
	},
	"ru": {
		"summary": "Резюме", "sender_info": "Отправитель", "document_type": "Тип документа",
		"key_content": "Основное содержание", "required_actions": "Необходимые действия", "deadlines": "Сроки",
		"consequences": "Последствия", "urgency_level": "Срочность", "response_template": "Шаблон ответа",
	},
	"de": {
		"summary": "Zusammenfassung", "sender_info": "Absender", "document_type": "Dokumentart",
		"key_content": "Wesentlicher Inhalt", "required_actions": "Erforderliche Maßnahmen", "deadlines": "Fristen",
		"consequences": "Folgen", "urgency_level": "Dringlichkeit", "response_template": "Antwortvorlage",
	},
	"uk": {
		"summary": "Резюме", "sender_info": "Відправник", "document_type": "Тип документа",
		"key_content": "Основний зміст", "required_actions": "Необхідні дії", "deadlines": "Терміни",
		"consequences": "Наслідки", "urgency_level": "Терміновість", "response_template": "Шаблон відповіді",
	},
}

const promptTemplateSrc = `You are analyzing a piece of official German correspondence for a
non-native resident. Respond entirely in {{.LanguageName}}.

{{if .ExtractedText}}Extracted document text:
"""
{{.ExtractedText}}
"""
{{else if .HasImage}}No text could be extracted automatically; read the attached image directly.
{{else}}No document content is available.
{{end}}
Produce your answer using exactly these section headings, in this
order, each on its own line followed by its content. Do not use
markdown formatting symbols such as *, #, or backticks, and do not
use bullet glyphs.

{{range .Labels}}{{.}}
{{end}}
For "{{.UrgencyLabel}}", answer with exactly one of: low, medium, high, critical.
`

var promptTemplate = template.Must(template.New("analysis_prompt").Parse(promptTemplateSrc))

var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
	"de": "German",
	"uk": "Ukrainian",
}

type promptVars struct {
	LanguageName  string
	ExtractedText string
	HasImage      bool
	Labels        []string
	UrgencyLabel  string
}

// BuildPrompt renders the single parameterized analysis prompt for the
// given target language, extracted text (may be empty), and whether an
// image is attached.
func BuildPrompt(language, extractedText string, hasImage bool) (string, error) {
	labels, ok := sectionLabels[language]
	if !ok {
		labels = sectionLabels["en"]
		language = "en"
	}

	orderedLabels := make([]string, 0, len(sectionOrder))
	for _, key := range sectionOrder {
		orderedLabels = append(orderedLabels, labels[key])
	}

	vars := promptVars{
		LanguageName:  languageNames[language],
		ExtractedText: extractedText,
		HasImage:      hasImage,
		Labels:        orderedLabels,
		UrgencyLabel:  labels["urgency_level"],
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render analysis prompt: %w", err)
	}
	return buf.String(), nil
}
