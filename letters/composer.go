// Package letters composes outgoing German correspondence from a
// curated template plus variables, or from a free-form prompt,
// optionally with a parallel translation into the user's language.
package letters

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/types"
)

// Letter is the result of either composition path.
type Letter struct {
	Subject         string
	BodyDE          string
	BodyTranslation string // empty when target_language == "de"
}

// Composer drafts letters via the LLM Router.
type Composer struct {
	router  *llm.Router
	catalog Catalog
}

// NewComposer binds a Composer to the process-wide Router and template
// catalog.
func NewComposer(router *llm.Router, catalog Catalog) *Composer {
	return &Composer{router: router, catalog: catalog}
}

// ComposeFromTemplate substitutes variables into the named template,
// asks the Router to lightly polish the resulting German, and — when
// targetLanguage != "de" — asks for a faithful translation of the
// final German text.
func (c *Composer) ComposeFromTemplate(ctx context.Context, category, templateKey string, variables map[string]string, targetLanguage string, keys llm.UserKeys) (*Letter, error) {
	tpl, err := c.catalog.Template(category, templateKey)
	if err != nil {
		return nil, err
	}

	if err := checkRequiredVariables(tpl, variables); err != nil {
		return nil, err
	}

	rendered, err := renderTemplate(tpl.BodyDE, variables)
	if err != nil {
		return nil, err
	}

	polished, err := c.polishGerman(ctx, rendered, keys)
	if err != nil {
		return nil, err
	}

	letter := &Letter{Subject: tpl.Subject, BodyDE: polished}
	if targetLanguage != "de" && targetLanguage != "" {
		translation, err := c.translate(ctx, polished, targetLanguage, keys)
		if err != nil {
			return nil, err
		}
		letter.BodyTranslation = translation
	}
	return letter, nil
}

// ComposeFromPrompt asks the Router to draft a formal German letter
// from a free-form prompt, then translates if needed.
func (c *Composer) ComposeFromPrompt(ctx context.Context, userPrompt, targetLanguage string, keys llm.UserKeys) (*Letter, error) {
	draftPrompt := fmt.Sprintf(
		"Draft a formal, polite German letter based on the following request. "+
			"Respond with only the letter body in German, no commentary.\n\nRequest:\n%s",
		userPrompt,
	)

	result, err := c.router.Generate(ctx, &llm.GenerateRequest{
		Messages: []llm.Message{llm.NewUserMessage(draftPrompt)},
		UserKeys: keys,
	})
	if err != nil {
		return nil, err
	}

	letter := &Letter{BodyDE: strings.TrimSpace(result.Text)}
	if targetLanguage != "de" && targetLanguage != "" {
		translation, err := c.translate(ctx, letter.BodyDE, targetLanguage, keys)
		if err != nil {
			return nil, err
		}
		letter.BodyTranslation = translation
	}
	return letter, nil
}

func (c *Composer) polishGerman(ctx context.Context, body string, keys llm.UserKeys) (string, error) {
	prompt := fmt.Sprintf(
		"Lightly polish the grammar and tone of the following German letter body, "+
			"preserving its meaning and structure exactly. Respond with only the polished text.\n\n%s",
		body,
	)
	result, err := c.router.Generate(ctx, &llm.GenerateRequest{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
		UserKeys: keys,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func (c *Composer) translate(ctx context.Context, germanText, targetLanguage string, keys llm.UserKeys) (string, error) {
	prompt := fmt.Sprintf(
		"Provide a faithful translation of the following German letter into %s. "+
			"Respond with only the translated text.\n\n%s",
		targetLanguage, germanText,
	)
	result, err := c.router.Generate(ctx, &llm.GenerateRequest{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
		UserKeys: keys,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Text), nil
}

func checkRequiredVariables(tpl *Template, variables map[string]string) error {
	for _, name := range tpl.RequiredVariables {
		if strings.TrimSpace(variables[name]) == "" {
			return types.NewError(types.ErrTemplateVariableMissing, fmt.Sprintf("missing required variable %q", name)).WithHTTPStatus(400)
		}
	}
	return nil
}

func renderTemplate(body string, variables map[string]string) (string, error) {
	tpl, err := template.New("letter").Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse letter template: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("render letter template: %w", err)
	}
	return buf.String(), nil
}
