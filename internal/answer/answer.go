// Package answer turns assembled context into the final answer text.
package answer

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/hession/webrag/internal/config"
	"github.com/hession/webrag/internal/llm"
	"github.com/hession/webrag/internal/logger"
	"github.com/hession/webrag/internal/tracer"
)

// Reply is the outcome of one generation
type Reply struct {
	Text string
	// Grounded is true when the text came from the model
	Grounded bool
	// Err holds the swallowed model failure, if any
	Err error
}

// Generator builds prompts and calls the model
type Generator struct {
	model    llm.Generator
	prompt   *template.Template
	fallback string
	failure  string
	log      *logger.Logger
}

// NewGenerator parses the prompt template and returns a generator
func NewGenerator(model llm.Generator, prompts *config.PromptConfig, log *logger.Logger) (*Generator, error) {
	if prompts == nil {
		prompts = config.DefaultPromptConfig()
	}
	tmpl, err := template.New("answer").Option("missingkey=error").Parse(prompts.Answer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse answer prompt: %w", err)
	}
	return &Generator{
		model:    model,
		prompt:   tmpl,
		fallback: prompts.Fallback,
		failure:  prompts.GenerationError,
		log:      log.With("answer"),
	}, nil
}

// Prompt renders the instruction sent to the model
func (g *Generator) Prompt(contextText, query string) (string, error) {
	var b strings.Builder
	err := g.prompt.Execute(&b, struct {
		Query   string
		Context string
	}{Query: query, Context: contextText})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return b.String(), nil
}

// Generate returns the answer text. It never fails: an empty context yields
// the fallback without a model call and a model failure yields fixed text.
func (g *Generator) Generate(ctx context.Context, contextText, query string) string {
	return g.Respond(ctx, contextText, query).Text
}

// Respond is Generate with the outcome details kept
func (g *Generator) Respond(ctx context.Context, contextText, query string) Reply {
	if strings.TrimSpace(contextText) == "" {
		g.log.Info("No context available, returning fallback")
		return Reply{Text: g.fallback}
	}

	ctx, span := tracer.StartSpan(ctx, "answer.generate", tracer.StringAttr("model", g.model.Name()))

	prompt, err := g.Prompt(contextText, query)
	if err != nil {
		g.log.Error("%v", err)
		tracer.Finish(span, err)
		return Reply{Text: g.failure, Err: err}
	}

	text, err := g.model.Generate(ctx, prompt)
	if err != nil {
		g.log.Error("Generation failed: %v", err)
		tracer.Finish(span, err)
		return Reply{Text: g.failure, Err: err}
	}

	g.log.Info("Generated %d characters", len(text))
	tracer.Finish(span, nil)
	return Reply{Text: text, Grounded: true}
}
