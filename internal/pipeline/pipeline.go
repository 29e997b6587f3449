// Package pipeline runs one query end to end: search, assemble, answer.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hession/webrag/internal/answer"
	"github.com/hession/webrag/internal/assemble"
	"github.com/hession/webrag/internal/logger"
	"github.com/hession/webrag/internal/tracer"
	"github.com/hession/webrag/internal/websearch"
)

var (
	// ErrEmptyQuery is returned for blank queries
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrNoRelevantContent is returned when search finds nothing
	ErrNoRelevantContent = errors.New("no relevant articles found")
)

// Searcher returns ranked results; it never fails
type Searcher interface {
	Search(ctx context.Context, query string) []websearch.Result
}

// Assembler packs results into a context
type Assembler interface {
	Assemble(ctx context.Context, results []websearch.Result) assemble.Context
}

// Responder produces the answer text for a context
type Responder interface {
	Respond(ctx context.Context, contextText, query string) answer.Reply
}

// Source is one attributed search result
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Answer is the result of one run. Diagnostics carry user-facing fetch
// problems; Grounded is false when Text is a fixed fallback or error message.
type Answer struct {
	RunID         string        `json:"run_id"`
	Query         string        `json:"query"`
	Text          string        `json:"answer"`
	Sources       []Source      `json:"sources"`
	Diagnostics   []string      `json:"diagnostics,omitempty"`
	Grounded      bool          `json:"grounded"`
	Articles      int           `json:"articles"`
	ContextTokens int           `json:"context_tokens"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Pipeline wires the stages together
type Pipeline struct {
	search    Searcher
	assembler Assembler
	responder Responder
	log       *logger.Logger
	now       func() time.Time
}

// New creates a pipeline
func New(search Searcher, assembler Assembler, responder Responder, log *logger.Logger) *Pipeline {
	return &Pipeline{
		search:    search,
		assembler: assembler,
		responder: responder,
		log:       log.With("pipeline"),
		now:       time.Now,
	}
}

// Run answers query. It returns ErrEmptyQuery for a blank query and
// ErrNoRelevantContent when search yields nothing; in that case nothing is
// fetched and the model is not called.
func (p *Pipeline) Run(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := p.now()
	runID := uuid.New().String()
	log := p.log.With(runID[:8])

	ctx, span := tracer.StartSpan(ctx, "pipeline.run",
		tracer.StringAttr("run.id", runID),
		tracer.StringAttr("query", query))

	log.Info("Query: %s", query)
	results := p.search.Search(ctx, query)
	if len(results) == 0 {
		log.Warn("No search results")
		tracer.Finish(span, ErrNoRelevantContent)
		return nil, ErrNoRelevantContent
	}

	assembled := p.assembler.Assemble(ctx, results)
	log.Info("Context: %d articles, %d tokens, %d characters",
		len(assembled.Articles), assembled.Tokens, len(assembled.Text))

	reply := p.responder.Respond(ctx, assembled.Text, query)

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{Title: r.Title, URL: r.URL})
	}

	ans := &Answer{
		RunID:         runID,
		Query:         query,
		Text:          reply.Text,
		Sources:       sources,
		Diagnostics:   assembled.Diagnostics,
		Grounded:      reply.Grounded,
		Articles:      len(assembled.Articles),
		ContextTokens: assembled.Tokens,
		Elapsed:       p.now().Sub(start),
	}

	span.SetAttributes(
		tracer.IntAttr("pipeline.articles", ans.Articles),
		tracer.BoolAttr("pipeline.grounded", ans.Grounded))
	tracer.Finish(span, reply.Err)
	log.Info("Done in %s (grounded=%v)", ans.Elapsed.Round(time.Millisecond), ans.Grounded)
	return ans, nil
}
