// Package assemble fetches the top search results concurrently and packs
// their text into a token-budgeted context.
package assemble

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hession/webrag/internal/logger"
	"github.com/hession/webrag/internal/tracer"
	"github.com/hession/webrag/internal/websearch"
)

// Separator joins article blocks in the assembled context
const Separator = "\n\n"

// Budget bounds how much text reaches the model
type Budget struct {
	// MaxArticles is how many leading results are considered
	MaxArticles int
	// Workers is how many fetches run at once
	Workers int
	// MaxArticleTokens caps a single article, header included
	MaxArticleTokens int
	// MaxContextTokens caps the sum of included articles
	MaxContextTokens int
}

// DefaultBudget returns the standard budget
func DefaultBudget() Budget {
	return Budget{MaxArticles: 4, Workers: 2, MaxArticleTokens: 8000, MaxContextTokens: 24000}
}

// Fetcher returns page text for a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Counter counts and truncates tokens
type Counter interface {
	Count(text string) int
	Truncate(text string, limit int) (string, int)
}

// Article is one included context block
type Article struct {
	Title     string
	URL       string
	Text      string
	Tokens    int
	Truncated bool
}

// Context is the assembled evidence for one query
type Context struct {
	Text     string
	Tokens   int
	Articles []Article
	// Diagnostics carries user-facing fetch failures, in rank order
	Diagnostics []string
}

// outcome is the per-result product of the fan-out
type outcome struct {
	article    *Article
	diagnostic string
}

// Assembler builds contexts
type Assembler struct {
	fetcher Fetcher
	counter Counter
	budget  Budget
	log     *logger.Logger
}

// New creates an assembler; zero budget fields take the defaults
func New(fetcher Fetcher, counter Counter, budget Budget, log *logger.Logger) *Assembler {
	def := DefaultBudget()
	if budget.MaxArticles <= 0 {
		budget.MaxArticles = def.MaxArticles
	}
	if budget.Workers <= 0 {
		budget.Workers = def.Workers
	}
	if budget.MaxArticleTokens <= 0 {
		budget.MaxArticleTokens = def.MaxArticleTokens
	}
	if budget.MaxContextTokens <= 0 {
		budget.MaxContextTokens = def.MaxContextTokens
	}
	return &Assembler{fetcher: fetcher, counter: counter, budget: budget, log: log.With("assemble")}
}

// Assemble fetches the leading results and packs them in rank order. Once an
// article would overflow the context budget it and every later one are dropped.
func (a *Assembler) Assemble(ctx context.Context, results []websearch.Result) Context {
	ctx, span := tracer.StartSpan(ctx, "assemble.build")
	defer span.End()

	candidates := results
	if len(candidates) > a.budget.MaxArticles {
		candidates = candidates[:a.budget.MaxArticles]
	}

	outcomes := make([]outcome, len(candidates))
	var g errgroup.Group
	g.SetLimit(a.budget.Workers)
	for i, r := range candidates {
		g.Go(func() error {
			outcomes[i] = a.prepare(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	var out Context
	// every failure is reported, including ones ranked past the budget stop
	for _, o := range outcomes {
		if o.diagnostic != "" {
			out.Diagnostics = append(out.Diagnostics, o.diagnostic)
		}
	}

	blocks := make([]string, 0, len(outcomes))
	for i, o := range outcomes {
		if o.article == nil {
			continue
		}
		if out.Tokens+o.article.Tokens > a.budget.MaxContextTokens {
			a.log.Info("Context budget reached at '%s' (%d + %d > %d), dropping %d remaining candidates",
				o.article.Title, out.Tokens, o.article.Tokens, a.budget.MaxContextTokens, len(outcomes)-i)
			break
		}
		out.Tokens += o.article.Tokens
		out.Articles = append(out.Articles, *o.article)
		blocks = append(blocks, o.article.Text)
	}
	out.Text = strings.Join(blocks, Separator)

	a.log.Info("Assembled %d articles, %d tokens", len(out.Articles), out.Tokens)
	span.SetAttributes(
		tracer.IntAttr("assemble.candidates", len(candidates)),
		tracer.IntAttr("assemble.articles", len(out.Articles)),
		tracer.IntAttr("assemble.tokens", out.Tokens),
	)
	tracer.SetOK(span)
	return out
}

// prepare fetches one result and sizes it against the article cap
func (a *Assembler) prepare(ctx context.Context, r websearch.Result) outcome {
	title := r.Title
	if strings.TrimSpace(title) == "" {
		title = "Unknown"
	}
	if strings.TrimSpace(r.URL) == "" {
		a.log.Info("Skipping article with no link: %s", title)
		return outcome{}
	}

	text, err := a.fetcher.Fetch(ctx, r.URL)
	if err != nil {
		return outcome{diagnostic: err.Error()}
	}
	if text == "" {
		a.log.Info("Skipping '%s': no usable content", title)
		return outcome{}
	}

	blob := fmt.Sprintf("Source: %s\nURL: %s\n", title, r.URL) + text
	tokens := a.counter.Count(blob)
	if tokens == 0 {
		a.log.Info("Skipping '%s' due to empty content", title)
		return outcome{}
	}

	article := &Article{Title: title, URL: r.URL, Text: blob, Tokens: tokens}
	if tokens > a.budget.MaxArticleTokens {
		article.Text, article.Tokens = a.counter.Truncate(blob, a.budget.MaxArticleTokens)
		article.Truncated = true
		a.log.Info("Truncated '%s' from %d to %d tokens", title, tokens, article.Tokens)
	}
	return outcome{article: article}
}
