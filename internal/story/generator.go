// Package story runs the bounded generate-and-check loop and feedback revisions.
package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lamim/storyteller/internal/api"
	"github.com/lamim/storyteller/internal/config"
	"github.com/lamim/storyteller/internal/metrics"
	"github.com/lamim/storyteller/internal/prompt"
	"github.com/lamim/storyteller/internal/uniqueness"
	"github.com/lamim/storyteller/internal/util"
	"github.com/lamim/storyteller/pkg/models"
)

// ErrNoOutput is returned when every attempt came back empty
var ErrNoOutput = errors.New("model returned no story text")

// Completer is the generation backend. *api.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string, onToken api.TokenObserver) (string, error)
}

// Options control the retry loop and prompt assembly
type Options struct {
	MaxAttempts            int
	MinWords               int
	AllowRefusals          bool
	StoryType              string
	AdditionalInstructions string
	StoryTemplate          prompt.Template
	RevisionTemplate       prompt.Template
}

// OptionsFromConfig resolves templates and limits from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxAttempts:            cfg.Generation.MaxAttempts,
		MinWords:               cfg.Generation.MinWords,
		AllowRefusals:          cfg.Generation.AllowRefusals,
		StoryType:              cfg.Generation.StoryType,
		AdditionalInstructions: cfg.Generation.AdditionalInstructions,
		StoryTemplate:          prompt.Resolve(prompt.StoryTemplateV1, cfg.PromptTemplates.Story),
		RevisionTemplate:       prompt.Resolve(prompt.RevisionTemplateV1, cfg.PromptTemplates.Revision),
	}
}

// Attempt describes one finished generation attempt
type Attempt struct {
	Number     int
	Outcome    string // one of the metrics.Outcome* values
	Words      int
	Similarity float64
	Err        error
}

// Hooks are presentation callbacks; both may be nil
type Hooks struct {
	OnToken   api.TokenObserver
	OnAttempt func(Attempt)
}

// Generator produces stories that pass the length, refusal, and uniqueness checks
type Generator struct {
	completer Completer
	checker   *uniqueness.Checker
	opts      Options
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewGenerator creates a generator. metrics may be nil.
func NewGenerator(completer Completer, checker *uniqueness.Checker, opts Options, m *metrics.Collector, logger *slog.Logger) *Generator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.StoryTemplate.Text == "" {
		opts.StoryTemplate = prompt.StoryTemplateV1
	}
	if opts.RevisionTemplate.Text == "" {
		opts.RevisionTemplate = prompt.RevisionTemplateV1
	}
	return &Generator{
		completer: completer,
		checker:   checker,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// StoryPrompt renders the story template for req
func (g *Generator) StoryPrompt(req models.StoryRequest) (string, error) {
	inputType, inputValue := req.Input()
	if inputValue == "" {
		return "", fmt.Errorf("story request has no concept, title, or genres")
	}

	return prompt.Build(g.opts.StoryTemplate.Text, map[string]string{
		"language":                req.Language,
		"num_paragraphs":          strconv.Itoa(req.NumParagraphs),
		"story_type":              g.opts.StoryType,
		"input_type":              string(inputType),
		"input_value":             inputValue,
		"additional_instructions": g.opts.AdditionalInstructions,
	})
}

// Generate calls the model up to MaxAttempts times. Output shorter than MinWords
// or reading as a refusal is retried with the same prompt; output rejected as too
// similar to the session corpus is retried with DifferentInstruction appended.
//
// When no attempt passes, the last story text is returned with Accepted=false.
// When no attempt produced text, the last error is returned.
func (g *Generator) Generate(ctx context.Context, req models.StoryRequest, hooks Hooks) (*models.GeneratedStory, error) {
	basePrompt, err := g.StoryPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build story prompt: %w", err)
	}

	current := basePrompt
	amended := false

	var lastText string
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		attempts = attempt
		g.logger.Debug("Generating story",
			"attempt", attempt,
			"max_attempts", g.opts.MaxAttempts,
			"prompt", prompt.TruncateForLog(current, 120))

		raw, err := g.complete(ctx, current, hooks.OnToken)
		if err != nil {
			lastErr = err
			g.finishAttempt(hooks, Attempt{Number: attempt, Outcome: metrics.OutcomeError, Err: err})
			g.logger.Warn("Generation attempt failed", "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		text := util.CleanStory(raw)
		words := util.WordCount(text)
		if text != "" {
			lastText = text
		}

		if words < g.opts.MinWords {
			g.finishAttempt(hooks, Attempt{Number: attempt, Outcome: metrics.OutcomeShort, Words: words})
			g.logger.Info("Story too short, retrying", "attempt", attempt, "words", words, "min_words", g.opts.MinWords)
			continue
		}

		if !g.opts.AllowRefusals {
			if reason := refusalReason(text); reason != "" {
				g.finishAttempt(hooks, Attempt{Number: attempt, Outcome: metrics.OutcomeRefusal, Words: words})
				g.logger.Info("Model refused, retrying", "attempt", attempt, "pattern", reason)
				continue
			}
		}

		ok, ratio := g.checker.CheckRatio(text)
		g.metrics.RecordSimilarity(ratio)
		if ok {
			g.finishAttempt(hooks, Attempt{Number: attempt, Outcome: metrics.OutcomeAccepted, Words: words, Similarity: ratio})
			g.metrics.RecordStory(metrics.ResultAccepted, attempt)
			return &models.GeneratedStory{
				Text:          text,
				Attempts:      attempt,
				Accepted:      true,
				PromptVersion: g.opts.StoryTemplate.Version,
			}, nil
		}

		g.finishAttempt(hooks, Attempt{Number: attempt, Outcome: metrics.OutcomeSimilar, Words: words, Similarity: ratio})
		g.logger.Info("Story too similar to earlier output, retrying",
			"attempt", attempt,
			"similarity", fmt.Sprintf("%.2f", ratio),
			"threshold", g.checker.Threshold())

		if !amended {
			current = basePrompt + prompt.DifferentInstruction
			amended = true
		}
	}

	if lastText == "" {
		g.metrics.RecordStory(metrics.ResultFailed, attempts)
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNoOutput
	}

	g.logger.Warn("No attempt passed the checks, using the last story",
		"attempts", attempts,
		"words", util.WordCount(lastText))
	g.metrics.RecordStory(metrics.ResultFallback, attempts)

	return &models.GeneratedStory{
		Text:          lastText,
		Attempts:      attempts,
		Accepted:      false,
		PromptVersion: g.opts.StoryTemplate.Version,
	}, nil
}

// RevisionResult is the outcome of one feedback round
type RevisionResult struct {
	Story      models.GeneratedStory
	Outcome    string // metrics.OutcomeAccepted, OutcomeSimilar, OutcomeShort, or OutcomeRefusal
	Similarity float64
}

// Accepted reports whether the revision should replace the working story
func (r *RevisionResult) Accepted() bool {
	return r.Outcome == metrics.OutcomeAccepted
}

// Revise asks the model once to rework rev.Original according to rev.Feedback.
// The revision must pass the same checks as a new story, without retries.
func (g *Generator) Revise(ctx context.Context, rev models.RevisionRequest, language string, hooks Hooks) (*RevisionResult, error) {
	p, err := prompt.Build(g.opts.RevisionTemplate.Text, map[string]string{
		"language": language,
		"story":    rev.Original,
		"feedback": rev.Feedback,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build revision prompt: %w", err)
	}

	raw, err := g.complete(ctx, p, hooks.OnToken)
	if err != nil {
		g.metrics.RecordRevision(metrics.OutcomeError)
		return nil, err
	}

	text := util.CleanStory(raw)
	result := &RevisionResult{
		Story: models.GeneratedStory{
			Text:          text,
			Attempts:      1,
			PromptVersion: g.opts.RevisionTemplate.Version,
		},
	}

	switch {
	case util.WordCount(text) < g.opts.MinWords:
		result.Outcome = metrics.OutcomeShort
	case !g.opts.AllowRefusals && isRefusal(text):
		result.Outcome = metrics.OutcomeRefusal
	default:
		ok, ratio := g.checker.CheckRatio(text)
		g.metrics.RecordSimilarity(ratio)
		result.Similarity = ratio
		result.Outcome = metrics.OutcomeSimilar
		if ok {
			result.Outcome = metrics.OutcomeAccepted
			result.Story.Accepted = true
		}
	}

	g.metrics.RecordRevision(result.Outcome)
	g.logger.Info("Revision finished",
		"outcome", result.Outcome,
		"words", util.WordCount(text),
		"similarity", fmt.Sprintf("%.2f", result.Similarity))

	return result, nil
}

// complete invokes the model, hiding <think> blocks from the token stream
func (g *Generator) complete(ctx context.Context, p string, onToken api.TokenObserver) (string, error) {
	if onToken == nil {
		return g.completer.Complete(ctx, p, nil)
	}

	filter := util.NewThinkFilter(onToken)
	text, err := g.completer.Complete(ctx, p, filter.Write)
	filter.Flush()
	return text, err
}

func (g *Generator) finishAttempt(hooks Hooks, a Attempt) {
	g.metrics.RecordAttempt(a.Outcome)
	if hooks.OnAttempt != nil {
		hooks.OnAttempt(a)
	}
}
