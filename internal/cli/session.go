// Package cli runs the interactive story session on a terminal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/lamim/storyteller/internal/api"
	"github.com/lamim/storyteller/internal/config"
	"github.com/lamim/storyteller/internal/export"
	"github.com/lamim/storyteller/internal/metrics"
	"github.com/lamim/storyteller/internal/story"
	"github.com/lamim/storyteller/internal/uniqueness"
	"github.com/lamim/storyteller/pkg/models"
)

// Options control how output is presented
type Options struct {
	Streaming bool // print tokens as they arrive
	Spinner   bool // show a spinner while waiting for a non-streamed reply
}

// Session drives one interactive run: request, generation, revisions, save, repeat
type Session struct {
	prompter *Prompter
	out      io.Writer
	cfg      *config.Config
	gen      *story.Generator
	corpus   *uniqueness.Corpus
	metrics  *metrics.Collector
	logger   *slog.Logger
	opts     Options
}

// NewSession wires a session to its input and output
func NewSession(
	in io.Reader,
	out io.Writer,
	cfg *config.Config,
	gen *story.Generator,
	corpus *uniqueness.Corpus,
	m *metrics.Collector,
	logger *slog.Logger,
	opts Options,
) *Session {
	return &Session{
		prompter: NewPrompter(in, out),
		out:      out,
		cfg:      cfg,
		gen:      gen,
		corpus:   corpus,
		metrics:  m,
		logger:   logger,
		opts:     opts,
	}
}

// Run loops until the user declines another story or input ends.
// Only context cancellation is returned as an error.
func (s *Session) Run(ctx context.Context) error {
	defer s.prompter.Close()

	fmt.Fprintln(s.out, "Welcome to AI Story Generator!")
	fmt.Fprintln(s.out, strings.Repeat("=", 50))

	err := s.loop(ctx)

	fmt.Fprintln(s.out, "\nThank you for using AI Story Generator!")
	fmt.Fprintf(s.out, "Session: %s\n", s.metrics.Summary())

	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Session) loop(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return err
			}
			s.reportError(err)
			again, err := s.prompter.Confirm(ctx, "\nTry again? (y/n): ")
			if err != nil {
				return err
			}
			if !again {
				return nil
			}
			continue
		}

		again, err := s.prompter.Confirm(ctx, "\nGenerate another story? (y/n): ")
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

func (s *Session) runOnce(ctx context.Context) error {
	req, err := s.collectRequest(ctx)
	if err != nil {
		return err
	}

	_, input := req.Input()
	s.logger.Info("Story requested",
		"input", input,
		"language", req.Language,
		"paragraphs", req.NumParagraphs)

	fmt.Fprintln(s.out, "\nGenerating your story...")
	st, err := s.generate(ctx, req)
	if err != nil {
		return err
	}

	if !st.Accepted {
		fmt.Fprintf(s.out, "\nNote: no attempt passed the length and uniqueness checks after %d tries. "+
			"Showing the last attempt; quality is not guaranteed.\n", st.Attempts)
	}

	working, err := s.reviseLoop(ctx, st.Text, req.Language)
	if err != nil {
		return err
	}

	if err := s.saveFlow(ctx, working); err != nil {
		return err
	}

	if s.cfg.Generation.ResetCorpusEachStory {
		s.corpus.Reset()
		s.logger.Debug("Fingerprint corpus reset")
	}
	return nil
}

func (s *Session) collectRequest(ctx context.Context) (models.StoryRequest, error) {
	req := models.StoryRequest{}

	var err error
	req.Concept, err = s.askText(ctx, "Enter a story concept (press Enter to skip): ", "concept")
	if err != nil {
		return req, err
	}

	if req.Concept == "" {
		req.Title, err = s.askText(ctx, "Enter a story title (press Enter for genre selection): ", "title")
		if err != nil {
			return req, err
		}
	}

	if req.Concept == "" && req.Title == "" {
		req.Genres, err = s.chooseGenres(ctx)
		if err != nil {
			return req, err
		}
	}

	req.NumParagraphs, err = s.askParagraphs(ctx)
	if err != nil {
		return req, err
	}

	req.Language, err = s.askText(ctx,
		fmt.Sprintf("Enter preferred language (press Enter for %s): ", s.cfg.Generation.Language), "language")
	if err != nil {
		return req, err
	}
	if req.Language == "" {
		req.Language = s.cfg.Generation.Language
	}

	return req, nil
}

// askText re-prompts until the answer is empty or passes validation
func (s *Session) askText(ctx context.Context, question, field string) (string, error) {
	for {
		ans, err := s.prompter.Ask(ctx, question)
		if err != nil {
			return "", err
		}
		if ans == "" {
			return "", nil
		}
		if err := config.ValidateUserText(field, ans); err != nil {
			fmt.Fprintf(s.out, "Invalid %s: %v\n", field, err)
			continue
		}
		return ans, nil
	}
}

func (s *Session) chooseGenres(ctx context.Context) ([]string, error) {
	genres := s.cfg.Genres

	fmt.Fprintln(s.out, "\nAvailable genres:")
	for i, g := range genres {
		fmt.Fprintf(s.out, "%d. %s\n", i+1, g)
	}

	var selected []string
	for len(selected) < models.MaxGenres {
		ans, err := s.prompter.Ask(ctx, fmt.Sprintf("\nSelect genre number (%d of up to %d, 0 to finish): ",
			len(selected)+1, models.MaxGenres))
		if err != nil {
			return nil, err
		}

		n, convErr := strconv.Atoi(ans)
		switch {
		case convErr != nil:
			fmt.Fprintln(s.out, "Please enter a number.")
		case n == 0 && len(selected) == 0:
			fmt.Fprintln(s.out, "Select at least one genre.")
		case n == 0:
			return selected, nil
		case n < 0 || n > len(genres):
			fmt.Fprintf(s.out, "Please choose a number between 1 and %d.\n", len(genres))
		case slices.Contains(selected, genres[n-1]):
			fmt.Fprintf(s.out, "%s is already selected.\n", genres[n-1])
		default:
			selected = append(selected, genres[n-1])
			fmt.Fprintf(s.out, "Added %s.\n", genres[n-1])
		}
	}

	fmt.Fprintf(s.out, "Maximum of %d genres selected.\n", models.MaxGenres)
	return selected, nil
}

func (s *Session) askParagraphs(ctx context.Context) (int, error) {
	def := s.cfg.Generation.NumParagraphs
	for {
		ans, err := s.prompter.Ask(ctx, fmt.Sprintf("How many paragraphs do you want? (1-%d, press Enter for %d): ",
			config.MaxParagraphs, def))
		if err != nil {
			return 0, err
		}
		if ans == "" {
			return def, nil
		}
		n, err := strconv.Atoi(ans)
		if err != nil || n < 1 || n > config.MaxParagraphs {
			fmt.Fprintf(s.out, "Please enter a number between 1 and %d.\n", config.MaxParagraphs)
			continue
		}
		return n, nil
	}
}

func (s *Session) generate(ctx context.Context, req models.StoryRequest) (*models.GeneratedStory, error) {
	hooks, stop := s.presentation("Writing your story")
	hooks.OnAttempt = s.onAttempt

	if s.opts.Streaming {
		fmt.Fprint(s.out, "\nYour story:\n\n")
	}

	st, err := s.gen.Generate(ctx, req, hooks)
	stop()
	if err != nil {
		return nil, err
	}

	if s.opts.Streaming {
		fmt.Fprintln(s.out)
	} else {
		fmt.Fprintf(s.out, "\nYour story:\n\n%s\n", st.Text)
	}

	s.logger.Info("Story ready",
		"attempts", st.Attempts,
		"accepted", st.Accepted,
		"prompt_version", st.PromptVersion)
	return st, nil
}

func (s *Session) onAttempt(a story.Attempt) {
	switch a.Outcome {
	case metrics.OutcomeShort:
		fmt.Fprintf(s.out, "\n\n[Attempt %d rejected: only %d words]\n\n", a.Number, a.Words)
	case metrics.OutcomeRefusal:
		fmt.Fprintf(s.out, "\n\n[Attempt %d rejected: the model declined]\n\n", a.Number)
	case metrics.OutcomeSimilar:
		fmt.Fprintf(s.out, "\n\n[Attempt %d rejected: %.0f%% overlap with earlier stories, asking for something different]\n\n",
			a.Number, a.Similarity*100)
	case metrics.OutcomeError:
		fmt.Fprintf(s.out, "\n\n[Attempt %d failed: %v]\n\n", a.Number, a.Err)
	}
}

func (s *Session) reviseLoop(ctx context.Context, working, language string) (string, error) {
	for {
		feedback, err := s.askText(ctx, "\nEnter feedback to revise the story (or 'skip' to continue): ", "feedback")
		if err != nil {
			return working, err
		}
		if feedback == "" || strings.EqualFold(feedback, "skip") {
			return working, nil
		}

		fmt.Fprintln(s.out, "\nRevising your story...")
		hooks, stop := s.presentation("Revising")
		if s.opts.Streaming {
			fmt.Fprintln(s.out)
		}

		res, err := s.gen.Revise(ctx, models.RevisionRequest{Original: working, Feedback: feedback}, language, hooks)
		stop()
		if err != nil {
			if ctx.Err() != nil {
				return working, ctx.Err()
			}
			fmt.Fprintf(s.out, "\nRevision failed: %v\nKeeping the previous version.\n", err)
			s.logger.Warn("Revision failed", "error", err)
			continue
		}

		if s.opts.Streaming {
			fmt.Fprintln(s.out)
		}

		switch res.Outcome {
		case metrics.OutcomeAccepted:
			working = res.Story.Text
			if !s.opts.Streaming {
				fmt.Fprintf(s.out, "\nRevised story:\n\n%s\n", working)
			}
			fmt.Fprintln(s.out, "\nRevision applied.")
		case metrics.OutcomeSimilar:
			fmt.Fprintf(s.out, "\nThe revision overlaps %.0f%% with earlier stories; keeping the previous version.\n",
				res.Similarity*100)
		case metrics.OutcomeRefusal:
			fmt.Fprintln(s.out, "\nThe model declined the revision; keeping the previous version.")
		default:
			fmt.Fprintln(s.out, "\nThe revision came back too short; keeping the previous version.")
		}
	}
}

func (s *Session) saveFlow(ctx context.Context, text string) error {
	ans, err := s.prompter.Ask(ctx, "\nWould you like to save this story? (word/pdf/no): ")
	if err != nil {
		return err
	}
	format, ok := export.ParseFormat(ans)
	if !ok {
		return nil
	}

	opts := export.Options{
		Heading:      s.cfg.Export.Heading,
		OutputDir:    s.cfg.Export.OutputDir,
		KeepMarkdown: s.cfg.Export.KeepMarkdown,
	}

	for {
		name, err := s.prompter.Ask(ctx, "Enter filename (without extension): ")
		if err != nil {
			return err
		}

		path, err := export.Export(format, text, name, opts)
		if err != nil {
			s.metrics.RecordExport(string(format), false)
			fmt.Fprintf(s.out, "Could not save the story: %v\n", err)
			s.logger.Warn("Export failed", "format", format, "error", err)
			if strings.TrimSpace(name) == "" {
				continue
			}
			return nil
		}

		s.metrics.RecordExport(string(format), true)
		s.logger.Info("Story exported", "format", format, "path", path)
		fmt.Fprintf(s.out, "\nStory saved to %s\n", path)
		return nil
	}
}

// presentation returns token hooks for streaming mode, or starts a spinner otherwise.
// The returned stop func must be called once the model call returns.
func (s *Session) presentation(label string) (story.Hooks, func()) {
	if s.opts.Streaming {
		return story.Hooks{OnToken: func(tok string) { fmt.Fprint(s.out, tok) }}, func() {}
	}
	if !s.opts.Spinner {
		return story.Hooks{}, func() {}
	}
	return story.Hooks{}, startSpinner(s.out, label)
}

func startSpinner(w io.Writer, label string) func() {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		_ = bar.Finish()
	}
}

func (s *Session) reportError(err error) {
	s.logger.Error("Story generation failed", "error", err)

	var genErr *api.GenerationError
	switch {
	case errors.As(err, &genErr):
		fmt.Fprintf(s.out, "\nError generating story: %v\n", genErr)
		switch {
		case genErr.StatusCode == http.StatusNotFound && genErr.Provider == config.ProviderOllama:
			fmt.Fprintf(s.out, "Is the model available? Try: ollama pull %s\n", s.cfg.Model.ModelName)
		case genErr.StatusCode == http.StatusUnauthorized:
			fmt.Fprintln(s.out, "Check the API key (OPENAI_API_KEY or API_KEY).")
		case genErr.StatusCode == 0 && genErr.Retryable:
			fmt.Fprintf(s.out, "Check that the model server is running at %s.\n", s.cfg.Model.BaseURL)
		}
	case errors.Is(err, story.ErrNoOutput):
		fmt.Fprintln(s.out, "\nThe model returned no story text.")
	default:
		fmt.Fprintf(s.out, "\nAn error occurred: %v\n", err)
	}
}
