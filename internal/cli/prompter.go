package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type lineResult struct {
	text string
	err  error
}

// Prompter asks questions on w and reads one answer line at a time from r.
// Reads happen on a background goroutine so a blocked read can be abandoned
// when the context is cancelled.
type Prompter struct {
	w     io.Writer
	lines chan lineResult

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewPrompter starts reading from r. Call Close when no more answers are needed.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	p := &Prompter{
		w:       w,
		lines:   make(chan lineResult),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go p.readLoop(bufio.NewReader(r))
	return p
}

func (p *Prompter) readLoop(br *bufio.Reader) {
	defer close(p.stopped)
	defer close(p.lines)
	for {
		line, err := br.ReadString('\n')
		if line != "" && !p.send(lineResult{text: line}) {
			return
		}
		if err != nil {
			p.send(lineResult{err: err})
			return
		}
	}
}

func (p *Prompter) send(res lineResult) bool {
	select {
	case p.lines <- res:
		return true
	case <-p.done:
		return false
	}
}

// Close releases the reader goroutine once its pending read returns.
// Unread input is discarded.
func (p *Prompter) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Ask prints question and returns the trimmed answer.
// io.EOF is returned once input is exhausted or the prompter is closed.
func (p *Prompter) Ask(ctx context.Context, question string) (string, error) {
	fmt.Fprint(p.w, question)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return "", io.EOF
	case res, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.text), nil
	}
}

// Confirm asks a yes/no question; only "y" counts as yes
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	ans, err := p.Ask(ctx, question)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(ans, "y"), nil
}
