// Package console runs the interactive question loop on a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/kailas-cloud/manualqa/internal/domain"
	"github.com/kailas-cloud/manualqa/internal/usecase/chat"
)

// Transcript lines.
const (
	WelcomeTitle = "Welcome to the Manual Assistant!"
	WelcomeHint  = `Ask questions related to the manuals. Type "exit" to quit.`
	Prompt       = "You: "
	Speaker      = "Consultant:"
	Goodbye      = "Consultant: Thank you! Have a productive day!"
	NoMatch      = "Consultant: Please ask a valid or related question based on the manuals."
	TooLong      = "Consultant: That question is too long. Please shorten it and try again."
	exitCommand  = "exit"
)

// maxLineBytes caps one input line. Longer lines are discarded and reported.
const maxLineBytes = 64 << 10

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, question string) (chat.Reply, error)
}

// Console reads questions line by line and prints answers.
// One question is fully answered before the next is read.
type Console struct {
	asker   Asker
	in      io.Reader
	out     io.Writer
	verbose bool
	logger  *zap.Logger

	title   *color.Color
	hint    *color.Color
	prompt  *color.Color
	speaker *color.Color
	answer  *color.Color
	warn    *color.Color
	fail    *color.Color
	trace   *color.Color
}

// New creates a console over in and out.
func New(asker Asker, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		asker:   asker,
		in:      in,
		out:     out,
		logger:  logger,
		title:   color.New(color.FgGreen, color.Bold),
		hint:    color.New(color.FgGreen),
		prompt:  color.New(color.FgHiBlue),
		speaker: color.New(color.FgHiCyan),
		answer:  color.New(color.FgHiWhite),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
		trace:   color.New(color.FgHiBlack),
	}
}

// WithVerbose prints every matched chunk and its score before the answer.
func (c *Console) WithVerbose(v bool) *Console {
	c.verbose = v
	return c
}

// Run prints the banner and serves questions until "exit", end of input or
// ctx cancellation. Exit and end of input return nil.
func (c *Console) Run(ctx context.Context) error {
	lines, readErr := c.readLines(ctx)

	c.title.Fprintf(c.out, "\n %s\n", WelcomeTitle)
	c.hint.Fprintf(c.out, " %s\n\n", WelcomeHint)

	for {
		c.prompt.Fprint(c.out, "\n"+Prompt)

		var (
			line input
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return ctx.Err()
		case line, ok = <-lines:
		}

		if !ok {
			if err := <-readErr; err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			c.sayGoodbye()
			return nil
		}

		if line.tooLong {
			c.logger.Warn("Input line too long", zap.Int("limit_bytes", maxLineBytes))
			c.warn.Fprintf(c.out, "\n %s\n", TooLong)
			continue
		}
		trimmed := strings.TrimSpace(line.text)
		if trimmed == "" {
			continue
		}
		if strings.ToLower(trimmed) == exitCommand {
			c.sayGoodbye()
			return nil
		}

		c.turn(ctx, line.text)
	}
}

func (c *Console) turn(ctx context.Context, question string) {
	reply, err := c.asker.Ask(ctx, question)

	if c.verbose {
		for i := range reply.Matches {
			m := &reply.Matches[i]
			c.trace.Fprintf(c.out, "\n Matched Chunk (%.3f):\n%s\n\n", m.Score(), m.Text())
		}
	}

	switch {
	case err == nil:
		c.speaker.Fprint(c.out, "\n "+Speaker)
		fmt.Fprint(c.out, " ")
		c.answer.Fprintln(c.out, reply.Answer)
	case errors.Is(err, domain.ErrNoRelevantMatch):
		c.logger.Debug("No relevant match", zap.String("question", question), zap.Error(err))
		c.warn.Fprintf(c.out, "\n %s\n", NoMatch)
	case errors.Is(err, context.Canceled):
		return
	default:
		c.logger.Error("Question failed", zap.String("question", question), zap.Error(err))
		c.fail.Fprintf(c.out, "\n %s %s. Please try again.\n", Speaker, describe(err))
	}
}

func (c *Console) sayGoodbye() {
	c.hint.Fprintf(c.out, "\n %s\n\n", Goodbye)
}

// input is one line read from the terminal.
type input struct {
	text    string
	tooLong bool
}

// readLines reads input on its own goroutine so a blocked read never holds
// up cancellation. The error channel yields once after lines is closed.
func (c *Console) readLines(ctx context.Context) (<-chan input, <-chan error) {
	lines := make(chan input)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(lines)

		r := bufio.NewReader(c.in)
		for {
			line, err := readLine(r)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				errs <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines, errs
}

// readLine returns the next line without its terminator. Bytes past
// maxLineBytes are dropped and the line is flagged tooLong.
func readLine(r *bufio.Reader) (input, error) {
	var (
		buf     []byte
		tooLong bool
		read    bool
	)
	for {
		part, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && read {
				return input{text: string(buf), tooLong: tooLong}, nil
			}
			return input{}, err
		}
		read = true
		if !tooLong {
			if len(buf)+len(part) > maxLineBytes {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, part...)
			}
		}
		if !isPrefix {
			return input{text: string(buf), tooLong: tooLong}, nil
		}
	}
}

// describe turns a failed turn into a short user-facing sentence.
func describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return "The embedding token budget is used up"
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return "The embedding service is unavailable"
	case errors.Is(err, domain.ErrCompletionProviderError):
		return "The answering service is unavailable"
	default:
		return "Something went wrong"
	}
}
