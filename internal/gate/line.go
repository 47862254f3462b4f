package gate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ashwch/syntaxpilot/internal/resolver"
)

// Prompt is printed after the candidate by LineConfirmer.
const Prompt = "Press Enter to run it, or type anything else to cancel: "

// LineConfirmer reads exactly one line. A bare newline (or CRLF) accepts;
// any other input, including whitespace or EOF before a newline, rejects.
type LineConfirmer struct {
	In     io.Reader
	Out    io.Writer
	Render func(resolver.Candidate) string
}

func (c LineConfirmer) Confirm(ctx context.Context, candidate resolver.Candidate) (Decision, error) {
	if c.In == nil {
		return DecisionRejected, errors.New("no input to read confirmation from")
	}
	if c.Out != nil {
		render := c.Render
		if render == nil {
			render = PlainRender
		}
		if _, err := fmt.Fprint(c.Out, render(candidate), Prompt); err != nil {
			return DecisionRejected, err
		}
	}

	type lineResult struct {
		line string
		err  error
	}
	// The read cannot be interrupted; on cancellation the goroutine is left
	// to finish when the reader returns.
	done := make(chan lineResult, 1)
	go func() {
		line, err := readLine(c.In)
		done <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return DecisionRejected, ctx.Err()
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				return DecisionRejected, nil
			}
			return DecisionRejected, r.err
		}
		return DecideLine(r.line), nil
	}
}

// readLine reads byte by byte up to and including '\n'. Anything after the
// newline stays in r for the command that runs next.
func readLine(r io.Reader) (string, error) {
	var (
		line []byte
		b    [1]byte
	)
	for {
		n, err := r.Read(b[:])
		if n == 1 {
			line = append(line, b[0])
			if b[0] == '\n' {
				return string(line), nil
			}
		}
		if err != nil {
			return string(line), err
		}
	}
}

// DecideLine applies the confirmation rule to one line including its
// terminator.
func DecideLine(line string) Decision {
	if line == "\n" || line == "\r\n" {
		return DecisionAccepted
	}
	return DecisionRejected
}

func PlainRender(candidate resolver.Candidate) string {
	var b strings.Builder
	b.WriteString("Suggested command:\n\n    ")
	b.WriteString(candidate.Command)
	b.WriteString("\n\n")
	if candidate.Source != "" {
		fmt.Fprintf(&b, "(%s, confidence %.2f)\n", candidate.Source, candidate.Confidence)
	}
	return b.String()
}
