package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ContentRenderer transforms outbound text before printing, e.g. markdown
// to styled terminal output.
type ContentRenderer func(string) (string, error)

// NewMarkdownRenderer returns a glamour-backed renderer when w is a TTY.
// On a pipe it returns nil so text passes through untouched.
func NewMarkdownRenderer(w io.Writer) ContentRenderer {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Detect light/dark background
	)
	if err != nil {
		return nil
	}
	return r.Render
}

// Connector implements ports.Connector against a terminal. It is the
// outbound side of the local chat loop.
type Connector struct {
	writer   io.Writer
	renderer ContentRenderer
}

// NewConnector creates a console connector. A nil writer means os.Stdout.
func NewConnector(w io.Writer) *Connector {
	if w == nil {
		w = os.Stdout
	}
	return &Connector{
		writer:   w,
		renderer: NewMarkdownRenderer(w),
	}
}

// Send prints one message to the terminal. Markdown is styled when the
// output is a TTY; buttons and contact requests are rendered as plain hints
// since a terminal has no native widgets for them.
func (c *Connector) Send(ctx context.Context, userID string, msg domain.Message) error {
	output := msg.Text
	if msg.Format == domain.FormatMarkdown && c.renderer != nil {
		if rendered, err := c.renderer(msg.Text); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(c.writer, strings.TrimRight(output, "\n"))

	if len(msg.Buttons) > 0 {
		p := termenv.ColorProfile()
		for _, b := range msg.Buttons {
			hint := termenv.String("  [" + b + "]").Foreground(p.Color("#818cf8"))
			fmt.Fprintln(c.writer, hint)
		}
	}
	if msg.RequestContact {
		fmt.Fprintln(c.writer, "  (contact requested)")
	}
	return nil
}

// Processor is the engine surface the chat loop drives.
type Processor interface {
	Process(ctx context.Context, userID, platform, text string, metadata map[string]string)
}

// Chat runs a blocking read loop: each line becomes one turn for the given
// user on the "console" platform. It returns on EOF or /quit.
func Chat(ctx context.Context, engine Processor, userID string, in io.Reader, out io.Writer) error {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		text := strings.TrimSpace(line)
		if text == "/quit" || text == "/exit" {
			return nil
		}
		if text == "" {
			continue
		}

		engine.Process(ctx, userID, "console", text, nil)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
