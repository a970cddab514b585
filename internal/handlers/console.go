package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/trackmapper/editor/internal/dispatcher"
	"github.com/trackmapper/editor/internal/editor"
)

// Console reads commands line by line and prints results and notices.
type Console struct {
	d       *dispatcher.Dispatcher
	notices *editor.NoticeQueue
	out     io.Writer
	prompt  string
}

// NewConsole creates a console over a dispatcher with registered commands.
// Notices queued while a command runs are printed after it.
func NewConsole(d *dispatcher.Dispatcher, notices *editor.NoticeQueue, out io.Writer) *Console {
	return &Console{d: d, notices: notices, out: out}
}

// SetPrompt sets the text printed before each command is read.
func (c *Console) SetPrompt(p string) {
	c.prompt = p
}

// Run processes commands from in until EOF, "quit" or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.prompt != "" {
			fmt.Fprint(c.out, c.prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		c.Exec(ctx, line)
	}
}

// Exec runs a single command line.
func (c *Console) Exec(ctx context.Context, line string) {
	args, err := SplitArgs(line)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	if len(args) == 0 {
		return
	}

	if args[0] == "help" {
		c.help()
		return
	}

	result, err := c.d.Dispatch(ctx, dispatcher.Event{Command: args[0], Args: args[1:]})
	notices := c.notices.Drain()

	if result != nil {
		fmt.Fprintln(c.out, result)
	}
	for _, n := range notices {
		fmt.Fprintf(c.out, "[%s] %s\n", n.Level, n.Message)
	}
	// Errors the operation already reported as notices are not repeated.
	if err != nil && !editor.WasReported(err) {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}

func (c *Console) help() {
	for _, name := range c.d.Commands() {
		fmt.Fprintf(c.out, "  %s %s\n", name, c.d.Usage(name))
	}
}

// SplitArgs splits a command line on whitespace. Double quotes group words
// so that file paths may contain spaces.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		hasArg  bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			hasArg = true
		case !inQuote && (r == ' ' || r == '\t'):
			if hasArg {
				args = append(args, cur.String())
				cur.Reset()
				hasArg = false
			}
		default:
			cur.WriteRune(r)
			hasArg = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if hasArg {
		args = append(args, cur.String())
	}
	return args, nil
}
