package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// Prompter reads input lines from the user.
type Prompter interface {
	AppendHistory(item string)
	Prompt(p string) (string, error)
	PasswordPrompt(p string) (string, error)
	Close() error
}

// dumbterm is the fallback for unsupported terminals and piped input.
type dumbterm struct {
	r *bufio.Reader
	w io.Writer
}

func (d dumbterm) Prompt(p string) (string, error) {
	fmt.Fprint(d.w, p)
	line, err := d.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (d dumbterm) PasswordPrompt(p string) (string, error) {
	fmt.Fprintln(d.w, "!! Unsupported terminal, password will echo.")
	return d.Prompt(p)
}

func (d dumbterm) AppendHistory(string) {}

func (d dumbterm) Close() error { return nil }

// NewPrompter returns a liner-backed prompter when stdin is an interactive
// terminal and a plain line reader otherwise.
func NewPrompter(interactive bool) Prompter {
	if !interactive || !liner.TerminalSupported() {
		return dumbterm{r: bufio.NewReader(os.Stdin), w: os.Stdout}
	}

	lr := liner.NewLiner()
	lr.SetCtrlCAborts(true)
	lr.SetCompleter(Complete)
	lr.SetTabCompletionStyle(liner.TabPrints)
	return lr
}

// NewReaderPrompter reads lines from r and echoes prompts to w.
func NewReaderPrompter(r io.Reader, w io.Writer) Prompter {
	return dumbterm{r: bufio.NewReader(r), w: w}
}
