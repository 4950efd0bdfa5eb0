// Package console is the interactive front end of a meshchat node. It maps
// typed commands to session operations through a name to handler table and
// renders their outcomes and inbound notices.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/opd-ai/meshchat"
	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
)

var (
	successColor = color.New(color.FgGreen).SprintFunc()
	errorColor   = color.New(color.FgHiRed).SprintFunc()
	noticeColor  = color.New(color.FgCyan).SprintFunc()
	messageColor = color.New(color.Bold).SprintFunc()
)

// Executor runs an operation on the goroutine that owns the session.
// *meshchat.Node implements it.
type Executor interface {
	Do(ctx context.Context, op func(*meshchat.Session) meshchat.Outcome) meshchat.Outcome
}

// Console reads commands and prints outcomes and notices.
type Console struct {
	prompter Prompter
	prompt   string
	commands map[string]Command

	mu  sync.Mutex
	out io.Writer
}

// New creates a console writing to out.
func New(prompter Prompter, out io.Writer) *Console {
	c := &Console{
		prompter: prompter,
		prompt:   "> ",
		out:      out,
	}
	c.commands = c.commandTable()
	return c
}

// SetPrompt changes the input prompt.
func (c *Console) SetPrompt(p string) {
	c.prompt = p
}

// Notify prints a notice. It implements meshchat.Notifier and may be called
// from the node's event loop while a prompt is open.
func (c *Console) Notify(n meshchat.Notice) {
	text := n.String()
	switch n.Kind {
	case meshchat.NoticeDirectMessage, meshchat.NoticeGroupMessage:
		text = messageColor(text)
	default:
		text = noticeColor("* " + text)
	}
	c.println(text)
}

func (c *Console) println(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, text)
}

// Execute runs one input line. It reports false once the console should
// exit.
func (c *Console) Execute(ctx context.Context, exec Executor, line string) (meshchat.Outcome, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return meshchat.Outcome{Succeeded: true}, true
	}

	name, rest, _ := strings.Cut(line, " ")
	cmd, found := c.commands[name]
	if !found {
		return meshchat.Outcome{Detail: fmt.Sprintf("unknown command %q (try help)", name)}, true
	}

	args, valid := parseArgs(rest, cmd.Args, cmd.Tail)
	if !valid {
		return meshchat.Outcome{Detail: fmt.Sprintf("usage: %s %s", name, cmd.Usage)}, true
	}

	logrus.WithFields(logrus.Fields{
		"function": "Execute",
		"command":  name,
	}).Debug("Running command")

	outcome := exec.Do(ctx, func(s *meshchat.Session) meshchat.Outcome {
		return cmd.Handler(s, args)
	})
	return outcome, !cmd.Quit
}

// Render prints an outcome.
func (c *Console) Render(outcome meshchat.Outcome) {
	if outcome.Detail == "" {
		return
	}
	if outcome.Succeeded {
		c.println(successColor(outcome.String()))
		return
	}
	c.println(errorColor(outcome.String()))
}

// Run reads and executes lines until quit, end of input or cancellation.
func (c *Console) Run(ctx context.Context, exec Executor) error {
	for ctx.Err() == nil {
		line, err := c.prompter.Prompt(c.prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(line) != "" {
			c.prompter.AppendHistory(line)
		}

		outcome, more := c.Execute(ctx, exec, line)
		c.Render(outcome)
		if !more {
			return nil
		}
	}
	return ctx.Err()
}
