// Package shell implements the interactive command loop over the vehicle tree.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/oakwood-commons/ccs/internal/completion"
	"github.com/oakwood-commons/ccs/internal/formatter"
	"github.com/oakwood-commons/ccs/internal/navigator"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

const (
	// PromptBase precedes the current path in the prompt.
	PromptBase = "ccs:"
	// Intro is printed once before the first prompt.
	Intro = "Welcome! Type ? to list commands"
)

// Tree is what the shell needs from the vehicle tree.
type Tree interface {
	navigator.Tree
	Refresh(ctx context.Context) error
}

// Shell runs one command at a time against a cursor into the tree.
type Shell struct {
	tree      Tree
	cursor    *navigator.Cursor
	completer *completion.Engine
	out       io.Writer
	styles    formatter.Styles
	log       logr.Logger
}

// Option configures a Shell.
type Option func(*Shell)

// WithStyles colors error lines.
func WithStyles(st formatter.Styles) Option {
	return func(s *Shell) {
		s.styles = st
	}
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Shell) {
		s.log = l
	}
}

// New returns a shell positioned at the root, writing to out.
func New(t Tree, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		tree:      t,
		cursor:    navigator.NewCursor(t),
		completer: completion.NewEngine(t),
		out:       out,
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOutput redirects command output, e.g. to a raw terminal.
func (s *Shell) SetOutput(out io.Writer) { s.out = out }

// Prompt reflects the current path, e.g. "ccs:/vehicle1$".
func (s *Shell) Prompt() string {
	return PromptBase + s.cursor.CurrentPath() + "$"
}

// Cursor exposes the shell's position.
func (s *Shell) Cursor() *navigator.Cursor { return s.cursor }

// Run prints the intro and executes lines from r until exit, end of input or
// ctx cancellation. Cancellation ends the loop silently with a nil error.
// Errors from update are returned.
func (s *Shell) Run(ctx context.Context, r LineReader) error {
	s.println(Intro)
	for {
		r.SetPrompt(s.Prompt())
		line, err := readLine(ctx, r)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, io.EOF):
			s.println("Bye")
			return nil
		case err != nil:
			return err
		}
		stop, err := s.Execute(ctx, line)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

type lineResult struct {
	line string
	err  error
}

// readLine blocks for input but gives up as soon as ctx is done.
func readLine(ctx context.Context, r LineReader) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := r.ReadLine()
		ch <- lineResult{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

// Execute runs one input line. stop reports that the session should end.
// Only fatal tree errors are returned; user mistakes are printed.
func (s *Shell) Execute(ctx context.Context, line string) (stop bool, err error) {
	cmd := Parse(line)
	s.log.V(1).Info("executing", "command", cmd.Name, "arg", cmd.Arg)
	switch cmd.Kind {
	case CommandEmpty:
		return false, nil
	case CommandCd:
		s.cd(cmd.Arg)
	case CommandLs:
		s.ls()
	case CommandPwd:
		s.println(s.cursor.CurrentPath())
	case CommandUpdate:
		return false, s.update(ctx)
	case CommandCat:
		s.cat(cmd.Arg)
	case CommandFind:
		s.find(cmd.Arg)
	case CommandHelp:
		s.help(cmd.Arg)
	case CommandExit:
		s.println("Bye")
		return true, nil
	default:
		s.errorf("Unknown syntax: %s", cmd.Line)
	}
	return false, nil
}

func (s *Shell) cd(arg string) {
	if _, err := s.cursor.ChangeDirectory(arg); err != nil {
		s.errorf("%s", err)
	}
}

func (s *Shell) ls() {
	for _, id := range s.cursor.ListChildren() {
		s.println(id)
	}
}

func (s *Shell) update(ctx context.Context) error {
	if err := s.tree.Refresh(ctx); err != nil {
		return err
	}
	s.println("update done")
	return nil
}

func (s *Shell) cat(arg string) {
	if arg == "" {
		s.println(s.cursor.Node().String())
		return
	}
	n, err := s.cursor.Resolve(arg)
	if err != nil {
		s.errorf("%s", err)
		return
	}
	s.println(n.String())
}

func (s *Shell) find(arg string) {
	onlyWritable := arg == "-s"
	for _, a := range tree.Attributes(s.cursor.Node()) {
		if onlyWritable && !a.Writable() {
			continue
		}
		s.println(a.AbsolutePath())
	}
}

func (s *Shell) help(topic string) {
	if topic != "" {
		info, ok := lookupCommand(topic)
		if !ok {
			s.errorf("No help on %s", topic)
			return
		}
		s.println(info.help)
		return
	}
	rows := [][2]string{{"Documented commands (type help <topic>):", ""}}
	for _, c := range commands {
		rows = append(rows, [2]string{c.name, c.help})
	}
	s.println(formatter.FormatColumns(rows, 2))
}

func (s *Shell) println(line string) {
	if _, err := fmt.Fprintln(s.out, line); err != nil {
		s.log.Error(err, "writing output")
	}
}

func (s *Shell) errorf(format string, args ...any) {
	s.println(s.styles.Error("*** " + fmt.Sprintf(format, args...)))
}
