package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/oakwood-commons/ccs/internal/completion"
)

// LineReader supplies input lines. ReadLine returns io.EOF at end of input.
type LineReader interface {
	SetPrompt(prompt string)
	ReadLine() (string, error)
}

// ScannerReader reads lines from a non-interactive stream, echoing the
// prompt to out.
type ScannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
	prompt  string
}

// NewScannerReader reads from in. out may be nil to suppress prompts.
func NewScannerReader(in io.Reader, out io.Writer) *ScannerReader {
	return &ScannerReader{scanner: bufio.NewScanner(in), out: out}
}

func (r *ScannerReader) SetPrompt(prompt string) { r.prompt = prompt }

func (r *ScannerReader) ReadLine() (string, error) {
	if r.out != nil {
		fmt.Fprint(r.out, r.prompt)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// TermReader edits lines on a terminal in raw mode with tab completion.
// Output written through it gets the line endings a raw terminal needs.
type TermReader struct {
	term *term.Terminal
}

// NewTermReader wraps a raw-mode terminal. The shell supplies completion.
func NewTermReader(rw io.ReadWriter, s *Shell) *TermReader {
	t := term.NewTerminal(rw, "")
	t.AutoCompleteCallback = func(line string, pos int, key rune) (string, int, bool) {
		if key != '\t' {
			return "", 0, false
		}
		return s.CompleteLine(line, pos)
	}
	return &TermReader{term: t}
}

func (r *TermReader) SetPrompt(prompt string) { r.term.SetPrompt(prompt) }

func (r *TermReader) ReadLine() (string, error) { return r.term.ReadLine() }

// Write implements io.Writer for shell output.
func (r *TermReader) Write(p []byte) (int, error) { return r.term.Write(p) }

// CompleteLine completes the word before pos: a command name for the first
// word, a tree path for the argument of path commands. Paths complete one
// level deep only: absolute text against the root's children, relative text
// against the current node's children. The word is extended to the longest
// common prefix of the candidates.
func (s *Shell) CompleteLine(line string, pos int) (string, int, bool) {
	if pos > len(line) {
		pos = len(line)
	}
	head, tail := line[:pos], line[pos:]

	var cands []string
	var word string
	if name, arg, found := strings.Cut(strings.TrimLeft(head, " "), " "); !found {
		word = name
		cands = completion.Words(word, commandNames())
		if len(cands) == 1 {
			cands[0] += " "
		}
	} else {
		info, ok := lookupCommand(name)
		if !ok || !info.path || strings.Contains(strings.TrimLeft(arg, " "), " ") {
			return "", 0, false
		}
		word = strings.TrimLeft(arg, " ")
		cands = s.completer.Complete(word, s.cursor.Node())
	}

	prefix := completion.CommonPrefix(cands)
	if len(prefix) <= len(word) {
		return "", 0, false
	}
	newHead := head[:len(head)-len(word)] + prefix
	return newHead + tail, len(newHead), true
}
