package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oakwood-commons/ccs/internal/shell"
	"github.com/oakwood-commons/ccs/pkg/logger"
)

var shellCmd = &cobra.Command{
	Use:     "shell",
	Aliases: []string{"sh"},
	Short:   "Browse the tree interactively",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runShell(cmd)
	},
}

// terminal is the stdin/stdout pair handed to the raw line editor.
type terminal struct {
	io.Reader
	io.Writer
}

func runShell(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.tree.Startup(ctx, s.config.RefreshInterval); err != nil {
		return err
	}

	lgr := logger.FromContext(ctx)
	out := cmd.OutOrStdout()
	sh := shell.New(s.tree, out, shell.WithStyles(styles(s.run, out)), shell.WithLogger(*lgr))

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return err
		}
		defer func() { _ = term.Restore(int(f.Fd()), state) }()

		reader := shell.NewTermReader(terminal{Reader: f, Writer: out}, sh)
		sh.SetOutput(reader)
		return sh.Run(ctx, reader)
	}
	return sh.Run(ctx, shell.NewScannerReader(in, out))
}
