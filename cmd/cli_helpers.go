package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/oakwood-commons/ccs/internal/config"
	"github.com/oakwood-commons/ccs/internal/formatter"
	"github.com/oakwood-commons/ccs/internal/navigator"
	"github.com/oakwood-commons/ccs/pkg/cache"
	"github.com/oakwood-commons/ccs/pkg/logger"
	"github.com/oakwood-commons/ccs/pkg/settings"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

var (
	// ErrUnknownFormat is returned for output formats that are not implemented.
	ErrUnknownFormat = errors.New("Unknown format") //nolint:stylecheck,revive // user facing message
	// ErrIDNotFound is returned when an id does not resolve.
	ErrIDNotFound = errors.New("not found")
	// ErrNotSettable is returned when an id is not a writable attribute.
	ErrNotSettable = errors.New("cannot be set")
)

// idError names the id that could not be used.
type idError struct {
	id  string
	err error
}

func (e *idError) Error() string {
	if errors.Is(e.err, ErrNotSettable) {
		return fmt.Sprintf("id %s cannot be set.  You can see all changeable entries with \"list -s\"", e.id)
	}
	if errors.Is(e.err, ErrIDNotFound) {
		return fmt.Sprintf("id %s not found", e.id)
	}
	return fmt.Sprintf("id %s cannot be set: %v", e.id, e.err)
}

func (e *idError) Unwrap() error { return e.err }

// cliError prefixes an error with the message shown to the user.
type cliError struct {
	msg string
	err error
}

func (e *cliError) Error() string { return e.msg + ": " + e.err.Error() }

func (e *cliError) Unwrap() error { return e.err }

// userError maps fatal errors to the messages printed before exiting.
func userError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	var (
		authErr *tree.AuthenticationError
		retrErr *tree.RetrievalError
		cfgErr  *config.ConfigurationError
	)
	switch {
	case errors.Is(err, config.ErrLoad):
		return &cliError{msg: "Could not load configuration file", err: err}
	case errors.As(err, &authErr), errors.As(err, &retrErr):
		return &cliError{msg: "There was a problem when communicating with one or multiple services", err: err}
	case errors.As(err, &cfgErr):
		return &cliError{msg: "There was a problem with the configuration", err: err}
	default:
		return err
	}
}

// session is a refreshed tree plus what must be released afterwards.
type session struct {
	tree   *tree.Tree
	config *config.Config
	run    *settings.Run
	store  *cache.Store
}

func (s *session) Close() {
	s.tree.Shutdown()
	if s.store != nil {
		_ = s.store.Close()
	}
}

// openSession loads the configuration and builds the tree. The tree is
// refreshed once unless refresh is false.
func openSession(ctx context.Context, refresh bool, opts ...tree.Option) (*session, error) {
	run := settings.FromContextOrDefault(ctx)
	lgr := logger.FromContext(ctx)

	cfg, err := config.Load(run.ConfigFile)
	if err != nil {
		return nil, err
	}
	treeOpts, err := cfg.TreeOptions(run.TokenFile)
	if err != nil {
		return nil, err
	}
	treeOpts = append(treeOpts, tree.WithLogger(*lgr))

	s := &session{config: cfg, run: run}
	if run.CacheFile != "" {
		store, err := cache.Open(run.CacheFile)
		if err != nil {
			lgr.Error(err, "opening cache, continuing without", "path", run.CacheFile)
		} else {
			s.store = store
			treeOpts = append(treeOpts, tree.WithCache(store))
		}
	}
	s.tree = tree.New(append(treeOpts, opts...)...)

	if refresh {
		if err := s.tree.Refresh(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// resolveID looks up an id from the root.
func resolveID(t *tree.Tree, id string) (tree.Node, error) {
	n, err := navigator.Resolve(t, t.Root(), id)
	if err != nil {
		return nil, &idError{id: id, err: ErrIDNotFound}
	}
	return n, nil
}

// styles colors output only for a terminal, unless colors are disabled.
func styles(run *settings.Run, out io.Writer) formatter.Styles {
	return formatter.NewStyles(!run.NoColor && isTerminal(out))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
