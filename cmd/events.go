package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/ccs/internal/events"
	"github.com/oakwood-commons/ccs/pkg/logger"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Aliases: []string{"e"},
	Short:   "Stream tree changes until interrupted",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx, false)
		if err != nil {
			return err
		}
		defer s.Close()

		lgr := logger.FromContext(ctx)
		printer := events.NewPrinter(cmd.OutOrStdout(),
			events.WithStyles(styles(s.run, cmd.OutOrStdout())),
			events.WithLogger(*lgr),
		)
		lgr.V(1).Info("streaming events", "interval", s.config.RefreshInterval.String())
		return events.Stream(ctx, s.tree, printer, func(ctx context.Context) error {
			return s.tree.Startup(ctx, s.config.RefreshInterval)
		})
	},
}
