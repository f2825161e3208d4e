package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/ccs/pkg/tree"
)

var listSettable bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the ids of all attributes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		for _, a := range tree.Attributes(s.tree.Root()) {
			if listSettable && !a.Writable() {
				continue
			}
			fmt.Fprintln(out, a.AbsolutePath())
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits
	listCmd.Flags().BoolVarP(&listSettable, "setters", "s", false, "only list attributes that can be set")
}
