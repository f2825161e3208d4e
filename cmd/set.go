package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/ccs/pkg/logger"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

var setCmd = &cobra.Command{
	Use:     "set <id> <value>",
	Aliases: []string{"s"},
	Short:   "Set the value of a writable attribute",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, value := args[0], args[1]
		s, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := resolveID(s.tree, id)
		if err != nil {
			return err
		}
		a, ok := n.(tree.Attribute)
		if !ok || !a.Writable() {
			return &idError{id: id, err: ErrNotSettable}
		}
		if err := a.SetValue(cmd.Context(), value); err != nil {
			return &idError{id: id, err: err}
		}
		logger.FromContext(cmd.Context()).V(1).Info("attribute set", logger.PathKey, a.AbsolutePath(), "value", a.ValueString())
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.AbsolutePath(), a.ValueString())
		return nil
	},
}
