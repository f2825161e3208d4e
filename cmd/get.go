package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Output formats of get.
const (
	getFormatString = "string"
	getFormatJSON   = "json"
)

var getFormat string

var getCmd = &cobra.Command{
	Use:     "get <id>",
	Aliases: []string{"g"},
	Short:   "Print the value of an attribute or the subtree below a container",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if getFormat != getFormatString {
			// json is accepted on the command line but has no renderer yet
			return fmt.Errorf("%w: %s", ErrUnknownFormat, getFormat)
		}
		s, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := resolveID(s.tree, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n.String())
		return nil
	},
}

func init() { //nolint:gochecknoinits
	getCmd.Flags().StringVar(&getFormat, "format", getFormatString, "output format: string|json")
}
