package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oakwood-commons/ccs/pkg/loader"
	"github.com/oakwood-commons/ccs/pkg/tree"
)

var saveCmd = &cobra.Command{
	Use:   "save <id> <filename>",
	Short: "Save an attribute value or a subtree to a file",
	Long: `Save writes the value below id to filename. The encoding follows the
file extension (.json, .yaml, .yml, .toml, .cbor); other names get JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, filename := args[0], args[1]
		s, err := openSession(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := resolveID(s.tree, id)
		if err != nil {
			return err
		}
		data, err := encodeExport(n, filename)
		if err != nil {
			return fmt.Errorf("saving %s: %w", id, err)
		}
		if err := os.WriteFile(filename, data, 0o600); err != nil {
			return fmt.Errorf("saving %s: %w", id, err)
		}
		return nil
	},
}

// encodeExport serializes n in the format implied by filename. TOML needs a
// table at the top, so an attribute is wrapped under its own id.
func encodeExport(n tree.Node, filename string) ([]byte, error) {
	format := loader.FormatFromPath(filename)
	if format == loader.FormatAuto {
		format = loader.FormatJSON
	}
	v := tree.Export(n)
	if _, isAttr := n.(tree.Attribute); isAttr && format == loader.FormatTOML {
		v = loader.Map{{Key: n.ID(), Value: v}}
	}
	return loader.Encode(v, format)
}
