package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/glide-the/RAGFlowMCP/internal/protocol"
)

func newVersionCmd(g *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.JSON {
				emitNDJSON(cmd.OutOrStdout(), "version", map[string]any{
					"name":    protocol.ServerName,
					"version": protocol.ServerVersion,
				})
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), protocol.ServerName, protocol.ServerVersion)
			return nil
		},
	}
}
