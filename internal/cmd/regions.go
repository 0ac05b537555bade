package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"

	"github.com/tomasbasham/s3apo/internal/region"
)

// NewRegionsCommand lists the region codes accepted by --region.
func NewRegionsCommand(streams iooption.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the supported regions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, r := range region.All() {
				if _, err := fmt.Fprintf(streams.Out, "%s\t%s\n", r.Code, r.Label); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
