// Package ragservecmder
package ragservecmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/helixbyte/ragserve/cmd/ragserve/serve"
	versioncmder "github.com/helixbyte/ragserve/cmd/version"
)

const ragserveLongDesc string = `Ragserve answers questions about your documents.

Ingest PDFs and query them with retrieval-augmented generation:
  ragserve serve    Run the API server`

const ragserveShortDesc string = "Ragserve - Document Question Answering"

func NewRagserveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragserve",
		Short: ragserveShortDesc,
		Long:  ragserveLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
