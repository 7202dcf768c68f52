package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/doulaboard/internal/wire"
)

// OpenCmd returns the open command
func OpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [client-id]",
		Short: "Follow a deep link to a client profile",
		Long: `Resolve a client the way the dashboard does for /clients/<id>: the loaded
client list is searched under every identifier alias, and the client is
fetched by id only when the list has no match.

Examples:
  doula open abc123
  doula open 4f1c9e0a-request-form-id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeLoader, err := wire.LoaderAdapter(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeLoader()

			_, err = loader.Open(cmd.Context(), args[0])
			return err
		},
	}
}
