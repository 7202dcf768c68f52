package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/doulaboard/internal/wire"
)

// BrowseCmd returns the browse command
func BrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Drive the profile loader interactively",
		Long: `Read navigation events from stdin, one per line:

  <client-id>        open /clients/<client-id>
  /clients/<id>      follow a route path
  close              dismiss the profile panel
  clear              return to the client list
  refresh            reload the client list
  quit               exit

The loader keeps its state between lines, so a dismissed profile stays
closed and a client that was not found is not fetched again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeLoader, err := wire.LoaderAdapter(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeLoader()

			fmt.Fprintln(cmd.OutOrStdout(), "Type a client id, close, clear, refresh or quit.")
			return loader.Browse(cmd.Context(), cmd.InOrStdin())
		},
	}
}
