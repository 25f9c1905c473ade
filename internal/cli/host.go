package cli

import (
	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h"},
	Short:   "Create a duel room and wait for an opponent",
	Long: `Create a new room on the rendezvous server and wait for an opponent
to join. Once both players are present the opponent initiates the WebRTC
negotiation and gameplay traffic moves onto the direct peer connection.

Examples:
  duelink host
  duelink host --name Alice
  duelink host --domain duel.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSession(cfg, "")
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)
	addConnectionFlags(hostCmd)
	hostCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name shared with the opponent")
	hostCmd.Flags().StringVarP(&flagLocation, "location", "l", "", "In-game location for matchmaking")
}
