package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join an existing duel room",
	Long: `Join a room created by another player. As the joining side this
client initiates the WebRTC negotiation once the server confirms the room.

Examples:
  duelink join a1b2c3d4
  duelink join --name Bob a1b2c3d4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one room id")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSession(cfg, args[0])
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	addConnectionFlags(joinCmd)
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name shared with the opponent")
	joinCmd.Flags().StringVarP(&flagLocation, "location", "l", "", "In-game location for matchmaking")
}
