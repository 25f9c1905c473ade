// Package cli implements the duelink command line interface.
package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/duelink/duelink/internal/config"
	"github.com/duelink/duelink/internal/ui"
	"github.com/duelink/duelink/internal/version"
)

var (
	flagDomain   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagInsecure bool
	flagName     string
	flagLocation string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "duelink",
	Short:   "Peer-to-peer duel sessions over WebRTC",
	Long: `Duelink pairs two players through a rendezvous server, negotiates a
direct WebRTC connection between them, and keeps their game state
synchronized over the resulting data channel. The server only brokers the
handshake; all gameplay traffic flows peer to peer.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom rendezvous domain")
	cmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().BoolVar(&flagInsecure, "insecure", false, "Use ws/http instead of wss/https")
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{
		Domain:     flagDomain,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		Insecure:   flagInsecure,
	})
}
