// Autoprov walks factory-reset IoT devices onto real networks in bulk.
//
// It drives one or two DD-WRT control devices over their telnet consoles,
// alternating them between hosting the target network and bridging onto
// each device's factory hotspot, so whole batches of devices can be
// programmed without ever touching the operator host's own WiFi.
//
// Usage:
//
//	autoprov [command] [flags]
//
// The typical cycle is: import a CSV of network instructions, run
// provision-list, plug devices in one at a time as prompted.
// See 'autoprov --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wclark/autoprov/internal/logging"
	"github.com/wclark/autoprov/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autoprov",
	Short: "Bulk provisioning for factory-reset IoT devices",
	Long: `Autoprov programs factory-reset IoT devices onto real networks.

DD-WRT control devices do the network hopping: one hosts the target
network while another bridges onto each device's factory hotspot to push
join instructions. Import a list of networks, run provision-list, and
plug devices in one at a time.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("autoprov %s\n", version.Full())
	},
}
