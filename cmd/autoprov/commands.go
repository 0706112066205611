package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wclark/autoprov/internal/config"
	"github.com/wclark/autoprov/internal/controlchan"
	"github.com/wclark/autoprov/internal/ddwrt"
	"github.com/wclark/autoprov/internal/store"
	"github.com/wclark/autoprov/internal/ui"
)

// Queue and store command flags
var (
	groupName      string
	queueFile      string
	deviceDBFile   string
	routerFile     string
	routerPassword string
	forceClear     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&queueFile, "queue-file", "", "Instruction queue file (default from settings)")
	rootCmd.PersistentFlags().StringVar(&deviceDBFile, "device-db", "", "Device record file (default from settings)")
	rootCmd.PersistentFlags().StringVar(&routerFile, "router-db", "", "Control device profile file (default from settings)")

	importCmd.Flags().StringVar(&groupName, "group", "", "Group tag added to every imported record")
	listCmd.Flags().StringVar(&groupName, "group", "", "Only list records in this group")
	clearListCmd.Flags().BoolVar(&forceClear, "force", false, "Clear without confirmation")
	learnCmd.Flags().StringVar(&routerPassword, "password", "", "Console password (prompted when omitted)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(clearListCmd)
	rootCmd.AddCommand(learnCmd)
}

// loadSettings reads the settings file and applies store path overrides.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	if queueFile != "" {
		settings.QueueFile = queueFile
	}
	if deviceDBFile != "" {
		settings.DeviceDBFile = deviceDBFile
	}
	if routerFile != "" {
		settings.RouterFile = routerFile
	}
	return settings, nil
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import provisioning instructions from CSV or JSON",
	Long: `Import a list of provisioning instructions into the queue.

CSV columns (JSON uses the same field names): SSID and Password are
required unless the record carries only a ProbeIP. Optional columns:
StaticIP, NetMask, Gateway, DeviceName, LatLng, TZ, Group, Label, Tags,
ProbeIP, Access.`,
	Example: `  # Import a site worksheet
  autoprov import site42.csv

  # Tag every imported record with a group
  autoprov import site42.csv --group floor2`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	queue, err := store.LoadQueue(settings.QueueFile)
	if err != nil {
		return err
	}

	count, err := queue.ImportFile(args[0])
	if err != nil {
		return err
	}
	if groupName != "" {
		for _, in := range queue.Instructions {
			if in.Group == "" {
				in.Group = groupName
			}
		}
		if err := queue.Save(); err != nil {
			return err
		}
	}

	ui.Successf("Imported %d instruction(s) into %s", count, settings.QueueFile)
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the imported provisioning instructions",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	queue, err := store.LoadQueue(settings.QueueFile)
	if err != nil {
		return err
	}
	if len(queue.Instructions) == 0 {
		fmt.Println("No instructions imported. Use 'autoprov import <file>' first.")
		return nil
	}

	ui.Header("Provisioning instructions")
	header := []string{"ProbeIP", "Group", "SSID", "StaticIP", "NetMask", "Gateway", "DeviceName", "Inserted", "Done"}
	var rows [][]string
	for _, in := range queue.Instructions {
		if !in.InGroup(groupName) {
			continue
		}
		done := ""
		if in.Done() {
			done = "yes"
		}
		rows = append(rows, []string{
			in.ProbeIP, in.Group, in.SSID, in.StaticIP, in.NetMask,
			in.Gateway, in.DeviceName, formatEpoch(in.InsertTime), done,
		})
	}
	ui.Table(header, rows)
	return nil
}

var clearListCmd = &cobra.Command{
	Use:   "clear-list",
	Short: "Erase the imported provisioning instructions",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		queue, err := store.LoadQueue(settings.QueueFile)
		if err != nil {
			return err
		}
		if len(queue.Instructions) == 0 {
			fmt.Println("Queue is already empty.")
			return nil
		}
		if !forceClear {
			ui.Warnf("This erases %d instruction(s) from %s", len(queue.Instructions), settings.QueueFile)
			ui.PromptEnter("Press <enter> to continue, ^C to cancel")
		}
		queue.Clear()
		if err := queue.Save(); err != nil {
			return err
		}
		ui.Successf("Cleared %s", settings.QueueFile)
		return nil
	},
}

var learnCmd = &cobra.Command{
	Use:   "ddwrt-learn <name> <address>",
	Short: "Learn a control device's current role configuration",
	Long: `Connect to a DD-WRT control device and record how it is configured
in its current wireless mode. Learn a device once in AP mode and once in
client (sta) mode to make it usable for both sides of provisioning.

The profile is stored under the given name and verified against the
device's hardware identity on every later connection.`,
	Example: `  # Learn the device while it is configured as an access point
  autoprov ddwrt-learn shoprouter 192.168.1.1

  # Re-learn after switching it to client mode
  autoprov ddwrt-learn shoprouter 192.168.1.1`,
	Args: cobra.ExactArgs(2),
	RunE: runLearn,
}

func runLearn(cmd *cobra.Command, args []string) error {
	name, address := args[0], args[1]

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	routers, err := store.LoadRouters(settings.RouterFile)
	if err != nil {
		return err
	}

	password := routerPassword
	if password == "" {
		if prior, ok := routers.Routers[name]; ok {
			password = prior.Password
		}
	}
	if password == "" {
		password, err = ui.PromptPassword("Console password for " + address + ": ")
		if err != nil {
			return err
		}
	}

	router, err := ddwrt.Learn(name, address, password, routers.Routers[name], controlchan.DefaultOptions())
	if err != nil {
		return err
	}

	routers.Put(router)
	if err := routers.Save(); err != nil {
		return err
	}

	ui.Successf("Learned %s (%s)", name, router.MACAddr)
	ui.KeyValue("AP capable", yesNo(router.Capable(ddwrt.RoleAP)))
	ui.KeyValue("Client capable", yesNo(router.Capable(ddwrt.RoleSTA)))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatEpoch(epoch float64) string {
	if epoch == 0 {
		return ""
	}
	return time.Unix(int64(epoch), 0).Format("2006-01-02 15:04")
}
