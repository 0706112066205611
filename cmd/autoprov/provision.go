package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wclark/autoprov/internal/controlchan"
	"github.com/wclark/autoprov/internal/ddwrt"
	"github.com/wclark/autoprov/internal/discovery"
	"github.com/wclark/autoprov/internal/ota"
	"github.com/wclark/autoprov/internal/provision"
	"github.com/wclark/autoprov/internal/shelly"
	"github.com/wclark/autoprov/internal/store"
	"github.com/wclark/autoprov/internal/ui"
)

// Provisioning and device command flags
var (
	ddwrtNames    []string
	provGroup     string
	otaVersion    string
	otaImageURL   string
	cueBetween    bool
	scanSeconds   int
	toggleChannel string
	forceReset    bool
)

func init() {
	provisionListCmd.Flags().StringSliceVar(&ddwrtNames, "ddwrt", nil, "Control device name(s) to use (default: all learned)")
	provisionListCmd.Flags().StringVar(&provGroup, "group", "", "Only process instructions in this group")
	provisionListCmd.Flags().StringVar(&otaVersion, "ota", "", "Update firmware after provisioning (version or LATEST)")
	provisionListCmd.Flags().StringVar(&otaImageURL, "ota-url", "", "Explicit firmware image URL")
	provisionListCmd.Flags().BoolVar(&cueBetween, "cue", false, "Pause for <enter> between devices")

	flashCmd.Flags().StringVar(&otaImageURL, "ota-url", "", "Explicit firmware image URL")
	identifyCmd.Flags().StringVar(&toggleChannel, "channel", "", "Channel kind to toggle (relay or light; default from device type)")
	factoryResetCmd.Flags().BoolVar(&forceReset, "force", false, "Reset without confirmation")
	probeCmd.Flags().StringVar(&provGroup, "group", "", "Only probe instructions in this group")
	scanCmd.Flags().IntVar(&scanSeconds, "timeout", 10, "Scan timeout in seconds")

	rootCmd.AddCommand(provisionListCmd)
	rootCmd.AddCommand(flashCmd)
	rootCmd.AddCommand(factoryResetCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(scanCmd)
}

var provisionListCmd = &cobra.Command{
	Use:   "provision-list",
	Short: "Provision every pending instruction in the queue",
	Long: `Work through the imported instruction queue, provisioning one
factory-reset device per pending instruction.

Requires at least one learned control device (see ddwrt-learn). With two,
one hosts the target network while the other bridges onto each factory
hotspot; with one, it alternates between the roles.`,
	Example: `  # Provision everything pending
  autoprov provision-list

  # One group, firmware updated afterwards, pausing between devices
  autoprov provision-list --group floor2 --ota LATEST --cue`,
	RunE: runProvisionList,
}

func runProvisionList(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	queue, err := store.LoadQueue(settings.QueueFile)
	if err != nil {
		return err
	}
	devices, err := store.LoadDevices(settings.DeviceDBFile)
	if err != nil {
		return err
	}
	routers, err := store.LoadRouters(settings.RouterFile)
	if err != nil {
		return err
	}

	pending := queue.Pending(provGroup)
	if len(pending) == 0 {
		fmt.Println("Nothing to provision. Import instructions first or check --group.")
		return nil
	}

	nodes, closeAll, err := connectControlDevices(routers)
	if err != nil {
		return err
	}
	defer closeAll()

	orch := provision.New(settings, queue, devices, nodes)
	orch.Group = provGroup
	orch.OTAVersion = normalizeOTAVersion(otaVersion)
	orch.OTAImageURL = otaImageURL
	if cueBetween {
		orch.Cue = func() {
			ui.PromptEnter("\nPress <enter> when the next device is plugged in")
		}
	}

	ui.Header(fmt.Sprintf("Provisioning %d pending instruction(s)", len(pending)))
	summary, err := orch.Run()

	if summary.Succeeded == summary.Attempted && err == nil {
		ui.Successf("Successfully provisioned %d out of %d devices", summary.Succeeded, summary.Attempted)
	} else {
		ui.Warnf("Successfully provisioned %d out of %d devices", summary.Succeeded, summary.Attempted)
	}
	return err
}

// connectControlDevices opens sessions to the selected control devices.
func connectControlDevices(routers *store.RouterDB) ([]*ddwrt.Node, func(), error) {
	var profiles []*ddwrt.Router
	if len(ddwrtNames) > 0 {
		for _, name := range ddwrtNames {
			r, err := routers.Get(name)
			if err != nil {
				return nil, nil, err
			}
			profiles = append(profiles, r)
		}
	} else {
		profiles = routers.All()
	}
	if len(profiles) == 0 {
		return nil, nil, fmt.Errorf("no control devices learned; run 'autoprov ddwrt-learn' first")
	}

	var nodes []*ddwrt.Node
	closeAll := func() {
		for _, node := range nodes {
			if closer, ok := node.Session.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}
	}

	for _, profile := range profiles {
		node, err := ddwrt.Connect(profile, controlchan.DefaultOptions())
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", profile.Name, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, closeAll, nil
}

// normalizeOTAVersion maps the CLI's LATEST spelling onto the updater's
// sentinel.
func normalizeOTAVersion(v string) string {
	if strings.EqualFold(v, "latest") {
		return ota.VersionLatest
	}
	return v
}

var flashCmd = &cobra.Command{
	Use:   "flash <address> <version|LATEST>",
	Short: "Update firmware on one device",
	Long: `Run a firmware update on one already-provisioned device and wait
for the cycle to finish. LATEST takes whatever the device's update
channel currently serves; a version string must match what the device
reports afterwards.`,
	Args: cobra.ExactArgs(2),
	RunE: runFlash,
}

func runFlash(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	addr, version := args[0], normalizeOTAVersion(args[1])
	client := shelly.NewClient(addr)

	updater := ota.NewUpdater(version, settings.OTATimeout, settings.OTAMaxChecks, settings.PollInterval)
	updater.ImageURL = otaImageURL

	fmt.Printf("Updating firmware on %s...\n", addr)
	res := updater.Run(client)

	switch res.Outcome {
	case ota.OutcomeSuccess:
		ui.Successf("Updated %s: %s -> %s", addr, res.OldVersion, res.NewVersion)
	case ota.OutcomeSkipped:
		ui.Successf("%s already on %s", addr, res.OldVersion)
	default:
		ui.Errorf("Update %s: %s", res.Outcome, res.Detail)
		return fmt.Errorf("firmware update ended in %s", res.Outcome)
	}
	return nil
}

var factoryResetCmd = &cobra.Command{
	Use:   "factory-reset <address>",
	Short: "Wipe a device back to its factory state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := args[0]
		if !forceReset {
			ui.Warnf("This wipes all settings on %s; it reboots back onto its factory hotspot", addr)
			ui.PromptEnter("Press <enter> to continue, ^C to cancel")
		}
		client := shelly.NewClient(addr)
		if err := client.FactoryReset(); err != nil {
			return err
		}
		ui.Successf("Factory reset sent to %s", addr)
		return nil
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify <address>",
	Short: "Toggle a device's output to find it physically",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentify,
}

func runIdentify(cmd *cobra.Command, args []string) error {
	client := shelly.NewClient(args[0])

	channel := toggleChannel
	if channel == "" {
		channel = "relay"
		// Dimmer and bulb models expose a light channel instead
		if s, err := client.Settings(); err == nil {
			if strings.Contains(s.Device.Type, "DM") || strings.Contains(s.Device.Type, "BL") {
				channel = "light"
			}
		}
	}

	if err := client.ToggleChannel(channel); err != nil {
		return err
	}
	ui.Successf("Toggled %s on %s", channel, args[0])
	return nil
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Record already-deployed devices listed with ProbeIP",
	Long: `Visit every queue instruction that carries a ProbeIP address,
read the device's status and settings, and write its record to the
device database. Records with Access=Periodic may be offline; they are
reported but not treated as failures.`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	queue, err := store.LoadQueue(settings.QueueFile)
	if err != nil {
		return err
	}
	devices, err := store.LoadDevices(settings.DeviceDBFile)
	if err != nil {
		return err
	}

	probed, missed := 0, 0
	for _, in := range queue.Instructions {
		if in.ProbeIP == "" || !in.InGroup(provGroup) {
			continue
		}

		client := shelly.NewClient(in.ProbeIP)
		st, err := client.Status()
		if err != nil {
			missed++
			if in.Access == "Periodic" {
				ui.Detail("%s offline (Periodic access)", in.ProbeIP)
			} else {
				ui.Warnf("%s unreachable: %v", in.ProbeIP, err)
			}
			continue
		}

		rec := *in
		rec.Origin = "probe-list"
		rec.ID = st.MAC
		rec.IP = in.ProbeIP
		rec.ConfirmedTime = store.Now()
		if raw, err := json.Marshal(st); err == nil {
			rec.Status = raw
		}
		if s, err := client.Settings(); err == nil {
			if raw, err := json.Marshal(s); err == nil {
				rec.Settings = raw
			}
		}
		devices.Put(st.MAC, &rec)
		probed++
		ui.Detail("%s -> %s", in.ProbeIP, st.MAC)
	}

	if probed > 0 {
		if err := devices.Save(); err != nil {
			return err
		}
	}
	ui.Successf("Probed %d device(s), %d unreachable", probed, missed)
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the local network for provisioned devices via mDNS",
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	scanner := discovery.NewScanner(settings.Prefix)
	scanner.Timeout = time.Duration(scanSeconds) * time.Second

	fmt.Printf("Scanning for devices (timeout: %ds)...\n\n", scanSeconds)
	found, err := scanner.ScanForDevices()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(found) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	header := []string{"Name", "IP", "Port", "Hostname"}
	var rows [][]string
	for _, d := range found {
		rows = append(rows, []string{d.Name, d.IP, fmt.Sprintf("%d", d.Port), d.Hostname})
	}
	ui.Table(header, rows)
	return nil
}
