package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wclark/autoprov/internal/config"
	"github.com/wclark/autoprov/internal/discovery"
	"github.com/wclark/autoprov/internal/hostwifi"
	"github.com/wclark/autoprov/internal/ota"
	"github.com/wclark/autoprov/internal/shelly"
	"github.com/wclark/autoprov/internal/store"
	"github.com/wclark/autoprov/internal/ui"
)

var (
	hostSSID     string
	hostPassword string
	hostName     string
	hostLatLng   string
	hostTZ       string
)

func init() {
	provisionCmd.Flags().StringVar(&hostSSID, "ssid", "", "Target network (default: the network this host is on)")
	provisionCmd.Flags().StringVar(&hostPassword, "password", "", "Target network passphrase (prompted when omitted)")
	provisionCmd.Flags().StringVar(&hostName, "name", "", "Device name to apply")
	provisionCmd.Flags().StringVar(&hostLatLng, "latlng", "", "Device location as lat:lng")
	provisionCmd.Flags().StringVar(&hostTZ, "tz", "", "Timezone as tz_dst:tz_dst_auto:tz_utc_offset:tzautodetect")
	provisionCmd.Flags().StringVar(&otaVersion, "ota", "", "Update firmware after provisioning (version or LATEST)")
	provisionCmd.Flags().StringVar(&otaImageURL, "ota-url", "", "Explicit firmware image URL")
	provisionCmd.Flags().BoolVar(&cueBetween, "cue", false, "Pause for <enter> between devices")

	rootCmd.AddCommand(provisionCmd)
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision factory devices using this host's WiFi",
	Long: `Provision factory-reset devices onto the network this host is
connected to, without a control device: the host joins each factory
hotspot itself, pushes the join parameters, and hops back.

The host's WiFi association changes repeatedly during a run. The target
network must be 2.4GHz or the devices will never see it.`,
	Example: `  # Provision onto the current network, one device after another
  autoprov provision --cue

  # Apply a name and location to the (single) device being provisioned
  autoprov provision --name porch-light --latlng 51.5072:-0.1276`,
	RunE: runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	devices, err := store.LoadDevices(settings.DeviceDBFile)
	if err != nil {
		return err
	}

	wifi, err := hostwifi.New()
	if err != nil {
		return err
	}
	if err := wifi.Initialize(); err != nil {
		return fmt.Errorf("failed to read host WiFi state: %w", err)
	}

	current, err := wifi.CurrentSSID()
	if err != nil {
		return err
	}
	if hostSSID != "" && hostSSID != current {
		return fmt.Errorf("host is on %q, not %q; connect to the target network first", current, hostSSID)
	}
	if hostSSID == "" {
		fmt.Printf("Target network: %s. Be sure this is a 2.4GHz network before proceeding.\n", current)
		ui.PromptEnter("Press <enter> to provision devices onto it, ^C to abort")
	}
	if hostPassword == "" {
		hostPassword, err = ui.PromptPassword(fmt.Sprintf("Passphrase for %s", current))
		if err != nil {
			return err
		}
	}

	count := 0
	claimed := make(map[string]bool)
	for {
		if count > 0 && cueBetween {
			ui.PromptEnter("\nPress <enter> when the next device is plugged in")
		}

		found, err := hostwifi.FindNetwork(wifi, settings.Prefix, claimed)
		if err != nil {
			return err
		}
		if found == "" {
			if err := wifi.Reconnect(); err != nil {
				return err
			}
			if settings.WaitTime <= 0 {
				if count == 0 {
					ui.Warnf("No factory device visible (prefix %q)", settings.Prefix)
				}
				break
			}
			time.Sleep(settings.WaitTime)
			continue
		}

		ui.Header("Provisioning " + found)
		claimed[found] = true
		count++

		if err := provisionOverHost(wifi, settings, devices, current, found); err != nil {
			// Leave the host on its own network before reporting
			if rcErr := wifi.Reconnect(); rcErr != nil {
				ui.Errorf("Could not rejoin %s: %v", current, rcErr)
			}
			return err
		}
	}

	if count > 0 {
		ui.Successf("Provisioned %d device(s)", count)
	}
	return nil
}

// provisionOverHost walks one device through the join cycle using the
// host's own WiFi: join the factory hotspot, push parameters, rejoin the
// target network, confirm the device there.
func provisionOverHost(wifi hostwifi.Controller, settings *config.Settings, devices *store.DeviceDB, targetSSID, factorySSID string) error {
	rec := &store.Instruction{
		SSID:           targetSSID,
		Password:       hostPassword,
		DeviceName:     hostName,
		LatLng:         hostLatLng,
		TZ:             hostTZ,
		FactorySSID:    factorySSID,
		InProgressTime: store.Now(),
	}

	ui.Phasef("Joining %s", factorySSID)
	if err := wifi.Connect(factorySSID); err != nil {
		return fmt.Errorf("failed to join %s: %w", factorySSID, err)
	}
	time.Sleep(settings.PauseTime)

	factory := shelly.NewClient(settings.FactoryDeviceAddr)
	st, err := factory.Status()
	if err != nil {
		return fmt.Errorf("factory device not answering on %s: %w", factorySSID, err)
	}

	join := shelly.JoinParams{SSID: targetSSID, Password: hostPassword}
	if err := factory.Join(join); err != nil {
		return fmt.Errorf("failed to push join parameters: %w", err)
	}

	ui.Phasef("Rejoining %s", targetSSID)
	if err := wifi.Reconnect(); err != nil {
		return fmt.Errorf("could not rejoin %s: %w", targetSSID, err)
	}
	rec.CompletedTime = store.Now()

	// The device reappears under its factory name, either as a DHCP
	// hostname or as an mDNS announcement. An address learned over mDNS
	// probes first; the name-derived candidates back it up.
	candidates := shelly.Candidates("", factorySSID)
	scanner := discovery.NewScanner(settings.Prefix)
	scanner.Timeout = settings.WaitTime
	if found, err := scanner.WaitForDevice(context.Background(), factorySSID); err == nil {
		candidates = append([]string{found.IP}, candidates...)
	}

	locator := shelly.NewLocator(settings.LocateAttempts)
	addr, confirmed, err := locator.Locate(candidates, st.MAC)
	if err != nil {
		return fmt.Errorf("device did not surface on %s: %w", targetSSID, err)
	}
	ui.Detail("Confirmed %s at %s", factorySSID, addr)

	target := shelly.NewClient(addr)
	meta := shelly.MetaParams{Name: hostName, LatLng: hostLatLng, TZ: hostTZ}
	applied, err := target.ApplySettings(meta)
	if err != nil {
		return err
	}

	statusRaw, err := target.StatusRaw()
	if err != nil {
		return err
	}
	rec.ConfirmedTime = store.Now()
	rec.Origin = "provision"
	rec.ID = confirmed.MAC
	rec.IP = confirmed.WifiSta.IP
	if rec.IP == "" {
		rec.IP = addr
	}
	rec.Status = statusRaw
	rec.Settings = applied

	devices.Put(confirmed.MAC, rec)
	if err := devices.Save(); err != nil {
		return err
	}

	if otaVersion == "" {
		return nil
	}
	updater := ota.NewUpdater(normalizeOTAVersion(otaVersion), settings.OTATimeout, settings.OTAMaxChecks, settings.PollInterval)
	updater.ImageURL = otaImageURL
	res := updater.Run(target)
	switch res.Outcome {
	case ota.OutcomeSuccess:
		ui.Successf("Updated %s: %s -> %s", confirmed.MAC, res.OldVersion, res.NewVersion)
		if fresh, err := target.StatusRaw(); err == nil {
			rec.Status = fresh
			devices.Put(confirmed.MAC, rec)
			return devices.Save()
		}
	case ota.OutcomeSkipped:
		ui.Detail("Firmware already on %s", res.OldVersion)
	default:
		ui.Warnf("Firmware update ended in %s: %s", res.Outcome, res.Detail)
	}
	return nil
}
