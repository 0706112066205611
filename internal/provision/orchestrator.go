package provision

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wclark/autoprov/internal/config"
	"github.com/wclark/autoprov/internal/ddwrt"
	"github.com/wclark/autoprov/internal/logging"
	"github.com/wclark/autoprov/internal/ota"
	"github.com/wclark/autoprov/internal/shelly"
	"github.com/wclark/autoprov/internal/store"
)

const (
	// statusTries bounds the bridged read of a factory device's status
	statusTries = 10

	// joinTries bounds the bridged push of join parameters
	joinTries = 5
)

// Summary reports how a batch run went.
type Summary struct {
	Attempted int
	Succeeded int
}

// Orchestrator works through the instruction queue, provisioning one
// device per pending instruction.
type Orchestrator struct {
	Settings   *config.Settings
	Queue      *store.Queue
	Devices    *store.DeviceDB
	Nodes      []*ddwrt.Node
	Programmer *ddwrt.Programmer
	Watcher    *Watcher

	// Group restricts the run to instructions in one group; empty runs all
	Group string

	// OTAVersion requests a firmware update after each successful
	// provision: a version string, ota.VersionLatest, or empty to skip.
	OTAVersion string

	// OTAImageURL optionally selects an explicit firmware image
	OTAImageURL string

	// Cue, when set, is called between devices so the operator can swap
	// hardware before the next discovery pass
	Cue func()

	// Fetch, Survey and Sleep exist for tests; the defaults are
	// ddwrt.Wget, ddwrt.Survey and time.Sleep.
	Fetch  FetchFunc
	Survey func(sess ddwrt.Conn, prefix string) ([]string, error)
	Sleep  func(d time.Duration)
}

// New creates an orchestrator over the given stores and control devices.
func New(settings *config.Settings, queue *store.Queue, devices *store.DeviceDB, nodes []*ddwrt.Node) *Orchestrator {
	return &Orchestrator{
		Settings:   settings,
		Queue:      queue,
		Devices:    devices,
		Nodes:      nodes,
		Programmer: ddwrt.NewProgrammer(settings.BridgeAddr, settings.BridgeGateway, settings.BridgeNetmask),
		Watcher:    NewWatcher(settings.PollInterval, settings.DebounceCount, settings.MaxPolls),
		Fetch:      ddwrt.Wget,
		Survey:     ddwrt.Survey,
		Sleep:      time.Sleep,
	}
}

// Run processes every pending instruction in order. Per-instruction
// failures are logged and skipped; a role-assignment failure is fatal to
// the whole run since no instruction can proceed without one.
func (o *Orchestrator) Run() (*Summary, error) {
	summary := &Summary{}

	pending := o.Queue.Pending(o.Group)
	if len(pending) == 0 {
		return summary, nil
	}

	apNode, staNode, err := ddwrt.ChooseRoles(o.Nodes)
	if err != nil {
		return summary, err
	}

	for _, in := range pending {
		if in.SSID == "" {
			// Probe-only entries carry no network to provision
			continue
		}
		if summary.Attempted > 0 && o.Cue != nil {
			o.Cue()
		}
		summary.Attempted++

		if err := o.provisionOne(in, apNode, staNode); err != nil {
			if ddwrt.IsConfigError(err) {
				return summary, err
			}
			logging.Error("Instruction failed",
				zap.String("ssid", in.SSID),
				zap.Error(err))
			continue
		}
		summary.Succeeded++
	}

	logging.Info("Batch complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("attempted", summary.Attempted))
	return summary, nil
}

// provisionOne walks a single instruction through every phase. Any error
// aborts the instruction with CompletedTime unset, leaving it safely
// retryable on the next run.
func (o *Orchestrator) provisionOne(in *store.Instruction, apNode, staNode *ddwrt.Node) error {
	logging.LogPhase("discovery", zap.String("ssid", in.SSID))
	factorySSID, err := o.discoverFactoryDevice(staNode)
	if err != nil {
		return err
	}

	// Claim checkpoint: the factory device is ours from here on
	in.FactorySSID = factorySSID
	in.InProgressTime = store.Now()
	if err := o.Queue.Save(); err != nil {
		return err
	}
	logging.LogPhase("claim", zap.String("factory_ssid", factorySSID))

	targetParams := ddwrt.Params{SSID: in.SSID, Passphrase: in.Password}
	sameDevice := apNode.Router.MACAddr == staNode.Router.MACAddr

	bridge := NewBridgeClient(staNode.Session, o.Settings.FactoryDeviceAddr, statusTries)
	bridge.Fetch = o.Fetch

	converged := false
	for attempt := 1; attempt <= o.Settings.ClaimAttempts; attempt++ {
		// With two control devices the target network can be hosted
		// before the bridge goes up; with one it has to wait
		if !sameDevice {
			if err := o.Programmer.Apply(apNode, ddwrt.RoleAP, targetParams); err != nil {
				return err
			}
		}
		logging.LogPhase("role_switch", zap.String("device", staNode.Router.Name))
		if err := o.Programmer.Apply(staNode, ddwrt.RoleSTA, ddwrt.Params{SSID: factorySSID}); err != nil {
			return err
		}

		if _, err := bridge.Status(); err != nil {
			return fmt.Errorf("factory device unreachable over bridge: %w", err)
		}

		join := shelly.JoinParams{
			SSID:     in.SSID,
			Password: in.Password,
			StaticIP: in.StaticIP,
			Netmask:  in.NetMask,
			Gateway:  in.Gateway,
		}
		logging.LogPhase("join_push", zap.String("factory_ssid", factorySSID))
		if err := bridge.Join(join, joinTries); err != nil {
			return err
		}

		logging.LogPhase("convergence", zap.String("factory_ssid", factorySSID))
		departed, err := o.Watcher.AwaitDeparture(func() ([]string, error) {
			return o.Survey(apNode.Session, o.Settings.Prefix)
		}, factorySSID)
		if err != nil {
			return err
		}
		if departed {
			converged = true
			break
		}
		logging.Warn("Device did not leave its factory network; reprogramming",
			zap.String("factory_ssid", factorySSID),
			zap.Int("attempt", attempt))
	}
	if !converged {
		return fmt.Errorf("device %s failed to take join instructions after %d attempts",
			factorySSID, o.Settings.ClaimAttempts)
	}

	// A lone control device has been bridging; put it back on the target
	// network before looking for the device there
	if sameDevice {
		logging.LogPhase("restore", zap.String("device", apNode.Router.Name))
		if err := o.Programmer.Apply(apNode, ddwrt.RoleAP, targetParams); err != nil {
			return err
		}
	}

	// The device reappears either at its static address or under its
	// factory name, which doubles as its DHCP hostname on the AP
	addr := in.StaticIP
	if addr == "" {
		addr = factorySSID
	}
	logging.LogPhase("verify", zap.String("addr", addr))

	target := NewBridgeClient(apNode.Session, addr, o.Settings.LocateAttempts)
	target.Fetch = o.Fetch

	meta := shelly.MetaParams{Name: in.DeviceName, LatLng: in.LatLng, TZ: in.TZ}
	settings, err := target.ApplySettings(meta)
	if err != nil {
		return fmt.Errorf("failed to find device on %s: %w", in.SSID, err)
	}

	in.CompletedTime = store.Now()
	if err := o.Queue.Save(); err != nil {
		return err
	}

	return o.confirm(in, target, settings)
}

// confirm reads the device back on its new network, persists its record,
// and runs any requested firmware update.
func (o *Orchestrator) confirm(in *store.Instruction, target *BridgeClient, settings json.RawMessage) error {
	statusRaw, err := target.StatusRaw()
	if err != nil {
		return err
	}
	var st shelly.Status
	if err := json.Unmarshal(statusRaw, &st); err != nil {
		return shelly.NewParseError(target.Base, "failed to parse confirmed status", err)
	}

	in.ConfirmedTime = store.Now()
	in.Origin = "provision-list"
	in.ID = st.MAC
	if st.WifiSta.IP != "" {
		in.IP = st.WifiSta.IP
	}
	in.Status = statusRaw
	in.Settings = settings

	rec := *in
	o.Devices.Put(st.MAC, &rec)
	if err := o.Devices.Save(); err != nil {
		return err
	}
	if err := o.Queue.Save(); err != nil {
		return err
	}
	logging.LogPhase("record",
		zap.String("id", st.MAC),
		zap.String("ip", in.IP))

	if o.OTAVersion == "" {
		return nil
	}

	updater := ota.NewUpdater(o.OTAVersion, o.Settings.OTATimeout, o.Settings.OTAMaxChecks, o.Settings.PollInterval)
	updater.ImageURL = o.OTAImageURL
	res := updater.Run(target)
	logging.Info("Firmware update finished",
		zap.String("id", st.MAC),
		zap.String("outcome", string(res.Outcome)),
		zap.String("detail", res.Detail))

	if res.Outcome == ota.OutcomeSuccess {
		if fresh, err := target.StatusRaw(); err == nil {
			rec.Status = fresh
			o.Devices.Put(st.MAC, &rec)
			if err := o.Devices.Save(); err != nil {
				return err
			}
		}
	}
	return nil
}

// discoverFactoryDevice surveys until a factory network surfaces. With
// WaitTime zero a single empty pass is an error; otherwise the loop waits
// for the operator to plug in the next device.
func (o *Orchestrator) discoverFactoryDevice(staNode *ddwrt.Node) (string, error) {
	for {
		ssids, err := o.Survey(staNode.Session, o.Settings.Prefix)
		if err != nil {
			return "", err
		}
		if len(ssids) > 0 {
			return ssids[0], nil
		}
		if o.Settings.WaitTime <= 0 {
			return "", fmt.Errorf("no factory device visible (prefix %q)", o.Settings.Prefix)
		}
		o.Sleep(o.Settings.WaitTime)
	}
}
