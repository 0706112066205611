package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner("shelly")

	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantName string
		wantID   string
		wantIP   string
		wantPort int
	}{
		{
			name: "valid device with IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "shelly1-35FA58.local.",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.57")},
				Text:     []string{"fw_id=20230913-112003", "arch=esp8266"},
			},
			wantNil:  false,
			wantName: "shelly1-35FA58",
			wantID:   "35FA58",
			wantIP:   "192.168.1.57",
			wantPort: 80,
		},
		{
			name: "valid device without trailing dot",
			entry: &zeroconf.ServiceEntry{
				HostName: "shellyswitch-C45A12.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantNil:  false,
			wantName: "shellyswitch-C45A12",
			wantID:   "C45A12",
			wantIP:   "10.0.0.5",
			wantPort: 80,
		},
		{
			name: "no port specified defaults to 80",
			entry: &zeroconf.ServiceEntry{
				HostName: "shelly1-AABB01.local",
				Port:     0,
				AddrIPv4: []net.IP{net.ParseIP("172.16.0.1")},
			},
			wantNil:  false,
			wantName: "shelly1-AABB01",
			wantID:   "AABB01",
			wantIP:   "172.16.0.1",
			wantPort: 80,
		},
		{
			name: "lowercase identifier is uppercased",
			entry: &zeroconf.ServiceEntry{
				HostName: "shelly1-35fa58.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.57")},
			},
			wantNil:  false,
			wantName: "shelly1-35fa58",
			wantID:   "35FA58",
			wantIP:   "192.168.1.57",
			wantPort: 80,
		},
		{
			name: "wrong hostname shape",
			entry: &zeroconf.ServiceEntry{
				HostName: "printer.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "other vendor filtered by prefix",
			entry: &zeroconf.ServiceEntry{
				HostName: "sonoff-A1B2C3.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.2")},
			},
			wantNil: true,
		},
		{
			name: "empty hostname",
			entry: &zeroconf.ServiceEntry{
				HostName: "",
				Port:     80,
			},
			wantNil: true,
		},
		{
			name: "IPv6 only falls back to IPv6 address",
			entry: &zeroconf.ServiceEntry{
				HostName: "shelly1-0DDF42.local",
				Port:     80,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantNil:  false,
			wantName: "shelly1-0DDF42",
			wantID:   "0DDF42",
			wantIP:   "fe80::1",
			wantPort: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := scanner.parseServiceEntry(tt.entry)
			if tt.wantNil {
				if device != nil {
					t.Errorf("expected nil, got %+v", device)
				}
				return
			}
			if device == nil {
				t.Fatal("expected a device, got nil")
			}
			if device.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", device.Name, tt.wantName)
			}
			if device.DeviceID != tt.wantID {
				t.Errorf("DeviceID = %q, want %q", device.DeviceID, tt.wantID)
			}
			if device.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", device.IP, tt.wantIP)
			}
			if device.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", device.Port, tt.wantPort)
			}
		})
	}
}

func TestScanner_parseServiceEntryMetadata(t *testing.T) {
	scanner := NewScanner("")
	device := scanner.parseServiceEntry(&zeroconf.ServiceEntry{
		HostName: "shelly1-35FA58.local",
		Port:     80,
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.57")},
		Text:     []string{"fw_id=20230913-112003", "flag"},
	})
	if device == nil {
		t.Fatal("expected a device")
	}
	if device.GetMetadata("fw_id") != "20230913-112003" {
		t.Errorf("fw_id = %q", device.GetMetadata("fw_id"))
	}
	if _, ok := device.Metadata["flag"]; !ok {
		t.Error("bare TXT entry should be kept as a key")
	}
}
