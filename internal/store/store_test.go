package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pinNow(t *testing.T, epoch float64) {
	t.Helper()
	orig := Now
	Now = func() float64 { return epoch }
	t.Cleanup(func() { Now = orig })
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      Instruction
		wantErr string
	}{
		{
			name: "minimal valid",
			in:   Instruction{SSID: "TestNet", Password: "abc12cd34"},
		},
		{
			name:    "missing SSID",
			in:      Instruction{Password: "abc12cd34"},
			wantErr: "SSID",
		},
		{
			name:    "missing Password",
			in:      Instruction{SSID: "TestNet"},
			wantErr: "Password",
		},
		{
			name: "probe target needs no network parameters",
			in:   Instruction{ProbeIP: "192.168.1.57"},
		},
		{
			name:    "StaticIP without NetMask",
			in:      Instruction{SSID: "TestNet", Password: "abc12cd34", StaticIP: "192.168.1.57"},
			wantErr: "NetMask",
		},
		{
			name: "full static addressing",
			in: Instruction{
				SSID: "TestNet", Password: "abc12cd34",
				StaticIP: "192.168.1.57", NetMask: "255.255.255.0", Gateway: "192.168.1.1",
			},
		},
		{
			name: "valid LatLng",
			in:   Instruction{SSID: "s", Password: "p", LatLng: "-33.86:+151.21"},
		},
		{
			name:    "malformed LatLng",
			in:      Instruction{SSID: "s", Password: "p", LatLng: "Sydney"},
			wantErr: "LatLng",
		},
		{
			name: "valid TZ",
			in:   Instruction{SSID: "s", Password: "p", TZ: "False:True:-300:True"},
		},
		{
			name:    "malformed TZ",
			in:      Instruction{SSID: "s", Password: "p", TZ: "UTC+10"},
			wantErr: "TZ",
		},
		{
			name: "valid Access",
			in:   Instruction{SSID: "s", Password: "p", Access: "Periodic"},
		},
		{
			name:    "unknown Access value",
			in:      Instruction{SSID: "s", Password: "p", Access: "Sometimes"},
			wantErr: "Access",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate(1)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.wantErr)
			}
			var impErr *ImportError
			if !errors.As(err, &impErr) {
				t.Fatalf("expected *ImportError, got %T", err)
			}
		})
	}
}

func TestValidateCopiesStaticIPToIP(t *testing.T) {
	in := Instruction{
		SSID: "TestNet", Password: "abc12cd34",
		StaticIP: "192.168.1.57", NetMask: "255.255.255.0",
	}
	if err := in.Validate(1); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if in.IP != "192.168.1.57" {
		t.Errorf("IP = %q, want the static address", in.IP)
	}
}

func TestImportCSV(t *testing.T) {
	pinNow(t, 1700000000)

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "batch.csv")
	content := "SSID,Password,DeviceName,Group,Notes\n" +
		"TestNet,abc12cd34,porch-light,site-a,first floor\n" +
		"TestNet, abc12cd34 ,garage-door,site-a,\n"
	if err := os.WriteFile(csvPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	q := &Queue{Path: filepath.Join(dir, "provisionlist.json")}
	n, err := q.ImportFile(csvPath)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d records, want 2", n)
	}

	in := q.Instructions[1]
	if in.Password != "abc12cd34" {
		t.Errorf("Password = %q, want whitespace trimmed", in.Password)
	}
	if in.DeviceName != "garage-door" || in.Group != "site-a" {
		t.Errorf("record = %+v", in)
	}
	if in.InsertTime != 1700000000 {
		t.Errorf("InsertTime = %v", in.InsertTime)
	}

	// The import saves the queue; reload and compare.
	q2, err := LoadQueue(q.Path)
	if err != nil {
		t.Fatalf("LoadQueue failed: %v", err)
	}
	if len(q2.Instructions) != 2 || q2.Instructions[0].DeviceName != "porch-light" {
		t.Errorf("reloaded queue = %+v", q2.Instructions)
	}
}

func TestImportCSVRejectsBadRecord(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "batch.csv")
	content := "SSID,Password\nTestNet,abc12cd34\nTestNet,\n"
	if err := os.WriteFile(csvPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	q := &Queue{Path: filepath.Join(dir, "provisionlist.json")}
	_, err := q.ImportFile(csvPath)
	if err == nil {
		t.Fatal("expected error")
	}
	var impErr *ImportError
	if !errors.As(err, &impErr) || impErr.Record != 2 {
		t.Errorf("error = %v, want record 2 rejection", err)
	}
	if len(q.Instructions) != 0 {
		t.Errorf("queue gained %d instructions from a rejected import", len(q.Instructions))
	}
}

func TestImportJSON(t *testing.T) {
	pinNow(t, 1700000000)

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "batch.json")
	content := `[{"SSID": "TestNet", "Password": "abc12cd34", "StaticIP": "192.168.1.57", "NetMask": "255.255.255.0"}]`
	if err := os.WriteFile(jsonPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	q := &Queue{Path: filepath.Join(dir, "provisionlist.json")}
	n, err := q.ImportFile(jsonPath)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported %d records, want 1", n)
	}
	if q.Instructions[0].IP != "192.168.1.57" {
		t.Errorf("IP = %q, want validation to copy the static address", q.Instructions[0].IP)
	}
}

func TestPending(t *testing.T) {
	q := &Queue{Instructions: []*Instruction{
		{SSID: "a", Group: "site-a"},
		{SSID: "b", Group: "site-a", CompletedTime: 1700000000},
		{SSID: "c", Group: "site-b"},
		{SSID: "d"},
	}}

	all := q.Pending("")
	if len(all) != 3 {
		t.Errorf("Pending(\"\") returned %d, want 3", len(all))
	}

	siteA := q.Pending("site-a")
	if len(siteA) != 1 || siteA[0].SSID != "a" {
		t.Errorf("Pending(site-a) = %+v", siteA)
	}
}

func TestLoadQueueMissingFile(t *testing.T) {
	q, err := LoadQueue(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadQueue failed: %v", err)
	}
	if len(q.Instructions) != 0 {
		t.Errorf("expected empty queue, got %d entries", len(q.Instructions))
	}
}

func TestQueueJSONFieldNames(t *testing.T) {
	in := &Instruction{
		SSID:        "TestNet",
		Password:    "abc12cd34",
		FactorySSID: "shelly1-4A1234",
		InsertTime:  1700000000.5,
		Status:      json.RawMessage(`{"mac": "C45BBE4A1234"}`),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	// External tooling reads these files; the names are a contract.
	for _, key := range []string{`"SSID"`, `"Password"`, `"factory_ssid"`, `"InsertTime"`, `"status"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("marshalled form missing %s: %s", key, data)
		}
	}
}

func TestDeviceDBRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iot-devices.json")

	db, err := LoadDevices(path)
	if err != nil {
		t.Fatalf("LoadDevices failed: %v", err)
	}

	rec := &Instruction{SSID: "TestNet", ID: "C45BBE4A1234", IP: "192.168.1.57"}
	db.Put("C45BBE4A1234", rec)
	if err := db.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	db2, err := LoadDevices(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got := db2.Get("C45BBE4A1234")
	if got == nil || got.IP != "192.168.1.57" {
		t.Errorf("reloaded record = %+v", got)
	}
}

func TestRouterDBUnknownName(t *testing.T) {
	db, err := LoadRouters(filepath.Join(t.TempDir(), "ddwrt_db.json"))
	if err != nil {
		t.Fatalf("LoadRouters failed: %v", err)
	}
	if _, err := db.Get("nope"); err == nil {
		t.Fatal("expected error for unknown control device")
	}
}
