package shelly

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClientWithURL(server.URL)
	client.SetRetry(0, time.Millisecond)
	return client, server
}

func TestStatus(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != StatusPath {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{
			"wifi_sta": {"connected": true, "ssid": "TestNet", "ip": "192.168.1.57"},
			"mac": "C45BBE4A1234",
			"update": {"status": "idle", "has_update": false, "old_version": "v1.11.0"},
			"uptime": 120
		}`))
	}))
	defer server.Close()

	st, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.MAC != "C45BBE4A1234" {
		t.Errorf("MAC = %q", st.MAC)
	}
	if !st.WifiSta.Connected || st.WifiSta.IP != "192.168.1.57" {
		t.Errorf("wifi_sta = %+v", st.WifiSta)
	}
	if st.Update.OldVersion != "v1.11.0" {
		t.Errorf("update = %+v", st.Update)
	}
}

func TestSettings(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"device": {"type": "SHSW-1", "mac": "C45BBE4A1234", "hostname": "shelly1-4A1234"},
			"name": "porch-light",
			"fw": "20230913-112003/v1.14.0"
		}`))
	}))
	defer server.Close()

	s, err := client.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if s.Device.Type != "SHSW-1" || s.Device.Hostname != "shelly1-4A1234" {
		t.Errorf("device = %+v", s.Device)
	}
	if s.Name != "porch-light" {
		t.Errorf("name = %q", s.Name)
	}
}

func TestHTTPErrorDoesNotRetry(t *testing.T) {
	var hits int32
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()
	client.SetRetry(3, time.Millisecond)

	_, err := client.Status()
	if err == nil {
		t.Fatal("expected error")
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Type != ErrTypeHTTP || devErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestNetworkErrorRetries(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			// Hijack and drop the connection to force a transport error.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Fatalf("hijack failed: %v", err)
			}
			conn.Close()
			return
		}
		w.Write([]byte(`{"mac": "AABBCC"}`))
	}))
	defer server.Close()

	client := NewClientWithURL(server.URL)
	client.SetRetry(5, time.Millisecond)
	client.MaxRetryDelay = time.Millisecond

	st, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed after retries: %v", err)
	}
	if st.MAC != "AABBCC" {
		t.Errorf("MAC = %q", st.MAC)
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Errorf("server hit %d times, want 3", n)
	}
}

func TestParseError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	_, err := client.Status()
	if err == nil {
		t.Fatal("expected error")
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Type != ErrTypeParse {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTriggerOTAHitsUpdateEndpoint(t *testing.T) {
	var gotQuery string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ota" {
			gotQuery = r.URL.RawQuery
		}
		w.Write([]byte(`{"status": "updating"}`))
	}))
	defer server.Close()

	if err := client.TriggerOTA(); err != nil {
		t.Fatalf("TriggerOTA failed: %v", err)
	}
	if gotQuery != "update=1" {
		t.Errorf("query = %q, want update=1", gotQuery)
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		name   string
		params JoinParams
		want   []string
		not    []string
	}{
		{
			name:   "dhcp",
			params: JoinParams{SSID: "TestNet", Password: "abc12cd34"},
			want:   []string{"enabled=1", "ssid=TestNet", "key=abc12cd34", "ipv4_method=dhcp"},
			not:    []string{"ip=", "netmask=", "gateway="},
		},
		{
			name: "static",
			params: JoinParams{
				SSID: "TestNet", Password: "abc12cd34",
				StaticIP: "192.168.1.57", Netmask: "255.255.255.0", Gateway: "192.168.1.1",
			},
			want: []string{"ipv4_method=static", "ip=192.168.1.57", "netmask=255.255.255.0", "gateway=192.168.1.1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := JoinURL("http://192.168.33.1", tt.params)
			if !strings.HasPrefix(u, "http://192.168.33.1/settings/sta/?") {
				t.Fatalf("unexpected URL shape: %q", u)
			}
			for _, frag := range tt.want {
				if !strings.Contains(u, frag) {
					t.Errorf("URL %q missing %q", u, frag)
				}
			}
			for _, frag := range tt.not {
				if strings.Contains(u, frag) {
					t.Errorf("URL %q should not contain %q", u, frag)
				}
			}
		})
	}
}

func TestSettingsApplyURL(t *testing.T) {
	u := SettingsApplyURL("http://h", MetaParams{
		Name:   "porch-light",
		LatLng: "51.5072:-0.1276",
		TZ:     "False:True:0:True",
	})
	for _, frag := range []string{
		"name=porch-light",
		"lat=51.5072",
		"lng=-0.1276",
		"tz_dst=False",
		"tz_dst_auto=True",
		"tz_utc_offset=0",
		"tzautodetect=True",
	} {
		if !strings.Contains(u, frag) {
			t.Errorf("URL %q missing %q", u, frag)
		}
	}

	if u := SettingsApplyURL("http://h", MetaParams{}); u != "http://h/settings" {
		t.Errorf("empty metadata URL = %q", u)
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates("192.168.1.57", "shelly1-4A1234")
	want := []string{"192.168.1.57", "shelly1-4a1234.local"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Candidates = %v, want %v", got, want)
	}

	if got := Candidates("", "shelly1-4A1234"); len(got) != 1 || got[0] != "shelly1-4a1234.local" {
		t.Errorf("hostname-only Candidates = %v", got)
	}
	if got := Candidates("", ""); got != nil {
		t.Errorf("empty Candidates = %v, want nil", got)
	}
}

func TestLocate(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mac": "C45BBE4A1234"}`))
	}))
	defer good.Close()
	impostor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mac": "000000000000"}`))
	}))
	defer impostor.Close()

	servers := map[string]string{
		"wrong-device.local": impostor.URL,
		"right-device.local": good.URL,
	}

	loc := NewLocator(3)
	loc.Interval = time.Millisecond
	loc.MaxInterval = time.Millisecond
	loc.NewClient = func(addr string) *Client {
		base, ok := servers[addr]
		if !ok {
			base = "http://127.0.0.1:1" // nothing listens here
		}
		c := NewClientWithURL(base)
		c.SetTimeout(time.Second)
		return c
	}

	t.Run("skips impostor and dead candidates", func(t *testing.T) {
		addr, st, err := loc.Locate(
			[]string{"dead.local", "wrong-device.local", "right-device.local"},
			"c45bbe4a1234")
		if err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		if addr != "right-device.local" {
			t.Errorf("addr = %q", addr)
		}
		if st.MAC != "C45BBE4A1234" {
			t.Errorf("MAC = %q", st.MAC)
		}
	})

	t.Run("not found after exhaustion", func(t *testing.T) {
		_, _, err := loc.Locate([]string{"wrong-device.local"}, "c45bbe4a1234")
		if err == nil {
			t.Fatal("expected error")
		}
		if !IsNotFoundError(err) {
			t.Errorf("expected not-found error, got %v", err)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		if _, _, err := loc.Locate(nil, "c45bbe4a1234"); !IsNotFoundError(err) {
			t.Errorf("expected not-found error, got %v", err)
		}
	})
}
