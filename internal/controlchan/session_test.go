package controlchan

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"
)

const testMarker = "TESTMARK"

// fakeConsole emulates the device side of a command session: it answers
// marker-framed commands and stderr fetches the way a real console would.
type fakeConsole struct {
	conn net.Conn
	// stdout maps a command to its output (already newline terminated)
	stdout map[string]string
	// stderr maps a command to its captured stderr
	stderr map[string]string

	pendingStderr string
}

func startFakeConsole(conn net.Conn, stdout, stderr map[string]string) *fakeConsole {
	fc := &fakeConsole{conn: conn, stdout: stdout, stderr: stderr}
	go fc.serve()
	return fc
}

func (fc *fakeConsole) serve() {
	reader := bufio.NewReader(fc.conn)
	tag := "@" + testMarker + "@"
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\n")

		switch {
		case strings.Contains(line, "echo ${z}SYNC${z}"):
			fc.reply(tag + "SYNC" + tag + "\r\n#EOT#")

		case strings.HasPrefix(line, "echo ${z}BOT${z};cat "):
			out := fc.pendingStderr
			fc.pendingStderr = ""
			fc.reply(tag + "BOT" + tag + "\r\n" + out + "#EOT#")

		case strings.HasPrefix(line, "echo ${z}BOT${z};("):
			cmd := strings.TrimPrefix(line, "echo ${z}BOT${z};(")
			cmd = strings.TrimSuffix(cmd, ")  2>/tmp/cmd.err.out")
			if errText, ok := fc.stderr[cmd]; ok {
				fc.pendingStderr = errText + "\n"
			}
			fc.reply(tag + "BOT" + tag + "\r\n" + fc.stdout[cmd] + "#EOT#")
		}
	}
}

func (fc *fakeConsole) reply(data string) {
	_, _ = fc.conn.Write([]byte(data))
}

func testOptions() *Options {
	return &Options{
		Marker:      testMarker,
		ReadTimeout: 2 * time.Second,
		SyncTimeout: 2 * time.Second,
	}
}

func newTestSession(t *testing.T, stdout, stderr map[string]string) *Session {
	t.Helper()
	client, server := net.Pipe()
	startFakeConsole(server, stdout, stderr)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return Attach(client, "10.0.0.1", testOptions())
}

func TestExecuteFramesOutput(t *testing.T) {
	sess := newTestSession(t, map[string]string{
		"ls /tmp": "file1\r\nfile2\r\n",
	}, nil)

	lines, err := sess.Execute("ls /tmp")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	want := []string{"file1", "file2"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %v, want %d", len(lines), lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestExecuteEmptyOutput(t *testing.T) {
	sess := newTestSession(t, map[string]string{}, nil)

	lines, err := sess.Execute("true")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("got %v, want no lines", lines)
	}
}

func TestExecuteStderrIsCommandError(t *testing.T) {
	sess := newTestSession(t,
		map[string]string{"nvram set bogus": ""},
		map[string]string{"nvram set bogus": "nvram: unknown key"},
	)

	_, err := sess.Execute("nvram set bogus")
	if err == nil {
		t.Fatal("expected error for non-empty stderr")
	}
	if !IsCommandError(err) {
		t.Errorf("expected command error, got %T: %v", err, err)
	}
	se := err.(*SessionError)
	if se.Stderr != "nvram: unknown key" {
		t.Errorf("Stderr = %q, want the captured diagnostics", se.Stderr)
	}
}

func TestExecuteRawKeepsStderr(t *testing.T) {
	sess := newTestSession(t,
		map[string]string{"site_survey 2>&1": "SSID[ shelly1-0001 ] BSSID[ aa ]\r\n"},
		map[string]string{"site_survey 2>&1": "advisory noise"},
	)

	lines, stderr, err := sess.ExecuteRaw("site_survey 2>&1")
	if err != nil {
		t.Fatalf("ExecuteRaw failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("got %v, want one line", lines)
	}
	if stderr != "advisory noise" {
		t.Errorf("stderr = %q, want advisory noise", stderr)
	}
}

func TestSingle(t *testing.T) {
	sess := newTestSession(t, map[string]string{
		"nvram get et0macaddr": "AA:BB:CC:DD:EE:FF\r\n",
		"cat /proc/cpuinfo":    "line1\r\nline2\r\n",
	}, nil)

	mac, err := sess.Single("nvram get et0macaddr")
	if err != nil {
		t.Fatalf("Single failed: %v", err)
	}
	if mac != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("got %q", mac)
	}

	if _, err := sess.Single("cat /proc/cpuinfo"); err == nil {
		t.Error("expected error for multi-line response")
	}
}

func TestResync(t *testing.T) {
	sess := newTestSession(t, nil, nil)

	if err := sess.Resync(time.Second); err != nil {
		t.Fatalf("Resync failed: %v", err)
	}
}

func TestReadTimeoutIsTimeoutError(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	// Server never answers; swallow the written command so the client's
	// write does not block forever
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := server.Read(buf); err != nil {
				return
			}
		}
	}()

	opts := testOptions()
	opts.ReadTimeout = 50 * time.Millisecond
	sess := Attach(client, "10.0.0.1", opts)

	_, err := sess.Execute("ls")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeoutError(err) {
		t.Errorf("expected timeout error, got %T: %v", err, err)
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindConnection, "Connection Error"},
		{KindCommand, "Command Error"},
		{KindTimeout, "Timeout"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
