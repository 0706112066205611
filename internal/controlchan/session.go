package controlchan

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wclark/autoprov/internal/logging"
)

const (
	// DefaultPort is the telnet console port on a control device
	DefaultPort = 23

	// DefaultDialTimeout is the TCP connect timeout
	DefaultDialTimeout = 5 * time.Second

	// DefaultLoginTimeout bounds the wait for login and password prompts
	DefaultLoginTimeout = 10 * time.Second

	// DefaultReadTimeout is the per-read deadline while framing a command
	DefaultReadTimeout = 2 * time.Second

	// DefaultSyncTimeout bounds prompt re-establishment, which can follow
	// a wireless mode change that takes several seconds to settle
	DefaultSyncTimeout = 20 * time.Second

	// promptToken is the shell prompt the session installs so reads have a
	// fixed end-of-transmission delimiter
	promptToken = "#EOT#"

	// stderrFile is the on-device scratch file used as the stderr side channel
	stderrFile = "/tmp/cmd.err.out"
)

// Options configures a session.
type Options struct {
	// Port is the telnet port (default 23)
	Port int

	// DialTimeout is the TCP connect timeout
	DialTimeout time.Duration

	// LoginTimeout bounds the login prompt handshake
	LoginTimeout time.Duration

	// ReadTimeout is the per-read deadline for command framing
	ReadTimeout time.Duration

	// SyncTimeout bounds Resync and the initial prompt installation
	SyncTimeout time.Duration

	// Marker overrides the generated marker token. Empty means a random
	// token unique to the session.
	Marker string
}

// DefaultOptions returns the default session options.
func DefaultOptions() *Options {
	return &Options{
		Port:         DefaultPort,
		DialTimeout:  DefaultDialTimeout,
		LoginTimeout: DefaultLoginTimeout,
		ReadTimeout:  DefaultReadTimeout,
		SyncTimeout:  DefaultSyncTimeout,
	}
}

func (o *Options) withDefaults() *Options {
	out := *DefaultOptions()
	if o == nil {
		return &out
	}
	if o.Port != 0 {
		out.Port = o.Port
	}
	if o.DialTimeout != 0 {
		out.DialTimeout = o.DialTimeout
	}
	if o.LoginTimeout != 0 {
		out.LoginTimeout = o.LoginTimeout
	}
	if o.ReadTimeout != 0 {
		out.ReadTimeout = o.ReadTimeout
	}
	if o.SyncTimeout != 0 {
		out.SyncTimeout = o.SyncTimeout
	}
	out.Marker = o.Marker
	return &out
}

// Session is a persistent command session to one control device.
// Sessions are not safe for concurrent use; the provisioning engine drives
// each control device from a single goroutine.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader
	addr   string
	marker string
	opts   *Options
}

// Open connects to a control device's telnet console, completes the login
// handshake, and installs the session prompt. A prompt mismatch or timeout
// yields a connection error.
func Open(addr, username, password string, opts *Options) (*Session, error) {
	opts = opts.withDefaults()

	hostport := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		hostport = net.JoinHostPort(addr, fmt.Sprintf("%d", opts.Port))
	}

	conn, err := net.DialTimeout("tcp", hostport, opts.DialTimeout)
	if err != nil {
		return nil, NewConnectionError(addr, "failed to connect to control device", err)
	}

	s := Attach(conn, addr, opts)

	if _, err := s.readUntil("login: ", opts.LoginTimeout); err != nil {
		conn.Close()
		return nil, NewConnectionError(addr, "no login prompt from control device", err)
	}
	if err := s.write(username + "\n"); err != nil {
		conn.Close()
		return nil, err
	}
	if password != "" {
		if _, err := s.readUntil("Password: ", opts.LoginTimeout); err != nil {
			conn.Close()
			return nil, NewConnectionError(addr, "no password prompt from control device", err)
		}
		if err := s.write(password + "\n"); err != nil {
			conn.Close()
			return nil, err
		}
	}

	// Install a fixed prompt so every read has a known delimiter, then
	// round-trip a sync marker to prove the shell is at that prompt.
	if err := s.sync(`PS1=`+promptToken+`\\n;`, opts.SyncTimeout); err != nil {
		conn.Close()
		return nil, NewConnectionError(addr, "failed to establish session prompt", err)
	}

	logging.Debug("Control session established")
	return s, nil
}

// Attach wraps an existing connection in a session without performing the
// login handshake. The caller is responsible for the connection being at a
// usable state; Resync can be used to install the prompt.
func Attach(conn net.Conn, addr string, opts *Options) *Session {
	opts = opts.withDefaults()
	marker := opts.Marker
	if marker == "" {
		marker = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	}
	return &Session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		addr:   addr,
		marker: marker,
		opts:   opts,
	}
}

// Addr returns the control device address this session is connected to.
func (s *Session) Addr() string {
	return s.addr
}

// Close tears down the session.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Execute runs a command and returns its output lines. Non-empty stderr is
// reported as a command error (the output lines are still returned so
// callers can log them).
func (s *Session) Execute(command string) ([]string, error) {
	lines, stderr, err := s.exchange(command)
	if err != nil {
		return nil, err
	}
	if stderr != "" {
		return lines, NewCommandError(s.addr, fmt.Sprintf("command %q failed", command), stderr)
	}
	return lines, nil
}

// ExecuteRaw runs a command and returns output lines and captured stderr
// without treating stderr as an error. Used for commands whose diagnostics
// are advisory (site surveys, bridged fetches).
func (s *Session) ExecuteRaw(command string) ([]string, string, error) {
	return s.exchange(command)
}

// Single runs a command expected to produce at most one line of output and
// returns that line. More than one line is a command error.
func (s *Session) Single(command string) (string, error) {
	lines, err := s.Execute(command)
	if err != nil {
		return "", err
	}
	if len(lines) > 1 {
		return "", NewCommandError(s.addr, fmt.Sprintf("command %q produced a multi-line response", command), "")
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], nil
}

// Resync re-establishes the session prompt after a disruptive operation.
// A zero timeout uses the session's sync timeout.
func (s *Session) Resync(timeout time.Duration) error {
	if timeout == 0 {
		timeout = s.opts.SyncTimeout
	}
	if err := s.sync("", timeout); err != nil {
		return NewConnectionError(s.addr, "failed to resync session", err)
	}
	return nil
}

// exchange performs one marker-framed command round trip plus the stderr
// side-channel read.
func (s *Session) exchange(command string) ([]string, string, error) {
	s.drain()

	// The begin marker separates the shell echo from real output; stderr
	// goes to the scratch file so it cannot interleave with stdout.
	if err := s.write("echo ${z}BOT${z};(" + command + ")  2>" + stderrFile + "\n"); err != nil {
		return nil, "", err
	}
	if _, err := s.readUntil(s.tag("BOT")+"\r\n", s.opts.ReadTimeout); err != nil {
		return nil, "", err
	}
	out, err := s.readUntil(promptToken, s.opts.ReadTimeout)
	if err != nil {
		return nil, "", err
	}
	lines := splitOutput(out)

	if err := s.write("echo ${z}BOT${z};cat " + stderrFile + "\n"); err != nil {
		return nil, "", err
	}
	if _, err := s.readUntil(s.tag("BOT")+"\r\n", s.opts.ReadTimeout); err != nil {
		return nil, "", err
	}
	errOut, err := s.readUntil(promptToken, s.opts.ReadTimeout)
	if err != nil {
		return nil, "", err
	}

	stderr := strings.TrimSpace(strings.ReplaceAll(errOut, "\r", ""))
	logging.LogCommand(s.addr, command, stderr)
	return lines, stderr, nil
}

// sync installs the marker shell variable and round-trips a SYNC token.
// prefix is prepended to the sync command (used to set PS1 on open).
func (s *Session) sync(prefix string, timeout time.Duration) error {
	s.drain()
	cmd := prefix + "z='@" + s.marker + "@';echo ${z}SYNC${z}\n"
	if err := s.write(cmd); err != nil {
		return err
	}
	if _, err := s.readUntil(s.tag("SYNC")+"\r\n", timeout); err != nil {
		return err
	}
	if _, err := s.readUntil(promptToken, timeout); err != nil {
		return err
	}
	return nil
}

// tag returns the framed form of a marker word as it appears on the wire.
func (s *Session) tag(word string) string {
	m := "@" + s.marker + "@"
	return m + word + m
}

// drain discards any pending unread input, such as the newline trailing the
// previous prompt or boot-time console noise.
func (s *Session) drain() {
	_ = s.conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	buf := make([]byte, 512)
	for {
		if _, err := s.reader.Read(buf); err != nil {
			break
		}
	}
	_ = s.conn.SetReadDeadline(time.Time{})
}

// readUntil reads until delim is seen, returning everything before it.
func (s *Session) readUntil(delim string, timeout time.Duration) (string, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", NewConnectionError(s.addr, "failed to set read deadline", err)
	}
	defer func() { _ = s.conn.SetReadDeadline(time.Time{}) }()

	buf := make([]byte, 0, 256)
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return "", NewTimeoutError(s.addr, fmt.Sprintf("timed out waiting for %q", delim), err)
			}
			return "", NewConnectionError(s.addr, "control session read failed", err)
		}
		buf = append(buf, b)
		if bytes.HasSuffix(buf, []byte(delim)) {
			return string(buf[:len(buf)-len(delim)]), nil
		}
	}
}

func (s *Session) write(data string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
		return NewConnectionError(s.addr, "failed to set write deadline", err)
	}
	defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()

	if _, err := s.conn.Write([]byte(data)); err != nil {
		return NewConnectionError(s.addr, "control session write failed", err)
	}
	return nil
}

// splitOutput normalizes framed command output into lines. Carriage
// returns are stripped and the newline preceding the prompt is dropped.
func splitOutput(out string) []string {
	out = strings.ReplaceAll(out, "\r", "")
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}
