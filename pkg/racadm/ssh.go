package racadm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/newtron-network/racctl/pkg/util"
)

// DefaultPrompt is the CMC shell prompt.
const DefaultPrompt = "$ "

// SSHConfig holds parameters for connecting to the management console.
type SSHConfig struct {
	Host           string
	Port           int // 0 means 22
	User           string
	Password       string
	Prompt         string        // "" means DefaultPrompt
	KnownHosts     string        // known_hosts path; "" disables host key verification
	Timeout        time.Duration // dial and login timeout
	CommandTimeout time.Duration // per command; 0 means no limit beyond ctx
}

// SSHTransport is an interactive racadm shell session. Replies include the
// echoed command line and the trailing prompt, which Parse strips.
type SSHTransport struct {
	addr           string
	client         *ssh.Client
	session        *ssh.Session
	stdin          io.WriteCloser
	prompt         string
	commandTimeout time.Duration

	chunks  chan string
	done    chan struct{}
	readErr error
	pending strings.Builder

	mu     sync.Mutex
	closed bool
	// outOfStep is set when a reply was abandoned before its prompt.
	// The next Send discards output up to that prompt first.
	outOfStep bool
}

// DialSSH logs in, starts a shell and waits for the first prompt.
func DialSSH(ctx context.Context, cfg SSHConfig) (*SSHTransport, error) {
	if cfg.Host == "" {
		return nil, util.NewConfigError("ssh", errors.New("host is required"))
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	hostKeyCallback, err := hostKeyCallback(cfg.KnownHosts, addr)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH login %s@%s: %w", cfg.User, addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	t, err := startShell(client, addr, prompt)
	if err != nil {
		client.Close()
		return nil, err
	}
	t.commandTimeout = cfg.CommandTimeout

	if _, err := t.readUntilPrompt(dialCtx); err != nil {
		t.Close()
		return nil, fmt.Errorf("waiting for prompt on %s: %w", addr, err)
	}
	return t, nil
}

func hostKeyCallback(knownHostsPath, addr string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		util.Logger.Warnf("SSH to %s: host key verification disabled (InsecureIgnoreHostKey)", addr)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, util.NewConfigError("ssh", fmt.Errorf("loading known_hosts %s: %w", knownHostsPath, err))
	}
	return cb, nil
}

func startShell(client *ssh.Client, addr, prompt string) (*SSHTransport, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("SSH session: %w", err)
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 0, 512, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("SSH pty: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("SSH stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("SSH stdout: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("SSH shell: %w", err)
	}

	t := &SSHTransport{
		addr:    addr,
		client:  client,
		session: session,
		stdin:   stdin,
		prompt:  prompt,
		chunks:  make(chan string, 64),
		done:    make(chan struct{}),
	}
	go t.readLoop(stdout)
	return t, nil
}

// readLoop feeds console output to chunks until the session ends.
func (t *SSHTransport) readLoop(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case t.chunks <- strings.ReplaceAll(string(buf[:n]), "\r", ""):
			case <-t.done:
				return
			}
		}
		if err != nil {
			t.readErr = err
			close(t.chunks)
			return
		}
	}
}

// Send writes one command line and returns everything up to and including the next prompt.
func (t *SSHTransport) Send(ctx context.Context, command string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return "", util.ErrNotConnected
	}
	if t.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.commandTimeout)
		defer cancel()
	}
	if t.outOfStep {
		if _, err := t.readUntilPrompt(ctx); err != nil {
			return "", fmt.Errorf("SSH resync with %s: %w", t.addr, err)
		}
		t.outOfStep = false
	}
	if _, err := io.WriteString(t.stdin, command+"\n"); err != nil {
		return "", fmt.Errorf("SSH write to %s: %w", t.addr, err)
	}
	out, err := t.readUntilPrompt(ctx)
	if err != nil && ctx.Err() != nil {
		t.outOfStep = true
	}
	return out, err
}

func (t *SSHTransport) readUntilPrompt(ctx context.Context) (string, error) {
	for {
		text := t.pending.String()
		if text == t.prompt || strings.HasSuffix(text, "\n"+t.prompt) {
			t.pending.Reset()
			return text, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-t.chunks:
			if !ok {
				if t.readErr != nil && !errors.Is(t.readErr, io.EOF) {
					return "", fmt.Errorf("SSH read from %s: %w", t.addr, t.readErr)
				}
				return "", fmt.Errorf("SSH session to %s closed: %w", t.addr, util.ErrNotConnected)
			}
			t.pending.WriteString(chunk)
		}
	}
}

// Close ends the shell session and the connection.
func (t *SSHTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.done != nil {
		close(t.done)
	}
	t.session.Close()
	return t.client.Close()
}
