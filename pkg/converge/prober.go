package converge

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/newtron-network/racctl/pkg/racadm"
)

// Prober checks whether an address answers.
type Prober interface {
	Probe(ctx context.Context, address string) (bool, error)
}

// PingReceived is the console ping line that marks a successful probe.
const PingReceived = "1 packets received"

// DeviceProber pings from the management console ("racadm ping <address>"),
// so reachability is judged from the chassis network.
type DeviceProber struct {
	Client *racadm.Client
}

// Probe sends one console ping.
func (p *DeviceProber) Probe(ctx context.Context, address string) (bool, error) {
	resp, err := p.Client.Ping(ctx, address)
	if err != nil {
		return false, err
	}
	for _, line := range resp.Text() {
		if strings.Contains(line, PingReceived) {
			return true, nil
		}
	}
	return false, nil
}

// ICMPProber pings from the host running racctl, one packet per probe.
type ICMPProber struct {
	Timeout    time.Duration // per probe; 0 means 2s
	Privileged bool          // raw sockets instead of unprivileged UDP ping
}

// Probe sends one ICMP echo and waits for the reply or Timeout.
func (p *ICMPProber) Probe(ctx context.Context, address string) (bool, error) {
	pinger, err := probing.NewPinger(address)
	if err != nil {
		return false, fmt.Errorf("create pinger: %w", err)
	}
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	if pinger.Timeout <= 0 {
		pinger.Timeout = 2 * time.Second
	}
	pinger.SetPrivileged(p.Privileged || runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case err := <-done:
		if err != nil {
			return false, fmt.Errorf("ping %s: %w", address, err)
		}
		return pinger.Statistics().PacketsRecv > 0, nil
	case <-ctx.Done():
		pinger.Stop()
		return false, ctx.Err()
	}
}
