//go:build e2e

package e2e_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/newtron-network/racctl/pkg/provision"
	"github.com/newtron-network/racctl/pkg/racadm"
)

// Lab environment. Tests that change a module's addressing also need
// EnvLabTarget and only run against a chassis set aside for it.
const (
	EnvLabHost     = "RACCTL_LAB_HOST"
	EnvLabPort     = "RACCTL_LAB_PORT"
	EnvLabUser     = "RACCTL_LAB_USER"
	EnvLabPassword = "RACCTL_LAB_PASSWORD"
	EnvLabModule   = "RACCTL_LAB_MODULE" // read-only queries, e.g. "server-1"
	EnvLabTarget   = "RACCTL_LAB_TARGET" // module that may be re-addressed with DHCP
)

// SkipIfNoLab skips the test unless a lab console is configured.
func SkipIfNoLab(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvLabHost) == "" || os.Getenv(EnvLabPassword) == "" {
		t.Skipf("no lab console: set %s and %s", EnvLabHost, EnvLabPassword)
	}
}

// LabModule returns the module used for read-only queries.
func LabModule(t *testing.T) string {
	t.Helper()
	if m := os.Getenv(EnvLabModule); m != "" {
		return m
	}
	return "server-1"
}

// LabTarget returns the module a test may re-address, or skips.
func LabTarget(t *testing.T) string {
	t.Helper()
	m := os.Getenv(EnvLabTarget)
	if m == "" {
		t.Skipf("no disposable target: set %s", EnvLabTarget)
	}
	return m
}

// LabContext returns a context with a 10-minute timeout, enough for one
// target to run through every convergence phase.
func LabContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

// LabClient dials the lab console. The session is closed when the test ends.
func LabClient(t *testing.T) *racadm.Client {
	t.Helper()
	SkipIfNoLab(t)

	port, _ := strconv.Atoi(os.Getenv(EnvLabPort))
	user := os.Getenv(EnvLabUser)
	if user == "" {
		user = "root"
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	transport, err := racadm.DialSSH(ctx, racadm.SSHConfig{
		Host:           os.Getenv(EnvLabHost),
		Port:           port,
		User:           user,
		Password:       os.Getenv(EnvLabPassword),
		CommandTimeout: 2 * time.Minute,
	})
	if err != nil {
		t.Fatalf("dialing lab console: %v", err)
	}
	t.Cleanup(func() { transport.Close() })
	return racadm.NewClient(transport)
}

// LabProvisioner wraps LabClient.
func LabProvisioner(t *testing.T) *provision.Provisioner {
	t.Helper()
	return provision.New(LabClient(t))
}
