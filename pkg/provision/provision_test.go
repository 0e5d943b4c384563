package provision

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/newtron-network/racctl/internal/testutil"
	"github.com/newtron-network/racctl/pkg/audit"
	"github.com/newtron-network/racctl/pkg/racadm"
	"github.com/newtron-network/racctl/pkg/util"
)

func newTestProvisioner(console *testutil.Console, opts ...Option) (*Provisioner, *test.Hook) {
	log, hook := testutil.Logger()
	client := racadm.NewClient(console, racadm.WithLogger(log))
	return New(client, opts...), hook
}

func withAuditLog(t *testing.T) *audit.FileLogger {
	t.Helper()
	logger, err := audit.NewFileLogger(filepath.Join(t.TempDir(), "audit.log"), audit.RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	audit.SetDefaultLogger(logger)
	t.Cleanup(func() {
		audit.SetDefaultLogger(nil)
		logger.Close()
	})
	return logger
}

func userCommand(object, value string, index string) string {
	return "racadm config -g cfgUserAdmin -o " + object + " " + value + " -i " + index
}

func TestPrivilege(t *testing.T) {
	tests := []struct {
		role string
		want string
	}{
		{"Administrator", "0x00000fff"},
		{"PowerUser", "0x00000ed9"},
		{"GuestUser", "0x00000001"},
		{"None", "0x00000000"},
	}
	for _, tt := range tests {
		got, err := Privilege(tt.role)
		if err != nil || got != tt.want {
			t.Errorf("Privilege(%q) = %q, %v; want %q", tt.role, got, err, tt.want)
		}
	}

	for _, bad := range []string{"", "administrator", "Operator"} {
		if _, err := Privilege(bad); !errors.Is(err, util.ErrUnknownRole) {
			t.Errorf("Privilege(%q) err = %v, want ErrUnknownRole", bad, err)
		}
	}
	if got := strings.Join(Roles(), ","); got != "Administrator,GuestUser,None,PowerUser" {
		t.Errorf("Roles() = %s", got)
	}
}

func TestParseEnabled(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"Enabled", true},
		{"true", true},
		{"TRUE", true},
		{"Disabled", false},
		{"enabled", false},
		{1, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := ParseEnabled(tt.in); got != tt.want {
			t.Errorf("ParseEnabled(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if EnabledBit(true) != "1" || EnabledBit(false) != "0" {
		t.Error("EnabledBit should render 1/0")
	}
}

func TestSetUser_AllStepsConfirmed(t *testing.T) {
	const ok = "Object value modified successfully"
	console := testutil.NewConsole().
		On(userCommand("cfgUserAdminUserName", "operator", "3"), ok).
		On(userCommand("cfgUserAdminPassword", "s3cret", "3"), ok).
		On(userCommand("cfgUserAdminPrivilege", "0x00000ed9", "3"), ok).
		On(userCommand("cfgUserAdminEnable", "1", "3"), ok)
	p, hook := newTestProvisioner(console)
	auditLog := withAuditLog(t)

	res, err := p.SetUser(context.Background(), UserAccount{
		Name: "operator", Password: "s3cret", Role: "PowerUser", Enabled: true, Index: 3,
	})
	if err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if !res.OK() || res.Index != 3 {
		t.Errorf("result = %+v", res)
	}

	want := []string{
		userCommand("cfgUserAdminUserName", "operator", "3"),
		userCommand("cfgUserAdminPassword", "s3cret", "3"),
		userCommand("cfgUserAdminPrivilege", "0x00000ed9", "3"),
		userCommand("cfgUserAdminEnable", "1", "3"),
	}
	got := console.Sent()
	if len(got) != len(want) {
		t.Fatalf("sent %d commands, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}
	if msgs := testutil.Messages(hook, logrus.ErrorLevel, ""); len(msgs) != 0 {
		t.Errorf("unexpected errors logged: %v", msgs)
	}

	events, err := auditLog.Query(audit.Filter{Operation: audit.OpSetUser})
	if err != nil || len(events) != 1 {
		t.Fatalf("audit events = %d, %v", len(events), err)
	}
	if !events[0].Success {
		t.Errorf("audit event should be successful: %+v", events[0])
	}
	for _, c := range events[0].Changes {
		if strings.Contains(c.Value, "s3cret") {
			t.Errorf("password leaked into audit log: %+v", c)
		}
	}
}

func TestSetUser_PartialFailureContinues(t *testing.T) {
	const ok = "Object value modified successfully"
	console := testutil.NewConsole().
		On(userCommand("cfgUserAdminUserName", "guest", "2"), "ERROR: Invalid object value").
		On(userCommand("cfgUserAdminPassword", "pw", "2"), ok).
		On(userCommand("cfgUserAdminPrivilege", "0x00000001", "2"), "").
		On(userCommand("cfgUserAdminEnable", "0", "2"), ok)
	p, hook := newTestProvisioner(console)

	res, err := p.SetUser(context.Background(), UserAccount{
		Name: "guest", Password: "pw", Role: "GuestUser", Index: 2,
	})
	if err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if got := strings.Join(res.Failed, ","); got != "username,privilege" {
		t.Errorf("Failed = %v", res.Failed)
	}
	if len(console.Sent()) != 4 {
		t.Errorf("all four steps should be attempted, sent %v", console.Sent())
	}
	for _, step := range []string{"username", "privilege"} {
		msg := "Could not set " + step + " for user at index 2"
		if got := testutil.Messages(hook, logrus.ErrorLevel, msg); len(got) != 1 {
			t.Errorf("missing error log %q", msg)
		}
	}
}

func TestSetUser_FailsFast(t *testing.T) {
	tests := []struct {
		name string
		acct UserAccount
		want []string
	}{
		{"unknown role", UserAccount{Name: "x", Role: "Operator", Index: 1}, []string{"unknown role \"Operator\""}},
		{"zero index", UserAccount{Name: "x", Role: "None", Index: 0}, []string{"user index must be >= 1, got 0"}},
		{"role and index", UserAccount{Name: "x", Role: "Operator", Index: 0}, []string{"unknown role \"Operator\"", "user index must be >= 1, got 0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console := testutil.NewConsole()
			p, _ := newTestProvisioner(console)
			_, err := p.SetUser(context.Background(), tt.acct)
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Fatalf("err = %v, want validation error", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("err = %v, missing %q", err, want)
				}
			}
			if len(console.Sent()) != 0 {
				t.Errorf("no command should be sent, got %v", console.Sent())
			}
		})
	}
}

func TestSetUser_TransportErrorAborts(t *testing.T) {
	boom := errors.New("session dropped")
	console := testutil.NewConsole().
		On(userCommand("cfgUserAdminUserName", "root2", "4"), "modified successfully").
		Fail(userCommand("cfgUserAdminPassword", "pw", "4"), boom)
	p, _ := newTestProvisioner(console)

	_, err := p.SetUser(context.Background(), UserAccount{Name: "root2", Password: "pw", Role: "Administrator", Index: 4})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(console.Sent()) != 2 {
		t.Errorf("should stop after the failing step, sent %v", console.Sent())
	}
}

func TestSetUser_PasswordTransform(t *testing.T) {
	console := testutil.NewConsole()
	p, _ := newTestProvisioner(console, WithCredentials(Credentials{
		Password: func(s string) (string, error) { return strings.ToUpper(s), nil },
	}))
	if _, err := p.SetUser(context.Background(), UserAccount{Name: "a", Password: "enc", Role: "None", Index: 1}); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	if console.Count(userCommand("cfgUserAdminPassword", "ENC", "1")) != 1 {
		t.Errorf("transformed password not sent: %v", console.Sent())
	}

	failing := testutil.NewConsole()
	p, _ = newTestProvisioner(failing, WithCredentials(Credentials{
		Password: func(string) (string, error) { return "", errors.New("bad key") },
	}))
	_, err := p.SetUser(context.Background(), UserAccount{Name: "a", Password: "enc", Role: "None", Index: 1})
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("err = %v, want configuration error", err)
	}
	if len(failing.Sent()) != 0 {
		t.Error("no command should be sent when the transform fails")
	}
}

func TestSetRootCredentials(t *testing.T) {
	tests := []struct {
		name      string
		community string
		want      string
	}{
		{"no community", "", "racadm deploy -u root -p 'calvin' -m server-1"},
		{"with community", "public", "racadm deploy -u root -p 'calvin' -m server-1 -v SNMPv2 public ro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console := testutil.NewConsole().On(tt.want, "The deploy command completed successfully.")
			p, hook := newTestProvisioner(console)

			resp, err := p.SetRootCredentials(context.Background(), "calvin", "server", "1", tt.community)
			if err != nil {
				t.Fatalf("SetRootCredentials: %v", err)
			}
			if got := console.Sent(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("sent = %v, want %q", got, tt.want)
			}
			if !resp.Contains("successfully") {
				t.Errorf("resp = %v", resp)
			}
			if msgs := testutil.Messages(hook, logrus.InfoLevel, "racadm deploy result for server-1:"); len(msgs) != 1 {
				t.Errorf("deploy result not logged: %v", hook.AllEntries())
			}
			if msgs := testutil.Messages(hook, logrus.InfoLevel, "racadm deploy result:"); len(msgs) != 0 {
				t.Errorf("generic result line should be suppressed: %v", msgs)
			}
		})
	}
}

func TestSetRootCredentials_AuditRedactsSecrets(t *testing.T) {
	auditLog := withAuditLog(t)
	console := testutil.NewConsole()
	p, _ := newTestProvisioner(console,
		WithAuditContext("cmc.lab", "root", "run-1"),
		WithCredentials(Credentials{Community: func(s string) (string, error) { return "dec-" + s, nil }}))

	if _, err := p.SetRootCredentials(context.Background(), "calvin", "switch", "2", "enc"); err != nil {
		t.Fatalf("SetRootCredentials: %v", err)
	}
	if console.Count("racadm deploy -u root -p 'calvin' -m switch-2 -v SNMPv2 dec-enc ro") != 1 {
		t.Errorf("sent = %v", console.Sent())
	}

	events, err := auditLog.Query(audit.Filter{RunID: "run-1"})
	if err != nil || len(events) != 1 {
		t.Fatalf("audit events = %d, %v", len(events), err)
	}
	e := events[0]
	if e.Device != "cmc.lab" || e.Target != "switch-2" || e.Operation != audit.OpDeployRoot {
		t.Errorf("event = %+v", e)
	}
	for _, c := range e.Changes {
		if c.Value != audit.Redacted {
			t.Errorf("change %s recorded value %q", c.Field, c.Value)
		}
	}
}

func TestSetRootCredentials_RequiresModule(t *testing.T) {
	p, _ := newTestProvisioner(testutil.NewConsole())
	if _, err := p.SetRootCredentials(context.Background(), "pw", "", "1", ""); !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestSetNetworkInterface(t *testing.T) {
	tests := []struct {
		name string
		a    Addressing
		want string
	}{
		{"dhcp", DHCPAddressing(), "racadm setniccfg -m server-1 -d"},
		{"static", StaticAddressing("10.0.0.20", "255.255.255.0", "10.0.0.1"),
			"racadm setniccfg -m server-1 -s 10.0.0.20 255.255.255.0 10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console := testutil.NewConsole().On(tt.want, "Static IP configuration enabled and modified successfully")
			p, hook := newTestProvisioner(console)

			resp, err := p.SetNetworkInterface(context.Background(), "server-1", tt.a)
			if err != nil {
				t.Fatalf("SetNetworkInterface: %v", err)
			}
			if got := console.Sent(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("sent = %v, want %q", got, tt.want)
			}
			if ApplyFailed(resp) {
				t.Errorf("ApplyFailed(%v) = true", resp)
			}
			if msgs := testutil.Messages(hook, logrus.InfoLevel, "setniccfg result for server-1"); len(msgs) != 1 {
				t.Errorf("result not logged: %v", hook.AllEntries())
			}
		})
	}
}

func TestSetNetworkInterface_InvalidStatic(t *testing.T) {
	console := testutil.NewConsole()
	p, _ := newTestProvisioner(console)
	_, err := p.SetNetworkInterface(context.Background(), "server-1", StaticAddressing("10.0.0.300", "255.0.255.0", ""))
	var verr *util.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("Errors = %v, want 3 entries", verr.Errors)
	}
	if len(console.Sent()) != 0 {
		t.Error("nothing should be sent for invalid addressing")
	}
}

func TestAddressingValidate_GatewaySubnet(t *testing.T) {
	tests := []struct {
		name    string
		a       Addressing
		wantErr string
	}{
		{"dhcp", DHCPAddressing(), ""},
		{"gateway inside /24", StaticAddressing("10.0.0.20", "255.255.255.0", "10.0.0.1"), ""},
		{"gateway inside /16", StaticAddressing("10.0.7.20", "255.255.0.0", "10.0.0.1"), ""},
		{"gateway outside", StaticAddressing("10.0.1.20", "255.255.255.0", "10.0.0.1"), "gateway 10.0.0.1 is outside 10.0.1.20/255.255.255.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.a.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyFailed(t *testing.T) {
	failed := racadm.Parse(testutil.Reply("racadm setniccfg -m server-2 -d", "ERROR: Unable to perform the requested action."))
	if !ApplyFailed(failed) {
		t.Error("ERROR reply should count as failed")
	}
	if ApplyFailed(racadm.Parse("")) {
		t.Error("empty reply should not count as failed")
	}
}

func TestGetNetworkConfig(t *testing.T) {
	console := testutil.NewConsole().On("racadm getniccfg -m server-1",
		"IP Address = 10.0.0.5\nSubnet Mask = 255.255.255.0\nGateway = 10.0.0.1\nDHCP Enabled = 1")
	p, hook := newTestProvisioner(console)

	cfg, err := p.GetNetworkConfig(context.Background(), "server-1")
	if err != nil {
		t.Fatalf("GetNetworkConfig: %v", err)
	}
	if cfg.IPAddress != "10.0.0.5" || cfg.SubnetMask != "255.255.255.0" || cfg.Gateway != "10.0.0.1" || !cfg.DHCPEnabled {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.Converged(DHCPAddressing()) {
		t.Error("should count as a DHCP lease")
	}
	if !cfg.Converged(StaticAddressing("10.0.0.5", "255.255.255.0", "10.0.0.1")) {
		t.Error("should match the static address")
	}
	if msgs := testutil.Messages(hook, logrus.InfoLevel, "racadm getniccfg result"); len(msgs) != 1 {
		t.Errorf("getniccfg result not logged")
	}
}

func TestNICConfig_Converged(t *testing.T) {
	tests := []struct {
		name string
		cfg  NICConfig
		a    Addressing
		want bool
	}{
		{"lease", NICConfig{IPAddress: "10.0.0.5", DHCPEnabled: true}, DHCPAddressing(), true},
		{"dhcp disabled", NICConfig{IPAddress: "10.0.0.5"}, DHCPAddressing(), false},
		{"zero address", NICConfig{IPAddress: "0.0.0.0", DHCPEnabled: true}, DHCPAddressing(), false},
		{"no address", NICConfig{DHCPEnabled: true}, DHCPAddressing(), false},
		{"static match", NICConfig{IPAddress: "10.0.0.20"}, StaticAddressing("10.0.0.20", "255.255.255.0", "10.0.0.1"), true},
		{"static mismatch", NICConfig{IPAddress: "10.0.0.21"}, StaticAddressing("10.0.0.20", "255.255.255.0", "10.0.0.1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Converged(tt.a); got != tt.want {
				t.Errorf("Converged = %v, want %v", got, tt.want)
			}
		})
	}

	if got := NICConfigFrom(racadm.Parse(testutil.Reply("racadm getniccfg -m x", "not a table"))); got.IPAddress != "" {
		t.Errorf("scalar reply should yield zero config, got %+v", got)
	}
}

func TestParseAddressMode(t *testing.T) {
	for in, want := range map[string]AddressMode{"dhcp": DHCP, "DHCP": DHCP, " static ": Static} {
		got, err := ParseAddressMode(in)
		if err != nil || got != want {
			t.Errorf("ParseAddressMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseAddressMode("bootp"); err == nil {
		t.Error("ParseAddressMode should reject unknown modes")
	}
	if DHCP.String() != "dhcp" || Static.String() != "static" {
		t.Error("AddressMode.String mismatch")
	}
}
