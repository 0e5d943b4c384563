//go:build e2e

package e2e_test

import (
	"testing"

	"github.com/newtron-network/racctl/pkg/provision"
	"github.com/newtron-network/racctl/pkg/racadm"
)

func TestLab_GetNICConfig(t *testing.T) {
	SkipIfNoLab(t)
	module := LabModule(t)
	Track(t, "Query", module)

	p := LabProvisioner(t)
	nic, err := p.GetNetworkConfig(LabContext(t), module)
	if err != nil {
		t.Fatalf("GetNetworkConfig(%s): %v", module, err)
	}
	if nic.Raw.Kind() != racadm.KindFields {
		t.Fatalf("getniccfg reply kind = %s, want fields:\n%s", nic.Raw.Kind(), nic.Raw)
	}
	if nic.IPAddress == "" {
		t.Errorf("getniccfg reply has no IP Address field:\n%s", nic.Raw)
	}
	Note(t, "ip=%s dhcp=%v", nic.IPAddress, nic.DHCPEnabled)
}

func TestLab_GetConfigUserSlot(t *testing.T) {
	SkipIfNoLab(t)
	Track(t, "Query", "cfgUserAdmin")

	client := LabClient(t)
	resp, err := client.RunGetConfig(LabContext(t), provision.UserGroup, "", racadm.Flags{racadm.F("i", "1")})
	if err != nil {
		t.Fatalf("RunGetConfig: %v", err)
	}
	fields, ok := resp.Fields()
	if !ok {
		t.Fatalf("reply kind = %s, want fields:\n%s", resp.Kind(), resp)
	}
	if _, ok := fields.Get("cfgUserAdminUserName"); !ok {
		t.Errorf("user slot 1 has no cfgUserAdminUserName:\n%s", resp)
	}
}

func TestLab_UnknownVerbIsNotTransportError(t *testing.T) {
	SkipIfNoLab(t)
	Track(t, "Query", "none")

	resp, err := LabClient(t).Run(LabContext(t), "no-such-verb", nil, nil, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.IsEmpty() {
		t.Error("expected the console to print an error for an unknown verb")
	}
}
