package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/newtron-network/racctl/pkg/racadm"
	"github.com/newtron-network/racctl/pkg/util"
)

// AddressMode selects how a module interface obtains its address.
type AddressMode int

const (
	DHCP AddressMode = iota
	Static
)

func (m AddressMode) String() string {
	if m == Static {
		return "static"
	}
	return "dhcp"
}

// ParseAddressMode accepts "dhcp" or "static" in any case.
func ParseAddressMode(s string) (AddressMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dhcp":
		return DHCP, nil
	case "static":
		return Static, nil
	default:
		return DHCP, fmt.Errorf("unknown address mode %q (want dhcp or static)", s)
	}
}

// StaticAddress is a fixed IPv4 configuration.
type StaticAddress struct {
	IPAddress  string `yaml:"ip_address" json:"ip_address"`
	SubnetMask string `yaml:"subnet_mask" json:"subnet_mask"`
	Gateway    string `yaml:"gateway" json:"gateway"`
}

// Addressing is the desired address configuration of one interface.
// Static is ignored in DHCP mode.
type Addressing struct {
	Mode   AddressMode
	Static StaticAddress
}

// DHCPAddressing requests a DHCP lease.
func DHCPAddressing() Addressing {
	return Addressing{Mode: DHCP}
}

// StaticAddressing requests a fixed address.
func StaticAddressing(ip, mask, gateway string) Addressing {
	return Addressing{Mode: Static, Static: StaticAddress{IPAddress: ip, SubnetMask: mask, Gateway: gateway}}
}

// Validate checks static addresses; DHCP is always valid.
func (a Addressing) Validate() error {
	if a.Mode != Static {
		return nil
	}
	s := a.Static
	v := &util.ValidationBuilder{}
	v.Add(util.IsValidIPv4(s.IPAddress), fmt.Sprintf("invalid IP address %q", s.IPAddress))
	_, ok := util.ParseNetmask(s.SubnetMask)
	v.Add(ok, fmt.Sprintf("invalid subnet mask %q", s.SubnetMask))
	v.Add(util.IsValidIPv4(s.Gateway), fmt.Sprintf("invalid gateway %q", s.Gateway))
	if !v.HasErrors() {
		v.Add(util.SameSubnet(s.IPAddress, s.Gateway, s.SubnetMask),
			fmt.Sprintf("gateway %s is outside %s/%s", s.Gateway, s.IPAddress, s.SubnetMask))
	}
	return v.Build()
}

// Flags renders the setniccfg switches: "-d" for DHCP, "-s <ip> <mask> <gw>" for static.
func (a Addressing) Flags() racadm.Flags {
	if a.Mode == Static {
		s := a.Static
		return racadm.Flags{racadm.F("s", s.IPAddress+" "+s.SubnetMask+" "+s.Gateway)}
	}
	return racadm.Flags{racadm.F("d", "")}
}

func (a Addressing) String() string {
	if a.Mode == Static {
		return fmt.Sprintf("static %s/%s via %s", a.Static.IPAddress, a.Static.SubnetMask, a.Static.Gateway)
	}
	return "dhcp"
}

// ApplyFailed reports whether a setniccfg result signals a failure that is worth retrying.
func ApplyFailed(resp racadm.Response) bool {
	return resp.Contains("ERROR")
}

// SetNetworkInterface applies addressing to module and returns the parsed result
// for the caller to classify with ApplyFailed.
func (p *Provisioner) SetNetworkInterface(ctx context.Context, module string, a Addressing) (racadm.Response, error) {
	if err := a.Validate(); err != nil {
		return racadm.Response{}, err
	}
	resp, err := p.client.SetNICConfig(ctx, module, a.Flags())
	if err != nil {
		return resp, err
	}
	p.log.Infof("racadm setniccfg result for %s: %s", module, resp)
	return resp, nil
}

// NICConfig is the address state a module reports.
type NICConfig struct {
	IPAddress   string
	SubnetMask  string
	Gateway     string
	DHCPEnabled bool
	Raw         racadm.Response
}

// HasDHCPLease reports an assigned address with DHCP enabled.
func (c NICConfig) HasDHCPLease() bool {
	return util.IsAssignedIPv4(c.IPAddress) && c.DHCPEnabled
}

// HasAddress reports whether the module shows exactly ip.
func (c NICConfig) HasAddress(ip string) bool {
	return c.IPAddress == ip
}

// Converged reports whether the reported state satisfies a.
func (c NICConfig) Converged(a Addressing) bool {
	if a.Mode == Static {
		return c.HasAddress(a.Static.IPAddress)
	}
	return c.HasDHCPLease()
}

// NICConfigFrom reads the getniccfg fields of resp. Replies of any other
// shape yield a zero config.
func NICConfigFrom(resp racadm.Response) NICConfig {
	return NICConfig{
		IPAddress:   resp.Value("IP Address"),
		SubnetMask:  resp.Value("Subnet Mask"),
		Gateway:     resp.Value("Gateway"),
		DHCPEnabled: resp.Value("DHCP Enabled") == "1",
		Raw:         resp,
	}
}

// GetNetworkConfig queries the address state of module. The result is logged.
func (p *Provisioner) GetNetworkConfig(ctx context.Context, module string) (NICConfig, error) {
	resp, err := p.client.GetNICConfig(ctx, module)
	if err != nil {
		return NICConfig{}, err
	}
	return NICConfigFrom(resp), nil
}
