// Package plan reads a provisioning plan: root credentials to deploy, console
// user accounts, and network addressing targets for one management console.
package plan

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/racctl/pkg/converge"
	"github.com/newtron-network/racctl/pkg/provision"
	"github.com/newtron-network/racctl/pkg/util"
)

// Plan is the YAML document driving "racctl converge -f".
type Plan struct {
	Device  string       `yaml:"device,omitempty"`
	Root    []RootCreds  `yaml:"root,omitempty"`
	Users   []User       `yaml:"users,omitempty"`
	Targets []TargetSpec `yaml:"targets,omitempty"`
}

// RootCreds deploys the root password (and optionally an SNMPv2 community) to one module.
type RootCreds struct {
	ModuleType string `yaml:"module_type"`
	Slot       string `yaml:"slot"`
	Password   string `yaml:"password"`
	Community  string `yaml:"community,omitempty"`
}

// Module returns the console module name.
func (r RootCreds) Module() string {
	return util.ModuleName(r.ModuleType, r.Slot)
}

// User is one console account slot. Enabled accepts true or "Enabled".
type User struct {
	Index    int    `yaml:"index"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Enabled  any    `yaml:"enabled,omitempty"`
}

// Account converts to the provisioning form.
func (u User) Account() provision.UserAccount {
	return provision.UserAccount{
		Name:     u.Name,
		Password: u.Password,
		Role:     u.Role,
		Enabled:  provision.ParseEnabled(u.Enabled),
		Index:    u.Index,
	}
}

// TargetSpec is one module interface and its desired addressing.
type TargetSpec struct {
	ModuleType string `yaml:"module_type"`
	Slot       string `yaml:"slot"`
	Mode       string `yaml:"mode"`

	provision.StaticAddress `yaml:",inline"`
}

// Target converts to the convergence form.
func (t TargetSpec) Target() (converge.Target, error) {
	mode, err := provision.ParseAddressMode(t.Mode)
	if err != nil {
		return converge.Target{}, err
	}
	a := provision.DHCPAddressing()
	if mode == provision.Static {
		a = provision.StaticAddressing(t.IPAddress, t.SubnetMask, t.Gateway)
	}
	return converge.Target{ModuleType: t.ModuleType, Slot: t.Slot, Addressing: a}, nil
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a plan document.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate reports every problem in the plan at once.
func (p *Plan) Validate() error {
	v := &util.ValidationBuilder{}
	if len(p.Root) == 0 && len(p.Users) == 0 && len(p.Targets) == 0 {
		v.AddErrorf("plan is empty: no root, users or targets")
	}

	for i, r := range p.Root {
		prefix := fmt.Sprintf("root[%d]", i)
		v.Add(r.ModuleType != "" && r.Slot != "", prefix+": module_type and slot are required")
		v.Add(r.Password != "", prefix+": password is required")
	}

	indexes := make(map[int]bool)
	for i, u := range p.Users {
		prefix := fmt.Sprintf("users[%d]", i)
		addNested(v, prefix+": ", u.Account().Validate())
		if indexes[u.Index] {
			v.AddErrorf("%s: index %d used more than once", prefix, u.Index)
		}
		indexes[u.Index] = true
	}

	var targets []converge.Target
	for i, ts := range p.Targets {
		t, err := ts.Target()
		if err != nil {
			v.AddErrorf("targets[%d]: %v", i, err)
			continue
		}
		targets = append(targets, t)
	}
	addNested(v, "targets: ", converge.Validate(targets))
	return v.Build()
}

// addNested copies the messages of a nested validation error into v.
func addNested(v *util.ValidationBuilder, prefix string, err error) {
	if err == nil {
		return
	}
	var verr *util.ValidationError
	if errors.As(err, &verr) {
		for _, msg := range verr.Errors {
			v.AddErrorf("%s%s", prefix, msg)
		}
		return
	}
	v.AddErrorf("%s%v", prefix, err)
}

// Accounts returns the user accounts in index order.
func (p *Plan) Accounts() []provision.UserAccount {
	out := make([]provision.UserAccount, 0, len(p.Users))
	for _, u := range p.Users {
		out = append(out, u.Account())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ConvergeTargets returns the targets grouped by module type, keeping file
// order within a group.
func (p *Plan) ConvergeTargets() ([]converge.Target, error) {
	out := make([]converge.Target, 0, len(p.Targets))
	for i, ts := range p.Targets {
		t, err := ts.Target()
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModuleType < out[j].ModuleType })
	return out, nil
}
