package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newtron-network/racctl/pkg/audit"
	"github.com/newtron-network/racctl/pkg/racadm"
	"github.com/newtron-network/racctl/pkg/util"
)

// SetRootCredentials deploys the root password, and the SNMPv2 read-only
// community when one is given, to the module <moduleType>-<slot>. The result
// is always logged.
func (p *Provisioner) SetRootCredentials(ctx context.Context, password, moduleType, slot, community string) (racadm.Response, error) {
	if moduleType == "" || slot == "" {
		return racadm.Response{}, util.NewValidationError("module type and slot are required")
	}
	password, err := p.creds.password(password)
	if err != nil {
		return racadm.Response{}, util.NewConfigError("password transform", err)
	}
	if community != "" {
		if community, err = p.creds.community(community); err != nil {
			return racadm.Response{}, util.NewConfigError("community transform", err)
		}
	}

	module := util.ModuleName(moduleType, slot)
	flags := racadm.Flags{
		racadm.F("u", "root"),
		racadm.F("p", "'"+password+"'"),
		racadm.F("m", module),
	}
	if community != "" {
		flags = flags.With(racadm.F("v", "SNMPv2 "+community+" ro"))
	}

	start := time.Now()
	event := p.newEvent(audit.OpDeployRoot).WithTarget(module).WithSecret("password")
	if community != "" {
		event.WithSecret("snmp-community")
	}

	resp, err := p.client.Run(ctx, "deploy", flags, nil, false)
	if err != nil {
		p.record(event, start, err)
		return resp, fmt.Errorf("deploying root credentials to %s: %w", module, err)
	}
	p.log.Infof("racadm deploy result for %s: %s", module, resp)

	var auditErr error
	if resp.Contains("ERROR") {
		auditErr = errors.New(resp.String())
	}
	p.record(event, start, auditErr)
	return resp, nil
}
