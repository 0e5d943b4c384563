package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/newtron-network/racctl/pkg/util"
)

// OIDSysDescr is SNMPv2-MIB::sysDescr.0.
const OIDSysDescr = "1.3.6.1.2.1.1.1.0"

// SNMPCheck locates an SNMP agent and the community to try against it.
type SNMPCheck struct {
	Address   string
	Community string
	Port      uint16        // 0 means 161
	Timeout   time.Duration // 0 means 5s
	Retries   int
}

type snmpGetter interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
}

// dialSNMP is replaced in tests.
var dialSNMP = func(ctx context.Context, check SNMPCheck) (snmpGetter, func() error, error) {
	g := &gosnmp.GoSNMP{
		Target:    check.Address,
		Port:      check.Port,
		Community: check.Community,
		Version:   gosnmp.Version2c,
		Timeout:   check.Timeout,
		Retries:   check.Retries,
		Context:   ctx,
	}
	if err := g.Connect(); err != nil {
		return nil, nil, fmt.Errorf("snmp connect %s: %w", check.Address, err)
	}
	return g, g.Conn.Close, nil
}

// VerifyCommunity reads sysDescr.0 with SNMPv2c to confirm a deployed
// read-only community works, and returns the system description.
func (p *Provisioner) VerifyCommunity(ctx context.Context, check SNMPCheck) (string, error) {
	if check.Address == "" || check.Community == "" {
		return "", util.NewConfigError("snmp", errors.New("address and community are required"))
	}
	community, err := p.creds.community(check.Community)
	if err != nil {
		return "", util.NewConfigError("community transform", err)
	}
	check.Community = community
	if check.Port == 0 {
		check.Port = 161
	}
	if check.Timeout == 0 {
		check.Timeout = 5 * time.Second
	}

	g, closeFn, err := dialSNMP(ctx, check)
	if err != nil {
		return "", err
	}
	defer closeFn()

	descr, err := sysDescr(g)
	if err != nil {
		return "", fmt.Errorf("snmp %s: %w", check.Address, err)
	}
	p.log.WithField("address", check.Address).Infof("SNMP community verified: %s", descr)
	return descr, nil
}

func sysDescr(g snmpGetter) (string, error) {
	pkt, err := g.Get([]string{OIDSysDescr})
	if err != nil {
		return "", err
	}
	if pkt.Error != gosnmp.NoError {
		return "", fmt.Errorf("agent returned %s", pkt.Error)
	}
	if len(pkt.Variables) == 0 {
		return "", errors.New("empty response")
	}
	v := pkt.Variables[0]
	switch v.Type {
	case gosnmp.OctetString:
		b, ok := v.Value.([]byte)
		if !ok {
			return "", fmt.Errorf("unexpected sysDescr value %T", v.Value)
		}
		return string(b), nil
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.Null:
		return "", errors.New("sysDescr not available")
	default:
		return fmt.Sprint(v.Value), nil
	}
}
