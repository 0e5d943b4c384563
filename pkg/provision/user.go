package provision

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newtron-network/racctl/pkg/audit"
	"github.com/newtron-network/racctl/pkg/racadm"
	"github.com/newtron-network/racctl/pkg/util"
)

// UserGroup is the configuration group holding console user accounts.
const UserGroup = "cfgUserAdmin"

// UserAccount describes one console user slot.
type UserAccount struct {
	Name     string
	Password string
	Role     string
	Enabled  bool
	Index    int
}

// Validate checks the account before any command is sent.
func (a UserAccount) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(a.Index >= 1, fmt.Sprintf("user index must be >= 1, got %d", a.Index))
	if _, err := Privilege(a.Role); err != nil {
		v.AddErrorf("%v", err)
	}
	return v.Build()
}

// UserResult reports which steps the console did not confirm.
type UserResult struct {
	Index  int
	Failed []string
}

// OK reports whether every step was confirmed.
func (r UserResult) OK() bool {
	return len(r.Failed) == 0
}

type userStep struct {
	name   string
	object string
	value  string
	secret bool
}

// SetUser writes name, password, privilege and enabled flag to the account
// slot at Index, in that order. A step whose result lacks "successfully" is
// logged and recorded in the result; the remaining steps still run and nothing
// is rolled back. An unknown role or invalid index is returned before any
// command is sent; transport errors abort.
func (p *Provisioner) SetUser(ctx context.Context, acct UserAccount) (UserResult, error) {
	result := UserResult{Index: acct.Index}
	if err := acct.Validate(); err != nil {
		return result, err
	}
	mask, _ := Privilege(acct.Role)
	password, err := p.creds.password(acct.Password)
	if err != nil {
		return result, util.NewConfigError("password transform", err)
	}

	start := time.Now()
	event := p.newEvent(audit.OpSetUser).WithTarget("index-" + strconv.Itoa(acct.Index))
	steps := []userStep{
		{name: "username", object: "cfgUserAdminUserName", value: acct.Name},
		{name: "password", object: "cfgUserAdminPassword", value: password, secret: true},
		{name: "privilege", object: "cfgUserAdminPrivilege", value: mask},
		{name: "enabled", object: "cfgUserAdminEnable", value: EnabledBit(acct.Enabled)},
	}
	flags := racadm.Flags{racadm.F("i", strconv.Itoa(acct.Index))}

	for _, step := range steps {
		resp, err := p.client.RunConfigSet(ctx, UserGroup, step.object, step.value, flags)
		if err != nil {
			p.record(event, start, err)
			return result, fmt.Errorf("setting %s for user at index %d: %w", step.name, acct.Index, err)
		}
		if !resp.Contains("successfully") {
			p.log.Errorf("Could not set %s for user at index %d", step.name, acct.Index)
			result.Failed = append(result.Failed, step.name)
			continue
		}
		if step.secret {
			event.WithSecret(step.object)
		} else {
			event.WithChange(step.object, step.value)
		}
	}

	var auditErr error
	if !result.OK() {
		auditErr = fmt.Errorf("steps not confirmed: %s", strings.Join(result.Failed, ", "))
	}
	p.record(event, start, auditErr)
	return result, nil
}
