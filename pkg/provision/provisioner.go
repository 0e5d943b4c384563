// Package provision applies configuration to a management console: user
// accounts, root credentials of chassis modules and module network addressing.
// Each operation is a short sequence of racadm commands whose textual results
// are classified here.
package provision

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/racctl/pkg/audit"
	"github.com/newtron-network/racctl/pkg/racadm"
	"github.com/newtron-network/racctl/pkg/util"
)

// Transform rewrites a secret before it is sent, typically decrypting it.
type Transform func(string) (string, error)

// PassThrough returns its input unchanged.
func PassThrough(s string) (string, error) {
	return s, nil
}

// Credentials holds the secret transforms. Nil fields pass values through.
type Credentials struct {
	Password  Transform
	Community Transform
}

func (c Credentials) password(s string) (string, error) {
	if c.Password == nil {
		return s, nil
	}
	return c.Password(s)
}

func (c Credentials) community(s string) (string, error) {
	if c.Community == nil {
		return s, nil
	}
	return c.Community(s)
}

// Provisioner performs compound configuration operations through a Client.
type Provisioner struct {
	client *racadm.Client
	log    *logrus.Entry
	creds  Credentials
	device string
	user   string
	runID  string
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the log sink. The default is the client's logger.
func WithLogger(l *logrus.Entry) Option {
	return func(p *Provisioner) { p.log = l }
}

// WithCredentials installs secret transforms.
func WithCredentials(c Credentials) Option {
	return func(p *Provisioner) { p.creds = c }
}

// WithAuditContext sets the identity recorded in audit events.
func WithAuditContext(device, user, runID string) Option {
	return func(p *Provisioner) {
		p.device = device
		p.user = user
		p.runID = runID
	}
}

// New creates a Provisioner using client.
func New(client *racadm.Client, opts ...Option) *Provisioner {
	p := &Provisioner{client: client}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil && client != nil {
		p.log = client.Logger()
	}
	p.log = util.Entry(p.log)
	return p
}

// Client returns the underlying console client.
func (p *Provisioner) Client() *racadm.Client {
	return p.client
}

// Logger returns the provisioner's log sink.
func (p *Provisioner) Logger() *logrus.Entry {
	return p.log
}

func (p *Provisioner) newEvent(operation string) *audit.Event {
	return audit.NewEvent(p.user, p.device, operation).WithRun(p.runID)
}

func (p *Provisioner) record(e *audit.Event, start time.Time, err error) {
	e.WithDuration(time.Since(start)).WithResult(err)
	if aerr := audit.Log(e); aerr != nil {
		p.log.Warnf("audit: %v", aerr)
	}
}
