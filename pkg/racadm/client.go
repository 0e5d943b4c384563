package racadm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/newtron-network/racctl/pkg/metrics"
	"github.com/newtron-network/racctl/pkg/util"
)

// Transport exchanges one command line for the console's raw reply.
// An empty reply means the console returned nothing.
type Transport interface {
	Send(ctx context.Context, command string) (string, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, command string) (string, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

// Client sends racadm commands over a Transport and parses the replies.
// Calls are serialized: the console session cannot interleave commands.
type Client struct {
	transport Transport
	log       *logrus.Entry
	limiter   *rate.Limiter

	mu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the log sink. The default is util.Logger.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.log = l }
}

// WithRateLimit paces commands; consoles drop input when flooded right after a reset.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a client. A nil transport is accepted; every call then
// fails with a configuration error.
func NewClient(t Transport, opts ...Option) *Client {
	c := &Client{transport: t}
	for _, opt := range opts {
		opt(c)
	}
	c.log = util.Entry(c.log)
	return c
}

// Logger returns the client's log sink.
func (c *Client) Logger() *logrus.Entry {
	return c.log
}

// Run renders verb with its flags and positional params, sends it and parses
// the reply. With shouldLog the parsed result is logged at info level.
func (c *Client) Run(ctx context.Context, verb string, flags Flags, params []string, shouldLog bool) (Response, error) {
	resp, err := c.send(ctx, verb, Encode(verb, flags, params))
	if err != nil {
		return Response{}, err
	}
	if shouldLog {
		c.log.Infof("racadm %s result: %s", verb, resp)
	}
	return resp, nil
}

// RunConfigSet sets one configuration object and always logs the result.
func (c *Client) RunConfigSet(ctx context.Context, group, object, value string, flags Flags) (Response, error) {
	resp, err := c.send(ctx, "config", EncodeConfigSet(group, object, value, flags))
	if err != nil {
		return Response{}, err
	}
	c.log.Infof("racadm config for group %s and object %s result: %s", group, object, resp)
	return resp, nil
}

// RunGetConfig queries configuration; empty group or object are left out of the command.
func (c *Client) RunGetConfig(ctx context.Context, group, object string, flags Flags) (Response, error) {
	return c.send(ctx, "getconfig", EncodeGetConfig(group, object, flags))
}

// SetNICConfig changes the network settings of a module ("racadm setniccfg -m <module> ...").
// The result is not logged; callers classify it.
func (c *Client) SetNICConfig(ctx context.Context, module string, flags Flags) (Response, error) {
	return c.Run(ctx, "setniccfg", Flags{F("m", module)}.With(flags...), nil, false)
}

// GetNICConfig reads the network settings of a module ("racadm getniccfg -m <module>").
func (c *Client) GetNICConfig(ctx context.Context, module string) (Response, error) {
	return c.Run(ctx, "getniccfg", Flags{F("m", module)}, nil, true)
}

// Ping asks the console to ping address ("racadm ping <address>").
func (c *Client) Ping(ctx context.Context, address string) (Response, error) {
	return c.Run(ctx, "ping", nil, []string{address}, true)
}

func (c *Client) send(ctx context.Context, verb, line string) (Response, error) {
	if c == nil || c.transport == nil {
		return Response{}, util.NewConfigError("racadm", util.ErrNotConnected)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
	}

	c.mu.Lock()
	start := time.Now()
	raw, err := c.transport.Send(ctx, line)
	elapsed := time.Since(start)
	c.mu.Unlock()

	metrics.ObserveCommand(verb, elapsed, err)
	if err != nil {
		if errors.Is(err, util.ErrNotConnected) {
			return Response{}, util.NewConfigError("racadm", err)
		}
		return Response{}, &util.CommandError{Command: verb, Err: err}
	}
	c.log.WithField("verb", verb).Debugf("racadm %s returned %d bytes in %s", verb, len(raw), elapsed)
	return Parse(raw), nil
}
