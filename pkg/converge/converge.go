// Package converge applies network addressing to a batch of chassis modules
// and waits, per module, until the address is active and reachable.
//
// A run has four phases. Every target is applied once; targets whose apply
// reported ERROR are retried with a fixed delay; applied targets are polled
// until the reported address matches the request; converged targets are
// probed until they answer. Each target moves through its own bounded loops,
// so a slow module only costs its own attempts.
package converge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/racctl/pkg/audit"
	"github.com/newtron-network/racctl/pkg/metrics"
	"github.com/newtron-network/racctl/pkg/provision"
	"github.com/newtron-network/racctl/pkg/racadm"
	"github.com/newtron-network/racctl/pkg/util"
)

// Applier applies and reads module addressing. *provision.Provisioner implements it.
type Applier interface {
	SetNetworkInterface(ctx context.Context, module string, a provision.Addressing) (racadm.Response, error)
	GetNetworkConfig(ctx context.Context, module string) (provision.NICConfig, error)
}

// Options bound every loop of a run. Zero counts and intervals take the defaults.
type Options struct {
	ApplyAttempts   int           // total apply attempts per target, including the first
	ApplyRetryDelay time.Duration // wait before each retry
	PollAttempts    int
	PollInterval    time.Duration
	ProbeAttempts   int
	ProbeInterval   time.Duration

	// HaltOnTimeout stops the run at the first target timeout and returns it.
	// Otherwise every target runs to a terminal state and all timeouts are joined.
	HaltOnTimeout bool

	// Parallel runs polling and probing with one goroutine per target.
	Parallel bool

	Sleep util.SleepFunc

	// Audit identity; events are written only when an audit logger is configured.
	Device string
	User   string
	RunID  string
}

// DefaultOptions returns the standard attempt budgets.
func DefaultOptions() Options {
	return Options{
		ApplyAttempts:   6,
		ApplyRetryDelay: 30 * time.Second,
		PollAttempts:    10,
		PollInterval:    30 * time.Second,
		ProbeAttempts:   10,
		ProbeInterval:   15 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ApplyAttempts <= 0 {
		o.ApplyAttempts = d.ApplyAttempts
	}
	if o.ApplyRetryDelay <= 0 {
		o.ApplyRetryDelay = d.ApplyRetryDelay
	}
	if o.PollAttempts <= 0 {
		o.PollAttempts = d.PollAttempts
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.ProbeAttempts <= 0 {
		o.ProbeAttempts = d.ProbeAttempts
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = d.ProbeInterval
	}
	if o.Sleep == nil {
		o.Sleep = util.Sleep
	}
	return o
}

// Orchestrator runs convergence batches.
type Orchestrator struct {
	applier Applier
	prober  Prober
	opts    Options
	log     *logrus.Entry
}

// New creates an Orchestrator. A nil prober probes through the console when
// applier is a *provision.Provisioner.
func New(applier Applier, prober Prober, opts Options, log *logrus.Entry) *Orchestrator {
	if prober == nil {
		if p, ok := applier.(*provision.Provisioner); ok {
			prober = &DeviceProber{Client: p.Client()}
		}
	}
	return &Orchestrator{
		applier: applier,
		prober:  prober,
		opts:    opts.withDefaults(),
		log:     util.Entry(log),
	}
}

// Options returns the effective options.
func (r *Orchestrator) Options() Options {
	return r.opts
}

// Report holds one outcome per target in input order.
type Report struct {
	Outcomes []*Outcome
	Duration time.Duration
}

// Outcome returns the outcome for the module name, or nil.
func (r *Report) Outcome(name string) *Outcome {
	for _, o := range r.Outcomes {
		if o.Target.Name() == name {
			return o
		}
	}
	return nil
}

// Counts tallies outcomes by state.
func (r *Report) Counts() map[State]int {
	counts := make(map[State]int)
	for _, o := range r.Outcomes {
		counts[o.State()]++
	}
	return counts
}

// Converged reports whether every target confirmed connectivity.
func (r *Report) Converged() bool {
	for _, o := range r.Outcomes {
		if !o.Converged() {
			return false
		}
	}
	return true
}

// Validate checks a batch before anything is sent.
func Validate(targets []Target) error {
	v := &util.ValidationBuilder{}
	seen := make(map[string]bool)
	for i, t := range targets {
		if t.ModuleType == "" || t.Slot == "" {
			v.AddErrorf("target %d: module type and slot are required", i)
			continue
		}
		name := t.Name()
		if seen[name] {
			v.AddErrorf("target %s listed more than once", name)
		}
		seen[name] = true
		if err := t.Addressing.Validate(); err != nil {
			v.AddErrorf("target %s: %v", name, err)
		}
	}
	return v.Build()
}

// Run converges targets. The report is returned even when err is non-nil.
// Apply retry exhaustion never fails the run; the target ends in gave-up.
// Transport failures and cancellation abort the run.
func (r *Orchestrator) Run(ctx context.Context, targets []Target) (*Report, error) {
	start := time.Now()
	report := &Report{}
	if err := Validate(targets); err != nil {
		return report, err
	}
	if r.prober == nil {
		return report, util.NewConfigError("converge", errors.New("no reachability prober configured"))
	}
	for _, t := range targets {
		report.Outcomes = append(report.Outcomes, newOutcome(t, r.log))
	}
	defer func() {
		report.Duration = time.Since(start)
		r.recordAudit(report)
	}()

	r.log.Infof("Converging %d targets", len(targets))
	if err := r.applyAll(ctx, report.Outcomes); err != nil {
		return report, err
	}
	if err := r.retryErrored(ctx, report.Outcomes); err != nil {
		return report, err
	}

	var applied []*Outcome
	for _, o := range report.Outcomes {
		if o.State() == StateApplied {
			applied = append(applied, o)
		}
	}
	if r.opts.Parallel {
		return report, r.convergeParallel(ctx, applied)
	}
	return report, r.convergeSequential(ctx, applied)
}

// applyAll is phase 1.
func (r *Orchestrator) applyAll(ctx context.Context, outcomes []*Outcome) error {
	for _, o := range outcomes {
		ok, err := r.apply(ctx, o)
		if err != nil {
			return err
		}
		event := EventApplyOK
		if !ok {
			event = EventApplyFailed
		}
		if err := o.fire(context.WithoutCancel(ctx), event, nil); err != nil {
			return err
		}
	}
	return nil
}

// retryErrored is phase 2.
func (r *Orchestrator) retryErrored(ctx context.Context, outcomes []*Outcome) error {
	b := util.Backoff{Attempts: r.opts.ApplyAttempts - 1, Delay: r.opts.ApplyRetryDelay, DelayFirst: true}
	for _, o := range outcomes {
		if o.State() != StateErrored {
			continue
		}
		name := o.Target.Name()
		_, err := util.Retry(ctx, b, r.opts.Sleep, func(ctx context.Context, attempt int) (bool, error) {
			o.log.Debugf("Retrying network configuration for %s (retry %d/%d)", name, attempt, b.Attempts)
			return r.apply(ctx, o)
		})
		switch {
		case err == nil:
			if err := o.fire(context.WithoutCancel(ctx), EventApplyOK, nil); err != nil {
				return err
			}
		case errors.Is(err, util.ErrRetriesExhausted):
			o.log.Errorf("Networking cannot be set for %s", name)
			cause := fmt.Errorf("networking cannot be set for %s after %d attempts: %w", name, o.ApplyAttempts, err)
			if err := o.fire(context.WithoutCancel(ctx), EventGiveUp, cause); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

// apply sends one setniccfg and classifies the result.
func (r *Orchestrator) apply(ctx context.Context, o *Outcome) (bool, error) {
	o.ApplyAttempts++
	resp, err := r.applier.SetNetworkInterface(ctx, o.Target.Name(), o.Target.Addressing)
	if err != nil {
		return false, err
	}
	ok := !provision.ApplyFailed(resp)
	metrics.ObserveApply(ok)
	return ok, nil
}

func (r *Orchestrator) convergeSequential(ctx context.Context, outcomes []*Outcome) error {
	var timeouts []error
	for _, o := range outcomes {
		err := r.converge(ctx, o)
		var terr *util.TimeoutError
		switch {
		case err == nil:
		case errors.As(err, &terr):
			if r.opts.HaltOnTimeout {
				return err
			}
			timeouts = append(timeouts, err)
		default:
			return err
		}
	}
	return errors.Join(timeouts...)
}

func (r *Orchestrator) convergeParallel(ctx context.Context, outcomes []*Outcome) error {
	g, gctx := errgroup.WithContext(ctx)
	timeouts := make([]error, len(outcomes))
	var mu sync.Mutex
	for i, o := range outcomes {
		i, o := i, o
		g.Go(func() error {
			err := r.converge(gctx, o)
			var terr *util.TimeoutError
			if err != nil && errors.As(err, &terr) && !r.opts.HaltOnTimeout {
				mu.Lock()
				timeouts[i] = err
				mu.Unlock()
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(timeouts...)
}

// converge runs phases 3 and 4 for one applied target.
func (r *Orchestrator) converge(ctx context.Context, o *Outcome) error {
	if err := r.pollAddress(ctx, o); err != nil {
		return err
	}
	return r.confirmConnectivity(ctx, o)
}

// pollAddress is phase 3.
func (r *Orchestrator) pollAddress(ctx context.Context, o *Outcome) error {
	name := o.Target.Name()
	want := o.Target.Addressing
	phase := want.Mode.String()
	b := util.Backoff{Attempts: r.opts.PollAttempts, Delay: r.opts.PollInterval}

	_, err := util.Retry(ctx, b, r.opts.Sleep, func(ctx context.Context, attempt int) (bool, error) {
		o.Polls++
		cfg, err := r.applier.GetNetworkConfig(ctx, name)
		if err != nil {
			return false, err
		}
		o.Address = cfg.IPAddress
		if cfg.Converged(want) {
			return true, nil
		}
		o.log.Debugf("Waiting for %s address on %s (poll %d/%d, reported %q)", phase, name, attempt, b.Attempts, cfg.IPAddress)
		return false, nil
	})
	if errors.Is(err, util.ErrRetriesExhausted) {
		detail := fmt.Sprintf("last reported address %q", o.Address)
		if want.Mode == provision.Static {
			detail += fmt.Sprintf(", want %q", want.Static.IPAddress)
		}
		terr := util.NewTimeoutError(name, phase, b.Attempts, detail)
		o.log.Errorf("%v", terr)
		if ferr := o.fire(context.WithoutCancel(ctx), EventTimeout, terr); ferr != nil {
			return ferr
		}
		return terr
	}
	if err != nil {
		return err
	}
	o.log.Infof("%s has address %s", name, o.Address)
	return o.fire(context.WithoutCancel(ctx), EventAddressOK, nil)
}

// confirmConnectivity is phase 4.
func (r *Orchestrator) confirmConnectivity(ctx context.Context, o *Outcome) error {
	name := o.Target.Name()
	addr := o.Address
	if o.Target.Addressing.Mode == provision.Static {
		addr = o.Target.Addressing.Static.IPAddress
	}
	b := util.Backoff{Attempts: r.opts.ProbeAttempts, Delay: r.opts.ProbeInterval}

	_, err := util.Retry(ctx, b, r.opts.Sleep, func(ctx context.Context, attempt int) (bool, error) {
		o.Probes++
		ok, err := r.prober.Probe(ctx, addr)
		if err == nil && !ok {
			o.log.Debugf("No reply from %s for %s (probe %d/%d)", addr, name, attempt, b.Attempts)
		}
		return ok, err
	})
	if errors.Is(err, util.ErrRetriesExhausted) {
		terr := util.NewTimeoutError(name, "connectivity", b.Attempts, "could not ping "+addr)
		o.log.Errorf("%v", terr)
		if ferr := o.fire(context.WithoutCancel(ctx), EventTimeout, terr); ferr != nil {
			return ferr
		}
		return terr
	}
	if err != nil {
		return err
	}
	o.log.Infof("%s is reachable at %s", name, addr)
	return o.fire(context.WithoutCancel(ctx), EventReachable, nil)
}

func (r *Orchestrator) recordAudit(report *Report) {
	for _, o := range report.Outcomes {
		e := audit.NewEvent(r.opts.User, r.opts.Device, audit.OpSetNetwork).
			WithRun(r.opts.RunID).
			WithTarget(o.Target.Name()).
			WithChange("addressing", o.Target.Addressing.String()).
			WithState(string(o.State()), o.ApplyAttempts).
			WithDuration(o.Duration)
		if o.Converged() {
			e.WithSuccess()
		} else if o.Err != nil {
			e.WithError(o.Err)
		} else {
			e.WithError(fmt.Errorf("run ended in state %s", o.State()))
		}
		if err := audit.Log(e); err != nil {
			r.log.Warnf("audit: %v", err)
		}
	}
}
