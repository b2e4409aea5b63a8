package ddns

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// Agent keeps a DuckDNS record pointed at the caller's public address.
type Agent struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	cancel context.CancelFunc
	tick   ticker

	// cycleMu serializes cycles so two never race on CurrentAddress.
	cycleMu sync.Mutex

	detector  Detector
	publisher Publisher
	subs      subscribers

	client    HTTPClient
	endpoints []Endpoint
	updateURL string

	now       func() time.Time
	newTicker func(time.Duration) ticker
}

// Option customizes an Agent built by New.
type Option func(*Agent)

// WithDetector replaces the default web detector.
func WithDetector(d Detector) Option {
	return func(a *Agent) { a.detector = d }
}

// WithPublisher replaces the default DuckDNS publisher.
func WithPublisher(p Publisher) Option {
	return func(a *Agent) { a.publisher = p }
}

// WithHTTPClient sets the client used by the default detector and publisher.
func WithHTTPClient(c HTTPClient) Option {
	return func(a *Agent) {
		if c != nil {
			a.client = c
		}
	}
}

// WithEndpoints overrides the echo endpoints of the default detector.
func WithEndpoints(eps ...Endpoint) Option {
	return func(a *Agent) { a.endpoints = append([]Endpoint(nil), eps...) }
}

// WithUpdateURL overrides the provider update endpoint.
func WithUpdateURL(u string) Option {
	return func(a *Agent) { a.updateURL = u }
}

// New constructs an idle Agent with sane defaults.
func New(cfg Config, opts ...Option) *Agent {
	a := &Agent{
		cfg:       cfg.normalize(),
		state:     newState(),
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
		newTicker: newTimeTicker,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.detector == nil {
		a.detector = NewWebDetector(a.client, a.endpoints...)
	}
	if a.publisher == nil {
		a.publisher = NewDuckDNSPublisher(a.client, a.updateURL)
	}
	return a
}

// Start runs one cycle right away and then one per interval until Stop.
// It is a no-op when already running or when domain or token is empty.
func (a *Agent) Start() {
	a.mu.Lock()
	if a.state.Running || !a.cfg.Ready() {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.tick = a.newTicker(a.cfg.Interval)
	a.state.Running = true
	domain, interval := a.cfg.Domain, a.cfg.Interval
	t := a.tick
	snap := a.state
	a.mu.Unlock()

	log.Printf("ddns: NightGard watching %s.duckdns.org every %s", domain, interval)
	a.emit(Event{Type: EventStateChanged, State: snap})

	go a.run(ctx, t)
}

// Stop cancels the schedule. A cycle already in flight may still finish and
// write its status afterwards. Calling Stop with nothing scheduled is safe.
func (a *Agent) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.tick = nil
	wasRunning := a.state.Running
	a.state.Running = false
	a.state.Status = StatusStopped
	snap := a.state
	a.mu.Unlock()

	if wasRunning {
		log.Printf("ddns: agent stopped")
	}
	a.emit(Event{Type: EventStateChanged, State: snap})
}

// PerformUpdate runs one detect-then-publish cycle and returns its status.
// It may be called whether or not the agent is running.
func (a *Agent) PerformUpdate(ctx context.Context) Status {
	return a.cycle(ctx, true)
}

// cycle serializes runs so two cycles never interleave. A scheduled cycle
// whose schedule was cancelled while it waited is dropped.
func (a *Agent) cycle(ctx context.Context, manual bool) Status {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()
	if !manual && ctx.Err() != nil {
		return a.Snapshot().Status
	}
	return a.performUpdate(ctx, manual)
}

func (a *Agent) run(ctx context.Context, t ticker) {
	defer t.Stop()

	a.cycle(ctx, false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			if ctx.Err() != nil {
				return
			}
			a.cycle(ctx, false)
		}
	}
}

func (a *Agent) performUpdate(ctx context.Context, manual bool) Status {
	cfg := a.Config()
	cyc := Cycle{Domain: cfg.Domain, Manual: manual, StartedAt: a.now()}

	addr, err := a.detector.Detect(ctx)
	if err != nil {
		log.Printf("ddns: %v", err)
		return a.finish(&cyc, StatusFailedDetection, err)
	}
	cyc.Address = addr

	a.mu.Lock()
	prev, had := a.state.CurrentAddress, a.state.HasAddress
	if had && prev == addr {
		a.mu.Unlock()
		return a.finish(&cyc, StatusNoChange, nil)
	}
	a.state.CurrentAddress = addr
	a.state.HasAddress = true
	a.mu.Unlock()
	cyc.PreviousAddress = prev

	ok, err := a.publisher.Publish(ctx, cfg.Domain, cfg.Token, addr)
	cyc.Published = ok
	if !ok {
		if err == nil {
			err = ErrPublishFailed
		}
		log.Printf("ddns: update %s -> %s failed: %v", cfg.Domain, addr, err)
		return a.finish(&cyc, StatusFailedUpdate, err)
	}
	log.Printf("ddns: %s now points at %s", cfg.Domain, addr)
	return a.finish(&cyc, StatusSuccess, nil)
}

// finish writes the terminal status of a cycle and notifies subscribers.
func (a *Agent) finish(cyc *Cycle, status Status, err error) Status {
	now := a.now()
	cyc.Status = status
	cyc.Duration = now.Sub(cyc.StartedAt)
	if err != nil {
		ce := classifyError(err)
		cyc.Err = err
		cyc.ErrorCode = ce.Code
		cyc.Error = ce.Message
	}

	a.mu.Lock()
	a.state.Status = status
	if status == StatusSuccess {
		a.state.LastSuccessAt = now
		a.state.HasLastSuccess = true
	}
	snap := a.state
	a.mu.Unlock()

	a.emit(Event{Type: EventCycleCompleted, State: snap, Cycle: cyc})
	return status
}

// Snapshot returns a copy of the observable state.
func (a *Agent) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Running reports whether a schedule is active.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Running
}

// Config returns the configuration the next cycle will use.
func (a *Agent) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// SetConfig replaces the configuration. Running agents pick it up on the next
// cycle; an interval change re-arms the timer. Subscribers receive an
// EventConfigChanged so the host can persist it.
func (a *Agent) SetConfig(cfg Config) {
	a.updateConfig(func(c *Config) { *c = cfg })
}

// SetDomain changes only the domain.
func (a *Agent) SetDomain(domain string) {
	a.updateConfig(func(c *Config) { c.Domain = domain })
}

// SetToken changes only the token.
func (a *Agent) SetToken(token string) {
	a.updateConfig(func(c *Config) { c.Token = token })
}

// SetInterval changes only the interval. Non-positive values fall back to DefaultInterval.
func (a *Agent) SetInterval(d time.Duration) {
	a.updateConfig(func(c *Config) { c.Interval = d })
}

func (a *Agent) updateConfig(mutate func(*Config)) {
	a.mu.Lock()
	next := a.cfg
	mutate(&next)
	next = next.normalize()
	if next == a.cfg {
		a.mu.Unlock()
		return
	}
	if next.Interval != a.cfg.Interval && a.tick != nil {
		a.tick.Reset(next.Interval)
	}
	a.cfg = next
	snap := a.state
	a.mu.Unlock()

	a.emit(Event{Type: EventConfigChanged, State: snap, Config: &next})
}

// Subscribe registers fn for every event. The returned func unsubscribes.
// fn runs on the goroutine that caused the change and must not block for long.
func (a *Agent) Subscribe(fn func(Event)) func() {
	return a.subs.add(fn)
}

func (a *Agent) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = a.now()
	}
	a.subs.emit(ev)
}

type ticker interface {
	Chan() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type timeTicker struct{ *time.Ticker }

func newTimeTicker(d time.Duration) ticker { return timeTicker{time.NewTicker(d)} }

func (t timeTicker) Chan() <-chan time.Time { return t.C }
