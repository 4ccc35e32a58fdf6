package clocksync

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Estimator defaults.
const (
	DefaultWindow         = 8
	DefaultMinSamples     = 5
	DefaultAgreeCount     = 3
	DefaultTolerance      = 1 * time.Millisecond
	DefaultStaleAfter     = 5 * time.Second
	DefaultRequestTimeout = 1 * time.Second
	DefaultMaxRTT         = 100 * time.Millisecond
	DefaultDriftHistory   = 32
)

// Estimator errors.
var (
	// ErrStaleClock indicates no accepted sample within the staleness window.
	ErrStaleClock = errors.New("clocksync: stale clock")

	// ErrUnknownPing indicates a response for no outstanding request
	// (never sent, already answered, or timed out).
	ErrUnknownPing = errors.New("clocksync: unknown ping id")

	// ErrRTTRejected indicates a round trip outside the accepted bounds.
	ErrRTTRejected = errors.New("clocksync: round trip rejected")
)

// State is the synchronization lifecycle state.
type State uint8

const (
	StateUnsynced State = iota
	StateConverging
	StateSynced
	StateDegraded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnsynced:
		return "UNSYNCED"
	case StateConverging:
		return "CONVERGING"
	case StateSynced:
		return "SYNCED"
	case StateDegraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

// Config holds the estimator thresholds.
type Config struct {
	// Window is the number of recent accepted samples searched for the
	// minimum round trip.
	Window int

	// MinSamples is the accepted sample count required before SYNCED.
	MinSamples int

	// AgreeCount successive low-RTT samples must have offsets within
	// Tolerance of each other before SYNCED. A sample is low-RTT when its
	// round trip is within 2*Tolerance of the window minimum.
	AgreeCount int
	Tolerance  time.Duration

	// StaleAfter is how long SYNCED survives without an accepted sample.
	StaleAfter time.Duration

	// RequestTimeout drops outstanding requests.
	RequestTimeout time.Duration

	// MaxRTT rejects slower round trips. Zero disables the bound.
	MaxRTT time.Duration

	// DriftHistory bounds the minimum-RTT points kept for the drift fit.
	DriftHistory int
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		Window:         DefaultWindow,
		MinSamples:     DefaultMinSamples,
		AgreeCount:     DefaultAgreeCount,
		Tolerance:      DefaultTolerance,
		StaleAfter:     DefaultStaleAfter,
		RequestTimeout: DefaultRequestTimeout,
		MaxRTT:         DefaultMaxRTT,
		DriftHistory:   DefaultDriftHistory,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Window < 1:
		return fmt.Errorf("clocksync: window must be at least 1, got %d", c.Window)
	case c.MinSamples < 1:
		return fmt.Errorf("clocksync: min samples must be at least 1, got %d", c.MinSamples)
	case c.AgreeCount < 1:
		return fmt.Errorf("clocksync: agree count must be at least 1, got %d", c.AgreeCount)
	case c.Tolerance <= 0:
		return fmt.Errorf("clocksync: tolerance must be positive, got %v", c.Tolerance)
	case c.StaleAfter <= 0:
		return fmt.Errorf("clocksync: stale window must be positive, got %v", c.StaleAfter)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("clocksync: request timeout must be positive, got %v", c.RequestTimeout)
	case c.MaxRTT < 0:
		return fmt.Errorf("clocksync: max rtt must not be negative, got %v", c.MaxRTT)
	case c.DriftHistory < 2:
		return fmt.Errorf("clocksync: drift history must be at least 2, got %d", c.DriftHistory)
	}
	return nil
}

// Sample is one completed round trip. Host times are Unix microseconds.
type Sample struct {
	PingID   uint32
	SendUs   int64
	RecvUs   int64
	DeviceUs uint64
	RTTUs    int64
	OffsetUs int64
}

// midUs is the host time the device clock was most likely read.
func (s Sample) midUs() int64 {
	return s.SendUs + s.RTTUs/2
}

// Snapshot is the published synchronization state.
type Snapshot struct {
	State       State
	OffsetUs    int64
	RTTMinUs    int64
	DriftUsPerS float64
	SampleCount int

	// LastSampleAt is the host time of the last accepted sample.
	LastSampleAt time.Time

	Timeouts    uint64
	Rejected    uint64
	Outstanding int
}

type driftPoint struct {
	pingID   uint32
	hostUs   int64
	offsetUs int64
}

// Estimator tracks one device clock. Safe for concurrent use; no method blocks.
type Estimator struct {
	mu  sync.Mutex
	cfg Config

	nextPing    uint32
	outstanding map[uint32]time.Time

	window []Sample
	recent []int64
	drift  []driftPoint

	state        State
	offsetUs     int64
	rttMinUs     int64
	refUs        int64
	driftUsPerS  float64
	sampleCount  int
	lastAccepted time.Time

	timeouts uint64
	rejected uint64

	onStateChange func(oldState, newState State)
}

// New creates an estimator. Zero-valued Config fields take their defaults,
// except MaxRTT where zero disables the bound.
func New(cfg Config) (*Estimator, error) {
	def := DefaultConfig()
	if cfg.Window == 0 {
		cfg.Window = def.Window
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.AgreeCount == 0 {
		cfg.AgreeCount = def.AgreeCount
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.DriftHistory == 0 {
		cfg.DriftHistory = def.DriftHistory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Estimator{
		cfg:         cfg,
		outstanding: make(map[uint32]time.Time),
	}, nil
}

// Config returns the active thresholds.
func (e *Estimator) Config() Config {
	return e.cfg
}

// OnStateChange registers a callback invoked on every state transition.
// It runs with no lock held, on the goroutine that caused the transition.
func (e *Estimator) OnStateChange(fn func(oldState, newState State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStateChange = fn
}

// Begin registers an outstanding request sent at now and returns its ping id.
func (e *Estimator) Begin(now time.Time) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextPing++
	id := e.nextPing
	e.outstanding[id] = now
	return id
}

// Complete records the response to pingID, carrying deviceUs, received at now.
func (e *Estimator) Complete(pingID uint32, deviceUs uint64, now time.Time) (Sample, error) {
	e.mu.Lock()

	sent, ok := e.outstanding[pingID]
	if !ok {
		e.rejected++
		e.mu.Unlock()
		return Sample{}, fmt.Errorf("%w: %d", ErrUnknownPing, pingID)
	}
	delete(e.outstanding, pingID)

	rtt := now.Sub(sent)
	if rtt < 0 || (e.cfg.MaxRTT > 0 && rtt > e.cfg.MaxRTT) {
		e.rejected++
		e.mu.Unlock()
		return Sample{}, fmt.Errorf("%w: %v", ErrRTTRejected, rtt)
	}

	s := Sample{
		PingID:   pingID,
		SendUs:   sent.UnixMicro(),
		RecvUs:   now.UnixMicro(),
		DeviceUs: deviceUs,
	}
	s.RTTUs = s.RecvUs - s.SendUs
	s.OffsetUs = int64(deviceUs) - s.midUs()

	old := e.state
	e.accept(s, now)
	fire := e.transitionCallback(old)
	e.mu.Unlock()

	fire()
	return s, nil
}

// accept folds s into the estimate. Caller holds mu.
func (e *Estimator) accept(s Sample, now time.Time) {
	e.window = append(e.window, s)
	if len(e.window) > e.cfg.Window {
		e.window = e.window[len(e.window)-e.cfg.Window:]
	}
	e.sampleCount++
	e.lastAccepted = now

	best := e.window[0]
	for _, w := range e.window[1:] {
		if w.RTTUs <= best.RTTUs {
			best = w
		}
	}
	e.offsetUs = best.OffsetUs
	e.rttMinUs = best.RTTUs
	e.refUs = best.midUs()

	if n := len(e.drift); n == 0 || e.drift[n-1].pingID != best.PingID {
		e.drift = append(e.drift, driftPoint{pingID: best.PingID, hostUs: best.midUs(), offsetUs: best.OffsetUs})
		if len(e.drift) > e.cfg.DriftHistory {
			e.drift = e.drift[len(e.drift)-e.cfg.DriftHistory:]
		}
		e.driftUsPerS = fitDrift(e.drift)
	}

	// Only round trips close to the fastest one vote on agreement; their
	// midpoint error is bounded by RTT/2.
	if s.RTTUs <= e.rttMinUs+2*e.cfg.Tolerance.Microseconds() {
		e.recent = append(e.recent, s.OffsetUs)
		if len(e.recent) > e.cfg.AgreeCount {
			e.recent = e.recent[len(e.recent)-e.cfg.AgreeCount:]
		}
	}

	switch e.state {
	case StateUnsynced, StateDegraded:
		e.state = StateConverging
	}
	if e.state == StateConverging && e.agrees() {
		e.state = StateSynced
	}
}

// agrees reports whether the promotion criteria hold. Caller holds mu.
func (e *Estimator) agrees() bool {
	if e.sampleCount < e.cfg.MinSamples || len(e.recent) < e.cfg.AgreeCount {
		return false
	}
	lo, hi := e.recent[0], e.recent[0]
	for _, v := range e.recent[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return time.Duration(hi-lo)*time.Microsecond <= e.cfg.Tolerance
}

// fitDrift returns the least-squares slope of offset over host time in
// microseconds per second.
func fitDrift(points []driftPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	var mx, my float64
	for _, p := range points {
		mx += float64(p.hostUs)
		my += float64(p.offsetUs)
	}
	n := float64(len(points))
	mx /= n
	my /= n

	var sxy, sxx float64
	for _, p := range points {
		dx := (float64(p.hostUs) - mx) / 1e6
		dy := float64(p.offsetUs) - my
		sxy += dx * dy
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0
	}
	return sxy / sxx
}

// Tick expires outstanding requests older than the request timeout and
// demotes SYNCED to DEGRADED once no sample arrived within the staleness
// window. Returns ErrStaleClock while DEGRADED.
func (e *Estimator) Tick(now time.Time) error {
	e.mu.Lock()

	for id, sent := range e.outstanding {
		if now.Sub(sent) >= e.cfg.RequestTimeout {
			delete(e.outstanding, id)
			e.timeouts++
		}
	}

	old := e.state
	if e.state == StateSynced && now.Sub(e.lastAccepted) > e.cfg.StaleAfter {
		e.state = StateDegraded
		e.recent = e.recent[:0]
	}
	state := e.state
	fire := e.transitionCallback(old)
	e.mu.Unlock()

	fire()
	if state == StateDegraded {
		return ErrStaleClock
	}
	return nil
}

// transitionCallback captures the callback for a transition from old, to
// be invoked after mu is released. Caller holds mu.
func (e *Estimator) transitionCallback(old State) func() {
	cb, cur := e.onStateChange, e.state
	if cb == nil || old == cur {
		return func() {}
	}
	return func() { cb(old, cur) }
}

// State returns the current state.
func (e *Estimator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the current estimate and counters.
func (e *Estimator) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:        e.state,
		OffsetUs:     e.offsetUs,
		RTTMinUs:     e.rttMinUs,
		DriftUsPerS:  e.driftUsPerS,
		SampleCount:  e.sampleCount,
		LastSampleAt: e.lastAccepted,
		Timeouts:     e.timeouts,
		Rejected:     e.rejected,
		Outstanding:  len(e.outstanding),
	}
}

// offsetAt returns the offset extrapolated to host time hostUs. Caller holds mu.
func (e *Estimator) offsetAt(hostUs int64) float64 {
	return float64(e.offsetUs) + e.driftUsPerS*float64(hostUs-e.refUs)/1e6
}

// ToHost maps a device timestamp onto host Unix microseconds.
// ok is false while UNSYNCED.
func (e *Estimator) ToHost(deviceUs uint64) (hostUs int64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateUnsynced {
		return 0, false
	}
	approx := int64(deviceUs) - e.offsetUs
	return int64(deviceUs) - int64(e.offsetAt(approx)), true
}

// ToDevice maps host Unix microseconds onto the device clock.
// ok is false while UNSYNCED.
func (e *Estimator) ToDevice(hostUs int64) (deviceUs uint64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateUnsynced {
		return 0, false
	}
	return uint64(hostUs + int64(e.offsetAt(hostUs))), true
}

// Reset returns the estimator to UNSYNCED, e.g. after the device rebooted.
func (e *Estimator) Reset() {
	e.mu.Lock()
	old := e.state
	e.outstanding = make(map[uint32]time.Time)
	e.window = nil
	e.recent = nil
	e.drift = nil
	e.state = StateUnsynced
	e.offsetUs, e.rttMinUs, e.refUs, e.driftUsPerS = 0, 0, 0, 0
	e.sampleCount = 0
	e.lastAccepted = time.Time{}
	fire := e.transitionCallback(old)
	e.mu.Unlock()

	fire()
}
