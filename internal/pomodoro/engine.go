package pomodoro

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// StorageKey is the fixed identifier the snapshot is stored under.
const StorageKey = "studybudd_pomodoro_v1"

const (
	// DefaultTickInterval refreshes the display four times per second.
	DefaultTickInterval = 250 * time.Millisecond
	defaultSinkTimeout  = 10 * time.Second
)

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now strips the monotonic reading so deadlines follow the wall clock across
// system suspend.
func (systemClock) Now() time.Time { return time.Now().Round(0) }

// KV is a durable, synchronous string-keyed store.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// FocusCompleted is emitted once per finished focus interval.
type FocusCompleted struct {
	Minutes int
	EndedAt time.Time
}

// CompletionSink receives focus completions. The engine never waits on it.
type CompletionSink interface {
	LogFocusCompletion(ctx context.Context, event FocusCompleted) error
}

// SinkFunc adapts a function to CompletionSink.
type SinkFunc func(ctx context.Context, event FocusCompleted) error

// LogFocusCompletion calls f.
func (f SinkFunc) LogFocusCompletion(ctx context.Context, event FocusCompleted) error {
	return f(ctx, event)
}

// Options contains the collaborators and runtime settings of an Engine.
type Options struct {
	Clock  Clock
	Sink   CompletionSink
	Logger *slog.Logger
	// Defaults seed the state when no usable snapshot is stored.
	Defaults     Config
	TickInterval time.Duration
	SinkTimeout  time.Duration
	Key          string
}

// Engine owns the countdown state machine.
type Engine struct {
	mu      sync.Mutex
	kv      KV
	options Options
	log     *slog.Logger
	state   State

	lastSaved      string
	persistFailing bool

	subscribers map[int]chan Snapshot
	nextSubID   int

	stopTick context.CancelFunc
	tickDone chan struct{}

	pending sync.WaitGroup
}

// New builds an engine and rehydrates it from kv. A nil kv keeps the state in
// memory only.
func New(kv KV, options Options) *Engine {
	if kv == nil {
		kv = NewMemoryKV()
	}
	if options.Clock == nil {
		options.Clock = systemClock{}
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.SinkTimeout <= 0 {
		options.SinkTimeout = defaultSinkTimeout
	}
	if options.Key == "" {
		options.Key = StorageKey
	}
	if options.Defaults == (Config{}) {
		options.Defaults = DefaultConfig()
	} else if err := options.Defaults.Validate(); err != nil {
		options.Logger.Warn("ignoring default timer settings", "err", err)
		options.Defaults = DefaultConfig()
	}

	engine := &Engine{
		kv:          kv,
		options:     options,
		log:         options.Logger,
		subscribers: map[int]chan Snapshot{},
	}

	engine.mu.Lock()
	if st, raw, ok := engine.readStored(); ok {
		engine.state = st
		engine.lastSaved = raw
	} else {
		engine.state = defaultState(options.Defaults)
	}
	engine.refreshLocked(options.Clock.Now())
	engine.persistLocked()
	engine.mu.Unlock()
	return engine
}

// Snapshot recomputes the remaining time and returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.catchUpLocked(e.options.Clock.Now()) {
		e.commitLocked()
	}
	return newSnapshot(e.state)
}

// Configure replaces the timer settings. Out-of-range input is rejected and
// the previous settings are kept. An untouched, paused countdown is resized
// to the new duration; anything else keeps its remaining time.
func (e *Engine) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catchUpLocked(e.options.Clock.Now())

	old := e.state.Config
	if !e.state.Running && e.state.SecondsRemaining == old.Seconds(e.state.Mode) {
		e.state.SecondsRemaining = cfg.Seconds(e.state.Mode)
	}
	e.state.Config = cfg
	e.commitLocked()
	return nil
}

// Start runs the countdown. It is a no-op while already running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.options.Clock.Now()
	e.catchUpLocked(now)
	e.startLocked(now)
	e.commitLocked()
}

// Pause freezes the countdown at its current value.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catchUpLocked(e.options.Clock.Now())
	e.stopLocked()
	e.commitLocked()
}

// Toggle pauses a running countdown and starts a paused one.
func (e *Engine) Toggle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.options.Clock.Now()
	e.catchUpLocked(now)
	if e.state.Running {
		e.stopLocked()
	} else {
		e.startLocked(now)
	}
	e.commitLocked()
}

// ResetCurrent stops and refills the current mode.
func (e *Engine) ResetCurrent() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catchUpLocked(e.options.Clock.Now())
	e.stopLocked()
	e.state.SecondsRemaining = e.state.Config.Seconds(e.state.Mode)
	e.commitLocked()
}

// ResetAll returns to a fresh focus interval and clears the completed count.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catchUpLocked(e.options.Clock.Now())
	e.stopLocked()
	e.state.Mode = ModeFocus
	e.state.CompletedFocusCount = 0
	e.state.SecondsRemaining = e.state.Config.Seconds(ModeFocus)
	e.commitLocked()
}

// SwitchMode stops and moves to a full interval of mode.
func (e *Engine) SwitchMode(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catchUpLocked(e.options.Clock.Now())
	e.stopLocked()
	e.state.Mode = mode
	e.state.SecondsRemaining = e.state.Config.Seconds(mode)
	e.commitLocked()
	return nil
}

// Tick recomputes the remaining time from the target end and publishes it.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catchUpLocked(e.options.Clock.Now())
	e.commitLocked()
}

// Subscribe registers an observer. The channel receives the current snapshot
// immediately and keeps only the newest one when the reader falls behind.
// Call the returned function to unsubscribe.
func (e *Engine) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	e.mu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = ch
	ch <- newSnapshot(e.state)
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subscribers[id]; ok {
				delete(e.subscribers, id)
				close(sub)
			}
		})
	}
}

// Attach starts the periodic tick. The state is first rehydrated from the
// store, so time spent detached is accounted for. Attaching twice is a no-op.
func (e *Engine) Attach(ctx context.Context) {
	e.mu.Lock()
	if e.stopTick != nil {
		e.mu.Unlock()
		return
	}
	e.catchUpLocked(e.options.Clock.Now())
	e.commitLocked()

	tickCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.stopTick = cancel
	e.tickDone = done
	e.mu.Unlock()

	go e.run(tickCtx, done)
}

// Detach stops the periodic tick. The countdown itself keeps its running or
// paused state.
func (e *Engine) Detach() {
	e.mu.Lock()
	cancel, done := e.stopTick, e.tickDone
	e.stopTick = nil
	e.tickDone = nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close detaches, waits for in-flight completion logs and closes every
// subscriber channel.
func (e *Engine) Close() {
	e.Detach()
	e.pending.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.subscribers {
		delete(e.subscribers, id)
		close(ch)
	}
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(e.options.TickInterval)
	defer ticker.Stop()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			if e.tickDone == done {
				e.stopTick = nil
				e.tickDone = nil
			}
			e.mu.Unlock()
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

func (e *Engine) startLocked(now time.Time) {
	if e.state.Running {
		return
	}
	if e.state.SecondsRemaining == 0 {
		e.state.SecondsRemaining = e.state.Config.Seconds(e.state.Mode)
	}
	e.state.Running = true
	e.state.TargetEnd = now.Add(time.Duration(e.state.SecondsRemaining) * time.Second)
}

func (e *Engine) stopLocked() {
	e.state.Running = false
	e.state.TargetEnd = time.Time{}
}

// catchUpLocked adopts any snapshot another engine wrote to the shared store
// and then refreshes the remaining time. It reports whether the state changed.
func (e *Engine) catchUpLocked(now time.Time) bool {
	synced := e.syncLocked()
	refreshed := e.refreshLocked(now)
	return synced || refreshed
}

// syncLocked replaces the state with the stored snapshot when it differs from
// the last one this engine wrote.
func (e *Engine) syncLocked() bool {
	if e.persistFailing {
		return false
	}
	raw, found, err := e.kv.Get(e.options.Key)
	if err != nil {
		e.log.Debug("snapshot not re-read", "err", err)
		return false
	}
	if !found || raw == e.lastSaved {
		return false
	}
	st, err := decodeState(raw)
	if err != nil {
		e.log.Debug("ignoring unreadable stored snapshot", "err", err)
		return false
	}
	e.state = st
	e.lastSaved = raw
	return true
}

// refreshLocked derives the remaining time from the target end and applies
// the completion transition when it reaches zero. It reports whether the
// state changed.
func (e *Engine) refreshLocked(now time.Time) bool {
	if !e.state.Running {
		return false
	}
	remaining := remainingUntil(e.state.TargetEnd, now)
	if remaining > 0 {
		changed := remaining != e.state.SecondsRemaining
		e.state.SecondsRemaining = remaining
		return changed
	}
	e.completeLocked()
	return true
}

func (e *Engine) completeLocked() {
	finished := e.state.Mode
	endedAt := e.state.TargetEnd
	e.stopLocked()

	next := ModeFocus
	if finished == ModeFocus {
		e.dispatchLocked(FocusCompleted{Minutes: e.state.Config.FocusMinutes, EndedAt: endedAt})
		e.state.CompletedFocusCount++
		next = ModeShortBreak
		if e.state.CompletedFocusCount%e.state.Config.LongBreakInterval == 0 {
			next = ModeLongBreak
		}
	}
	e.state.Mode = next
	e.state.SecondsRemaining = e.state.Config.Seconds(next)
	e.log.Info("interval completed", "finished", finished, "next", next, "completed_focus", e.state.CompletedFocusCount)
}

func (e *Engine) dispatchLocked(event FocusCompleted) {
	sink := e.options.Sink
	if sink == nil {
		return
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.options.SinkTimeout)
		defer cancel()
		if err := sink.LogFocusCompletion(ctx, event); err != nil {
			e.log.Warn("focus completion log failed", "minutes", event.Minutes, "err", err)
		}
	}()
}

func (e *Engine) commitLocked() {
	e.persistLocked()
	e.publishLocked(newSnapshot(e.state))
}

func (e *Engine) persistLocked() {
	encoded, err := encodeState(e.state)
	if err != nil {
		e.log.Warn("snapshot not saved", "err", err)
		return
	}
	if encoded == e.lastSaved && !e.persistFailing {
		return
	}
	if err := e.kv.Set(e.options.Key, encoded); err != nil {
		if !e.persistFailing {
			e.log.Warn("snapshot not saved, continuing in memory", "err", err)
		}
		e.persistFailing = true
		return
	}
	if e.persistFailing {
		e.log.Info("snapshot persistence recovered")
	}
	e.persistFailing = false
	e.lastSaved = encoded
}

func (e *Engine) publishLocked(snap Snapshot) {
	for _, ch := range e.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Drop the stale value so the newest snapshot always lands.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// readStored loads the snapshot. Failures are logged and reported as !ok.
func (e *Engine) readStored() (State, string, bool) {
	raw, found, err := e.kv.Get(e.options.Key)
	if err != nil {
		e.log.Warn("snapshot unavailable, using defaults", "err", fmt.Errorf("%w: %v", ErrPersistenceRead, err))
		return State{}, "", false
	}
	if !found {
		return State{}, "", false
	}
	st, err := decodeState(raw)
	if err != nil {
		e.log.Warn("discarding stored snapshot", "err", err)
		return State{}, "", false
	}
	return st, raw, true
}
