package bridge

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/zabeloliver/smarthome-bridge/platform"
	"github.com/zabeloliver/smarthome-bridge/shc-api/shcStructs"
)

// Session is the part of the controller session the bridge depends on.
type Session interface {
	Devices() []shcStructs.Device
	GetRoomById(id string) (shcStructs.Room, bool)
	GetDeviceById(id string) (shcStructs.Device, bool)
	SetState(ctx context.Context, id string, value any) (any, error)
	Shutdown(ctx context.Context) error
}

// HistorySink records device changes outside the platform.
type HistorySink interface {
	Write(ctx context.Context, device shcStructs.Device, room string) error
}

type registration struct {
	path     string
	room     string
	friendly bool
}

// Forwarder relays changes between the controller and the platform. Events
// are queued and handled one at a time by Run.
type Forwarder struct {
	session    Session
	store      platform.Store
	classifier *Classifier
	scheme     PathScheme
	logger     *zap.SugaredLogger
	metrics    *Metrics
	history    HistorySink

	// written during Init only
	registered map[string]registration
	events     chan func(context.Context)
	stopped    chan struct{}
	stopOnce   sync.Once
}

type Option func(*Forwarder)

func WithPathScheme(s PathScheme) Option { return func(f *Forwarder) { f.scheme = s } }

func WithMetrics(m *Metrics) Option { return func(f *Forwarder) { f.metrics = m } }

func WithHistory(h HistorySink) Option { return func(f *Forwarder) { f.history = h } }

func NewForwarder(session Session, store platform.Store, logger *zap.SugaredLogger, opts ...Option) *Forwarder {
	f := &Forwarder{
		session:    session,
		store:      store,
		classifier: NewClassifier(logger),
		scheme:     PathById,
		logger:     logger,
		registered: make(map[string]registration),
		events:     make(chan func(context.Context), 256),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Forwarder) roomName(d shcStructs.Device) string {
	if room, ok := f.session.GetRoomById(d.LCID); ok {
		return room.Name
	}
	return ""
}

func (f *Forwarder) path(d shcStructs.Device, room string) string {
	if f.scheme == PathByName {
		return LegacyPath(room, d.Name)
	}
	return d.Id
}

func value(d shcStructs.Device, friendly bool) any {
	if friendly {
		return d.GetFriendlyState()
	}
	return d.GetState()
}

// Init registers every device the controller knows about and then subscribes
// to the platform's state changes. A device that cannot be registered is
// logged and skipped.
func (f *Forwarder) Init(ctx context.Context) error {
	accepted := 0
	for _, d := range f.session.Devices() {
		ok, err := f.Register(ctx, d)
		if err != nil {
			f.logger.Errorw("registering device failed", "device", d.Id, "error", err)
			continue
		}
		if ok {
			accepted++
		}
	}
	f.logger.Infof("Registered %d devices", accepted)
	return f.store.SubscribeStates("*", f.enqueueState)
}

// Register creates the platform object of a device if it is missing and
// primes it with the current value. It reports whether the device was accepted.
func (f *Forwarder) Register(ctx context.Context, d shcStructs.Device) (bool, error) {
	desc, outcome := f.classifier.Classify(d)
	f.metrics.classified(outcome)
	if outcome != Accepted {
		return false, nil
	}

	room := f.roomName(d)
	reg := registration{path: f.path(d, room), room: room, friendly: desc.Friendly}
	created, err := f.store.SetObjectNotExists(ctx, platform.Object{
		Id:     reg.path,
		Type:   platform.ObjectTypeState,
		Common: desc.Common,
		Native: platform.Native{Id: d.Id, Friendly: desc.Friendly},
	})
	if err != nil {
		if !created {
			return false, err
		}
		// the object exists locally, only announcing it failed
		f.logger.Errorw("publishing object failed", "id", reg.path, "error", err)
	}
	f.registered[d.Id] = reg

	if err := f.store.SetState(ctx, reg.path, platform.State{Val: value(d, reg.friendly), Ack: true}); err != nil {
		f.logger.Errorw("priming state failed", "id", reg.path, "error", err)
	}
	f.metrics.observe(d, room)
	return true, nil
}

// Path returns the object id a device was registered under.
func (f *Forwarder) Path(deviceId string) (string, bool) {
	reg, ok := f.registered[deviceId]
	return reg.path, ok
}

// HubChanged writes the current value of a registered device to the platform.
func (f *Forwarder) HubChanged(ctx context.Context, d shcStructs.Device) {
	reg, ok := f.registered[d.Id]
	if !ok {
		return
	}
	err := f.store.SetState(ctx, reg.path, platform.State{Val: value(d, reg.friendly), Ack: true})
	if err != nil {
		f.logger.Errorw("updating state failed", "id", reg.path, "error", err)
		return
	}
	f.metrics.hubEvent(d, reg.room)
	if f.history != nil {
		if err := f.history.Write(ctx, d, reg.room); err != nil {
			f.logger.Errorw("writing history failed", "device", d.Id, "error", err)
		}
	}
}

// StateChanged forwards a user command to the device and writes back the
// value the controller reports, so clamped or rejected commands show up.
// Acknowledged states are never forwarded.
func (f *Forwarder) StateChanged(ctx context.Context, id string, state *platform.State) {
	if state == nil || state.Ack {
		return
	}
	obj, err := f.store.GetObject(ctx, id)
	if err != nil {
		return
	}
	d, ok := f.session.GetDeviceById(obj.Native.Id)
	if !ok {
		return
	}
	if !obj.Common.Write {
		f.logger.Debugw("command for read-only object", "id", id)
		f.writeBack(ctx, id, obj.Native.Id, d.GetState(), obj.Native.Friendly)
		return
	}

	applied, err := f.session.SetState(ctx, d.Id, state.Val)
	if err != nil {
		f.metrics.command("failed")
		f.logger.Errorw("forwarding command failed", "id", id, "device", d.Id, "error", err)
		return
	}
	f.metrics.command("forwarded")
	f.writeBack(ctx, id, d.Id, applied, obj.Native.Friendly)
}

func (f *Forwarder) writeBack(ctx context.Context, id, deviceId string, applied any, friendly bool) {
	val := applied
	if friendly {
		if d, ok := f.session.GetDeviceById(deviceId); ok {
			val = d.GetFriendlyState()
		}
	}
	if err := f.store.SetState(ctx, id, platform.State{Val: val, Ack: true}); err != nil {
		f.logger.Errorw("writing back state failed", "id", id, "error", err)
	}
}

// EnqueueHubChange queues a device change for Run. Safe for concurrent use.
func (f *Forwarder) EnqueueHubChange(d shcStructs.Device) {
	f.enqueue(func(ctx context.Context) { f.HubChanged(ctx, d) })
}

func (f *Forwarder) enqueueState(id string, state *platform.State) {
	if state == nil || state.Ack {
		return
	}
	st := *state
	f.enqueue(func(ctx context.Context) { f.StateChanged(ctx, id, &st) })
}

// enqueue drops events once Run has returned.
func (f *Forwarder) enqueue(ev func(context.Context)) {
	select {
	case f.events <- ev:
	case <-f.stopped:
	}
}

// Stop makes further events be dropped instead of queued. Run calls it on
// return; callers that never start Run must call it themselves.
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() { close(f.stopped) })
}

// Run handles queued events in arrival order until ctx is done.
func (f *Forwarder) Run(ctx context.Context) error {
	defer f.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case ev := <-f.events:
			ev(ctx)
		}
	}
}

// Shutdown releases the controller session. Failures are logged only.
func (f *Forwarder) Shutdown(ctx context.Context) {
	if f.session == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			f.logger.Errorw("shutting down session panicked", "panic", r)
		}
	}()
	if err := f.session.Shutdown(ctx); err != nil {
		f.logger.Warnw("shutting down session failed", "error", err)
	}
	f.logger.Info("cleaned everything up...")
}
