// Package bridge connects the device event stream to the rest of the
// backend: every raw frame is re-broadcast to viewers immediately, and a
// decimated subset is validated, persisted, and run through the threshold
// rules while a smoke is live.
package bridge

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/luki/smoker/internal/logging"
	"github.com/luki/smoker/internal/notify"
	"github.com/luki/smoker/internal/rules"
	"github.com/luki/smoker/internal/sample"
	"github.com/luki/smoker/internal/state"
	"github.com/luki/smoker/internal/ws"
)

var (
	framesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smoker_frames_received_total",
		Help: "Raw device frames received on the events channel.",
	})
	samplesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smoker_samples_forwarded_total",
		Help: "Decimated samples persisted and evaluated.",
	})
	workSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smoker_work_skipped_total",
		Help: "Forwarding units skipped, by reason.",
	}, []string{"reason"})
	samplesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smoker_samples_classified_total",
		Help: "Forwarded samples by range classification.",
	}, []string{"class"})
)

// Broadcaster re-emits raw frames to all connected viewers.
type Broadcaster interface {
	Broadcast(channel, data string)
}

// Store is the persistence collaborator for samples and rule state.
type Store interface {
	AppendSample(rec sample.Record) error
	LoadRules() ([]*rules.Rule, error)
	SaveRules(rs []*rules.Rule) error
	LoadSubscriptions() ([]notify.Subscription, error)
}

// StateReader reports the current session at processing time. The read
// may race with rapid state toggles; no stronger consistency is assumed.
type StateReader interface {
	Current() (state.State, error)
}

// Dispatcher fans a fired rule's message out to subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string, subs []notify.Subscription)
}

// DefaultDecimation forwards every 11th frame (counter must exceed it).
const DefaultDecimation = 10

// Options tune one bridge instance.
type Options struct {
	// Decimation is the forwarding threshold; DefaultDecimation if zero.
	Decimation int
	// InitialCount seeds the decimation counter, for tests.
	InitialCount int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Bridge owns one connection's ingestion state. The decimation counter
// is a field, not package state, so concurrent connections and tests
// never interfere with each other.
type Bridge struct {
	hub      Broadcaster
	store    Store
	states   StateReader
	dispatch Dispatcher
	eval     rules.Evaluator

	threshold int
	count     int
	now       func() time.Time
}

// New wires a bridge to its collaborators.
func New(hub Broadcaster, st Store, states StateReader, dispatch Dispatcher, eval rules.Evaluator, opts Options) *Bridge {
	threshold := opts.Decimation
	if threshold <= 0 {
		threshold = DefaultDecimation
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Bridge{
		hub:       hub,
		store:     st,
		states:    states,
		dispatch:  dispatch,
		eval:      eval,
		threshold: threshold,
		count:     opts.InitialCount,
		now:       now,
	}
}

// OnFrame routes one inbound frame. Non-event channels are pure relays:
// re-emitted verbatim, never decimated, never parsed.
func (b *Bridge) OnFrame(channel, data string) {
	switch channel {
	case ws.ChannelEvents:
		b.onRawEvent(data)
	case ws.ChannelSmokeUpdate, ws.ChannelClear, ws.ChannelRefresh:
		logging.Info().Str("channel", channel).Msg("relay frame")
		b.hub.Broadcast(channel, data)
	default:
		logging.Warn().Str("channel", channel).Msg("frame on unknown channel dropped")
	}
}

// onRawEvent broadcasts the raw payload first, so viewers see every
// frame with latency independent of validation, then forwards
// every (threshold+1)th frame downstream while a smoke is live.
func (b *Bridge) onRawEvent(raw string) {
	b.hub.Broadcast(ws.ChannelEvents, raw)
	framesReceived.Inc()

	b.count++
	if b.count <= b.threshold {
		return
	}
	b.count = 0

	st, err := b.states.Current()
	if err != nil {
		logging.Error().Err(err).Msg("state lookup failed, sample skipped")
		workSkipped.WithLabelValues("state_error").Inc()
		return
	}
	if !st.Smoking {
		logging.Debug().Msg("not smoking, sample skipped")
		workSkipped.WithLabelValues("not_smoking").Inc()
		return
	}

	rec, err := sample.ParseRaw([]byte(raw))
	if err != nil {
		logging.Warn().Err(err).Msg("malformed event dropped from forwarding path")
		workSkipped.WithLabelValues("parse_error").Inc()
		return
	}
	rec.SessionID = st.SmokeID

	// Advisory only: odd readings are logged and counted but still
	// persisted and evaluated.
	class := sample.Classify(rec.Chamber, rec.Probe1)
	samplesClassified.WithLabelValues(class.String()).Inc()
	if class != sample.Nominal {
		logging.Warn().
			Str("class", class.String()).
			Str("chamber", rec.ChamberRaw).
			Str("probe1", rec.Probe1Raw).
			Msg("sample out of expected range")
	}

	if err := b.store.AppendSample(rec); err != nil {
		logging.Error().Err(err).Msg("persist sample failed")
	}

	b.evaluate(rec.Sample)
	samplesForwarded.Inc()
}

func (b *Bridge) evaluate(s sample.Sample) {
	rs, err := b.store.LoadRules()
	if err != nil {
		logging.Error().Err(err).Msg("load rules failed, evaluation skipped")
		workSkipped.WithLabelValues("rules_error").Inc()
		return
	}

	fired := b.eval.Evaluate(s, rs, b.now())
	if len(fired) == 0 {
		return
	}

	subs, err := b.store.LoadSubscriptions()
	if err != nil {
		logging.Error().Err(err).Msg("load subscriptions failed, notifications dropped")
		subs = nil
	}

	for _, r := range fired {
		logging.Info().Str("rule", r.ID).Str("message", r.Message).Msg("threshold rule fired")
		// Fire and forget: delivery must never block the ingestion loop.
		go b.dispatch.Dispatch(context.Background(), r.Message, subs)
	}

	if err := b.store.SaveRules(rs); err != nil {
		logging.Error().Err(err).Msg("persist rule state failed")
	}
}
