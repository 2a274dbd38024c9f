// Package pipeline turns one inbound chat message into exactly one terminal
// action: stay silent, send a canned template, or send an AI-generated
// reply, delivered with human-plausible pacing.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/zapdesk/internal/bus"
	"github.com/zapdesk/zapdesk/internal/composer"
	"github.com/zapdesk/zapdesk/internal/convstate"
	"github.com/zapdesk/zapdesk/internal/humanize"
	"github.com/zapdesk/zapdesk/internal/settings"
	"github.com/zapdesk/zapdesk/internal/store"
	"github.com/zapdesk/zapdesk/internal/telemetry"
)

// DecisionSink receives one event per handled inbound message.
type DecisionSink interface {
	EmitDecision(ctx context.Context, ev telemetry.DecisionEvent)
}

// Options contains the pipeline's collaborators.
type Options struct {
	Bus       *bus.MessageBus
	Settings  *settings.Service
	State     *convstate.Manager
	Composer  *composer.Composer
	Telemetry DecisionSink
}

const (
	// Buffered events per contact before dispatch blocks.
	contactQueueSize = 64
	// How long a contact's worker lingers after its last event.
	contactQueueIdle = 5 * time.Minute
)

// contactQueue feeds one contact's events, in arrival order, to a single
// worker goroutine. pending counts events handed to the queue but not yet
// picked up; the worker only retires when it reaches zero.
type contactQueue struct {
	ch      chan *bus.InboundMessage
	pending int
}

// Pipeline is the inbound decision orchestrator. Events for different
// contacts run concurrently; events for the same contact are serialized in
// arrival order through a per-contact queue.
type Pipeline struct {
	bus       *bus.MessageBus
	settings  *settings.Service
	state     *convstate.Manager
	composer  *composer.Composer
	telemetry DecisionSink

	mu         sync.Mutex
	transports map[string]humanize.Transport
	queues     map[string]*contactQueue
	wg         sync.WaitGroup

	nowFn     func() time.Time
	queueIdle time.Duration
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{
		bus:        opts.Bus,
		settings:   opts.Settings,
		state:      opts.State,
		composer:   opts.Composer,
		telemetry:  opts.Telemetry,
		transports: make(map[string]humanize.Transport),
		queues:     make(map[string]*contactQueue),
		nowFn:      time.Now,
		queueIdle:  contactQueueIdle,
	}
}

// RegisterTransport binds a channel name to its direct transport. Channels
// without one fall back to the outbound bus, losing presence signals.
func (p *Pipeline) RegisterTransport(channel string, t humanize.Transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transports[channel] = t
}

// Run consumes inbound events until the context is cancelled. Each event is
// appended to its contact's queue in consumption order, so two messages from
// the same contact are always handled first-in first-out.
func (p *Pipeline) Run(ctx context.Context) error {
	slog.Info("Reply pipeline started")
	for {
		ev, err := p.bus.ConsumeInbound(ctx)
		if err != nil {
			p.mu.Lock()
			for _, q := range p.queues {
				close(q.ch)
			}
			p.mu.Unlock()
			p.wg.Wait()
			slog.Info("Reply pipeline stopped")
			return err
		}
		p.dispatch(ctx, ev)
	}
}

// dispatch appends the event to its contact's queue, starting a worker for
// contacts without one. The send may block when the contact's queue is full;
// a worker never retires while pending is non-zero, so the send always lands.
func (p *Pipeline) dispatch(ctx context.Context, ev *bus.InboundMessage) {
	key := ev.Channel + ":" + ev.SenderID
	p.mu.Lock()
	q, ok := p.queues[key]
	if !ok {
		q = &contactQueue{ch: make(chan *bus.InboundMessage, contactQueueSize)}
		p.queues[key] = q
		p.wg.Add(1)
		go p.drainContact(ctx, key, q)
	}
	q.pending++
	p.mu.Unlock()
	q.ch <- ev
}

// drainContact processes one contact's events in order and retires after the
// queue has been idle for a while.
func (p *Pipeline) drainContact(ctx context.Context, key string, q *contactQueue) {
	defer p.wg.Done()
	idle := time.NewTimer(p.queueIdle)
	defer idle.Stop()
	for {
		select {
		case ev, ok := <-q.ch:
			if !ok {
				p.mu.Lock()
				delete(p.queues, key)
				p.mu.Unlock()
				return
			}
			p.mu.Lock()
			q.pending--
			p.mu.Unlock()
			p.HandleInbound(ctx, ev)
			idle.Reset(p.queueIdle)
		case <-idle.C:
			p.mu.Lock()
			if q.pending == 0 {
				delete(p.queues, key)
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
			idle.Reset(p.queueIdle)
		}
	}
}

// HandleInbound is the single entry point for one inbound event. It never
// panics past its boundary and never sends more than one reply. Callers must
// serialize events for the same contact; Run does this per contact queue.
func (p *Pipeline) HandleInbound(ctx context.Context, ev *bus.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Pipeline panic recovered", "trace_id", ev.TraceID, "panic", r)
			p.emit(ctx, ev, nil, skip(ReasonInternalError))
		}
	}()

	if ev.TraceID == "" {
		ev.TraceID = uuid.NewString()
	}

	// Own echoes and status broadcasts never become customer history.
	if ev.FromSelf || ev.IsStatus {
		p.emit(ctx, ev, nil, skip(ReasonNotActionable))
		return
	}

	snap, err := p.settings.Snapshot()
	if err != nil {
		slog.Error("Settings snapshot failed", "trace_id", ev.TraceID, "error", err)
		p.emit(ctx, ev, nil, skip(ReasonInternalError))
		return
	}

	contact, err := p.state.UpsertContact(ev.SenderID, ev.SenderName, ev.IsGroup)
	if err != nil {
		slog.Error("Contact upsert failed", "trace_id", ev.TraceID, "address", ev.SenderID, "error", err)
		p.emit(ctx, ev, nil, skip(ReasonInternalError))
		return
	}

	if err := p.state.RecordMessage(&store.Message{
		ContactID: contact.ID,
		Direction: store.DirectionInbound,
		Body:      ev.Content,
		HasMedia:  ev.HasMedia,
		Timestamp: ev.Timestamp,
	}); err != nil {
		slog.Error("Inbound message record failed", "trace_id", ev.TraceID, "error", err)
		p.emit(ctx, ev, contact, skip(ReasonInternalError))
		return
	}

	decision := p.decide(ev, contact, snap)
	p.execute(ctx, ev, contact, snap, decision)
	p.emit(ctx, ev, contact, decision)
}

// decide runs the ordered, short-circuiting checks. Any evaluation error
// degrades to Skip(internal-error); the pipeline never raises past here.
func (p *Pipeline) decide(ev *bus.InboundMessage, contact *store.Contact, snap *settings.Snapshot) Decision {
	// 1. Self-authored messages and status broadcasts are never replied to.
	if ev.FromSelf || ev.IsStatus {
		return skip(ReasonNotActionable)
	}

	// 2. Master switch.
	if !snap.AutoReplyEnabled {
		return skip(ReasonAutoReplyDisabled)
	}

	// 3. Business hours.
	if snap.BusinessHoursEnabled && !withinBusinessHours(snap, p.nowFn()) {
		if snap.OutOfOfficeEnabled {
			return Decision{Action: ActionSendOutOfOffice}
		}
		return skip(ReasonOutsideBusinessHours)
	}

	// 4. Contact eligibility, independent of message content.
	if reason, err := p.eligibility(ev, contact, snap); err != nil {
		slog.Error("Eligibility check failed", "trace_id", ev.TraceID, "error", err)
		return skip(ReasonInternalError)
	} else if reason != "" {
		return skip(reason)
	}

	// 5. Permanent opt-out keyword, exact whole-body match.
	if snap.StopKeyword != "" && strings.EqualFold(strings.TrimSpace(ev.Content), snap.StopKeyword) {
		return Decision{Action: ActionSendStopAck}
	}

	// 6. Human-handoff keywords, substring match.
	lower := strings.ToLower(ev.Content)
	for _, kw := range snap.HumanKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return Decision{Action: ActionSendHumanHandoffAck}
		}
	}

	// 7. Everything else gets an AI reply.
	return Decision{Action: ActionGenerateAIReply}
}

// eligibility returns the first violated condition's reason, or "" when the
// contact may receive an automated reply.
func (p *Pipeline) eligibility(ev *bus.InboundMessage, contact *store.Contact, snap *settings.Snapshot) (string, error) {
	stopListed, err := p.state.IsStopListed(contact.ID)
	if err != nil {
		return "", err
	}
	if stopListed {
		return ReasonStopListed, nil
	}
	if convstate.TakeoverState(contact).Enabled {
		return ReasonTakeoverActive, nil
	}
	if contact.IsGroup && !snap.GroupAutoReply {
		return ReasonGroupDisabled, nil
	}
	if snap.MaxRepliesPerDay > 0 {
		n, err := p.state.RepliesToday(contact.ID, p.nowFn())
		if err != nil {
			return "", err
		}
		if n >= snap.MaxRepliesPerDay {
			return ReasonDailyLimitReached, nil
		}
	}
	return "", nil
}

// execute performs the decision's side effects. Acknowledgments are sent
// only after their stop-list write is durable.
func (p *Pipeline) execute(ctx context.Context, ev *bus.InboundMessage, contact *store.Contact, snap *settings.Snapshot, decision Decision) {
	switch decision.Action {
	case ActionSkip:
		// Nothing to send.

	case ActionSendOutOfOffice:
		p.sendReply(ctx, ev, contact, snap, snap.OutOfOfficeMessage, false)

	case ActionSendStopAck:
		if err := p.state.AddToStopList(contact.ID); err != nil {
			slog.Error("Stop-list add failed, suppressing ack", "trace_id", ev.TraceID, "error", err)
			return
		}
		p.sendReply(ctx, ev, contact, snap, snap.StopAckMessage, false)

	case ActionSendHumanHandoffAck:
		if err := p.state.AddToStopList(contact.ID); err != nil {
			slog.Error("Stop-list add failed, suppressing ack", "trace_id", ev.TraceID, "error", err)
			return
		}
		p.sendReply(ctx, ev, contact, snap, snap.HumanAckMessage, false)

	case ActionGenerateAIReply:
		text, err := p.composer.Generate(ctx, contact, ev.Content, snap)
		if errors.Is(err, composer.ErrNoReply) {
			slog.Info("Model returned empty reply, skipping", "trace_id", ev.TraceID)
			return
		}
		if err != nil {
			slog.Error("Completion failed, no reply sent", "trace_id", ev.TraceID, "error", err)
			return
		}
		p.sendReply(ctx, ev, contact, snap, text, true)
	}
}

// sendReply delivers text through the human behavior simulator and records
// every sent chunk as a bot-authored message.
func (p *Pipeline) sendReply(ctx context.Context, ev *bus.InboundMessage, contact *store.Contact, snap *settings.Snapshot, text string, aiGenerated bool) {
	if strings.TrimSpace(text) == "" {
		return
	}

	sim := humanize.NewSimulator(humanize.ParamsFromSnapshot(snap))
	chunks := sim.ChunkReply(text)
	transport := p.transportFor(ev.Channel)

	rec := &recordingTransport{
		inner: transport,
		onSent: func(chunk string) {
			now := p.nowFn()
			if err := p.state.RecordMessage(&store.Message{
				ContactID:     contact.ID,
				Direction:     store.DirectionOutbound,
				IsAIGenerated: aiGenerated,
				Body:          chunk,
				Timestamp:     now,
				RepliedAt:     &now,
			}); err != nil {
				slog.Error("Outbound message record failed", "trace_id", ev.TraceID, "error", err)
			}
		},
	}

	// Pretend to read the inbound message before starting to type.
	if err := sim.Pause(ctx, sim.ReadingDuration(ev.Content)); err != nil {
		slog.Info("Delivery cancelled before start", "trace_id", ev.TraceID)
		return
	}
	if err := sim.Deliver(ctx, rec, ev.ChatID, chunks); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Info("Delivery cancelled, remaining chunks dropped", "trace_id", ev.TraceID)
			return
		}
		slog.Error("Delivery failed", "trace_id", ev.TraceID, "channel", ev.Channel, "error", err)
	}
}

func (p *Pipeline) emit(ctx context.Context, ev *bus.InboundMessage, contact *store.Contact, decision Decision) {
	if p.telemetry == nil {
		return
	}
	event := telemetry.DecisionEvent{
		TraceID: ev.TraceID,
		Channel: ev.Channel,
		Address: ev.SenderID,
		Action:  string(decision.Action),
		Reason:  decision.Reason,
	}
	if contact != nil {
		event.ContactID = contact.ID
	}
	p.telemetry.EmitDecision(ctx, event)
}

func (p *Pipeline) transportFor(channel string) humanize.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.transports[channel]; ok {
		return t
	}
	return &busTransport{bus: p.bus, channel: channel}
}

// recordingTransport records each successfully sent chunk.
type recordingTransport struct {
	inner  humanize.Transport
	onSent func(chunk string)
}

func (r *recordingTransport) Send(ctx context.Context, chatID, content string) error {
	if err := r.inner.Send(ctx, chatID, content); err != nil {
		return err
	}
	r.onSent(content)
	return nil
}

func (r *recordingTransport) SetComposing(ctx context.Context, chatID string) error {
	return r.inner.SetComposing(ctx, chatID)
}

func (r *recordingTransport) ClearComposing(ctx context.Context, chatID string) error {
	return r.inner.ClearComposing(ctx, chatID)
}

// busTransport is the fallback send path for channels without a direct
// transport. Presence signals are no-ops.
type busTransport struct {
	bus     *bus.MessageBus
	channel string
}

func (t *busTransport) Send(ctx context.Context, chatID, content string) error {
	t.bus.PublishOutbound(&bus.OutboundMessage{
		Channel: t.channel,
		ChatID:  chatID,
		Content: content,
	})
	return nil
}

func (t *busTransport) SetComposing(ctx context.Context, chatID string) error   { return nil }
func (t *busTransport) ClearComposing(ctx context.Context, chatID string) error { return nil }
