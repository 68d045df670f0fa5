package notify

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vigilops/vigil/internal/alerting/model"
)

const (
	defaultSendTimeout = 10 * time.Second
	historyLimit       = 10000
)

// Dispatcher fans a payload out to notification channels. Failures are
// isolated per channel: one transport error never prevents delivery to the
// others. Sends to distinct channels run concurrently; sends to the same
// channel are serialized so attempt order matches rate-limiter accounting.
type Dispatcher struct {
	mu         sync.RWMutex
	channels   map[string]*model.NotificationChannel
	channelMus map[string]*sync.Mutex
	transports map[model.ChannelType]Transport

	limiter *RateLimiter
	timeout time.Duration

	histMu  sync.Mutex
	history []DeliveryRecord

	sent        atomic.Int64
	failed      atomic.Int64
	rateLimited atomic.Int64

	// nowFn allows overriding for tests
	nowFn func() time.Time
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	client := &http.Client{Timeout: timeout}
	d := &Dispatcher{
		channels:   make(map[string]*model.NotificationChannel),
		channelMus: make(map[string]*sync.Mutex),
		transports: make(map[model.ChannelType]Transport),
		limiter:    NewRateLimiter(),
		timeout:    timeout,
		nowFn:      time.Now,
	}
	for _, t := range []Transport{
		EmailTransport{},
		&SlackTransport{client: client},
		&WebhookTransport{client: client},
		SMSTransport{},
		&PagerDutyTransport{client: client},
	} {
		d.transports[t.Type()] = t
	}
	return d
}

// RegisterTransport replaces the transport for its channel type.
func (d *Dispatcher) RegisterTransport(t Transport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transports[t.Type()] = t
}

func (d *Dispatcher) AddChannel(c *model.NotificationChannel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[c.ID] = c
	if _, ok := d.channelMus[c.ID]; !ok {
		d.channelMus[c.ID] = &sync.Mutex{}
	}
	log.Info().Str("channel", c.ID).Str("type", string(c.Type)).Msg("notification channel added")
}

func (d *Dispatcher) RemoveChannel(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, id)
	log.Info().Str("channel", id).Msg("notification channel removed")
}

// ChannelCount reports configured channels, enabled or not.
func (d *Dispatcher) ChannelCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.channels)
}

// Sent and Failed expose delivery counters for the stats surface.
func (d *Dispatcher) Sent() int64   { return d.sent.Load() }
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

// Send delivers payload to the named channels, or to every enabled channel
// when channelIDs is empty. It blocks until all channel attempts finish and
// returns one record per attempted channel.
func (d *Dispatcher) Send(ctx context.Context, p *Payload, channelIDs []string) []DeliveryRecord {
	targets := d.resolveTargets(channelIDs)
	if len(targets) == 0 {
		return nil
	}

	records := make([]DeliveryRecord, len(targets))
	var wg sync.WaitGroup
	for i, ch := range targets {
		wg.Add(1)
		go func(i int, ch *model.NotificationChannel) {
			defer wg.Done()
			records[i] = d.sendOne(ctx, p, ch)
		}(i, ch)
	}
	wg.Wait()

	d.histMu.Lock()
	d.history = append(d.history, records...)
	if len(d.history) > historyLimit {
		d.history = d.history[len(d.history)-historyLimit:]
	}
	d.histMu.Unlock()

	return records
}

func (d *Dispatcher) sendOne(ctx context.Context, p *Payload, ch *model.NotificationChannel) DeliveryRecord {
	rec := DeliveryRecord{
		ID:        uuid.NewString(),
		ChannelID: ch.ID,
		AlertID:   p.AlertID,
		RuleID:    p.RuleID,
		Timestamp: d.nowFn(),
	}

	chMu := d.channelMutex(ch.ID)
	chMu.Lock()
	defer chMu.Unlock()

	if !d.limiter.Admit(ch.ID, p.Severity, ch.RateLimit, d.nowFn()) {
		rec.Outcome = OutcomeRateLimited
		d.rateLimited.Add(1)
		log.Debug().Str("channel", ch.ID).Str("severity", string(p.Severity)).Msg("notification rate limited")
		return rec
	}

	transport, ok := d.transport(ch.Type)
	if !ok {
		rec.Outcome = OutcomeFailed
		rec.Error = "unknown channel type " + string(ch.Type)
		d.failed.Add(1)
		log.Warn().Str("channel", ch.ID).Str("type", string(ch.Type)).Msg("unknown channel type")
		return rec
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := transport.Send(sendCtx, p, ch.Config); err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = err.Error()
		d.failed.Add(1)
		log.Error().Err(err).Str("channel", ch.ID).Str("alert", p.AlertID).Msg("notification delivery failed")
		return rec
	}

	rec.Outcome = OutcomeSent
	d.sent.Add(1)
	log.Debug().Str("channel", ch.ID).Str("alert", p.AlertID).Msg("notification delivered")
	return rec
}

func (d *Dispatcher) resolveTargets(channelIDs []string) []*model.NotificationChannel {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*model.NotificationChannel
	if len(channelIDs) == 0 {
		for _, ch := range d.channels {
			if ch.Enabled {
				out = append(out, ch)
			}
		}
		return out
	}
	for _, id := range channelIDs {
		if ch, ok := d.channels[id]; ok && ch.Enabled {
			out = append(out, ch)
		}
	}
	return out
}

func (d *Dispatcher) channelMutex(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	mu, ok := d.channelMus[id]
	if !ok {
		mu = &sync.Mutex{}
		d.channelMus[id] = mu
	}
	return mu
}

func (d *Dispatcher) transport(t model.ChannelType) (Transport, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tr, ok := d.transports[t]
	return tr, ok
}

// History returns up to limit most recent delivery records, newest last.
func (d *Dispatcher) History(limit int) []DeliveryRecord {
	d.histMu.Lock()
	defer d.histMu.Unlock()
	if limit <= 0 || limit > len(d.history) {
		limit = len(d.history)
	}
	out := make([]DeliveryRecord, limit)
	copy(out, d.history[len(d.history)-limit:])
	return out
}
