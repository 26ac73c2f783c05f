// Package sse streams stored-session changes to open workbenches as
// Server-Sent Events.
package sse

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Session change kinds accepted by PublishSessionEvent.
const (
	KindSaved   = "saved"
	KindDeleted = "deleted"
)

// Event names on the wire.
const (
	EventSessionSaved    = "session.saved"
	EventSessionDeleted  = "session.deleted"
	EventSessionsUpdated = "sessions.updated"
)

const (
	defaultListThrottle = 2 * time.Second
	defaultKeepAlive    = 15 * time.Second
	subscriberBuffer    = 64
)

// Event is one message for every subscriber. Data is sent as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithListThrottle sets the minimum gap between two sessions.updated events.
func WithListThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.listThrottle = d
		}
	}
}

// WithKeepAlive sets how often an idle stream gets a comment line. Zero
// disables it.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// WithLogger sets the logger for dropped frames.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.log = l }
}

// subscriber is one open stream.
type subscriber struct {
	frames  chan []byte
	dropped int
}

// hub is the broker state. Only the loop goroutine touches it.
type hub struct {
	subs     map[chan []byte]*subscriber
	seq      uint64
	lastList time.Time
}

// Broker fans events out to subscribers. Its state lives in one goroutine
// and every public method hands that goroutine a closure.
type Broker struct {
	listThrottle time.Duration
	keepAlive    time.Duration
	log          *slog.Logger
	now          func() time.Time

	ops     chan func(*hub)
	quit    chan struct{}
	stopped chan struct{}
	closing atomic.Bool
}

// NewBroker starts a broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		listThrottle: defaultListThrottle,
		keepAlive:    defaultKeepAlive,
		log:          slog.Default(),
		now:          time.Now,
		ops:          make(chan func(*hub), 256),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)
	h := &hub{subs: make(map[chan []byte]*subscriber)}
	for {
		select {
		case op := <-b.ops:
			op(h)
		case <-b.quit:
			for ch := range h.subs {
				close(ch)
			}
			return
		}
	}
}

// do runs op on the loop goroutine. It reports false once the broker is
// closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closing.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// call is do for operations whose result the caller waits for.
func (b *Broker) call(op func(*hub)) bool {
	done := make(chan struct{})
	if !b.do(func(h *hub) { op(h); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-b.stopped:
		// op may have run just before the loop exited
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// Close closes every subscriber channel and stops the broker. It is safe
// to call more than once.
func (b *Broker) Close() {
	if b.closing.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.stopped
}

// Subscribe registers a new stream. The returned channel is closed by
// Unsubscribe or Close; on a closed broker it comes back closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	if !b.call(func(h *hub) { h.subs[ch] = &subscriber{frames: ch} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe drops a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.call(func(h *hub) {
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of open streams.
func (b *Broker) ClientCount() int {
	var n int
	if !b.call(func(h *hub) { n = len(h.subs) }) {
		return 0
	}
	return n
}

// Publish sends ev to every open stream.
func (b *Broker) Publish(ev Event) {
	b.do(func(h *hub) { b.broadcast(h, ev) })
}

// PublishSessionEvent announces one saved or deleted session and, at most
// once per list throttle, a sessions.updated event. Other kinds are ignored.
func (b *Broker) PublishSessionEvent(kind string, id int64) {
	var name string
	switch kind {
	case KindSaved:
		name = EventSessionSaved
	case KindDeleted:
		name = EventSessionDeleted
	default:
		return
	}
	b.do(func(h *hub) {
		b.broadcast(h, Event{Type: name, Data: map[string]int64{"id": id}})
		if now := b.now(); now.Sub(h.lastList) >= b.listThrottle {
			h.lastList = now
			b.broadcast(h, Event{Type: EventSessionsUpdated, Data: struct{}{}})
		}
	})
}

// broadcast frames ev once and offers it to every subscriber. A subscriber
// whose buffer is full misses the frame.
func (b *Broker) broadcast(h *hub, ev Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		b.log.Warn("sse event not encodable", slog.String("event", ev.Type), slog.Any("error", err))
		return
	}
	h.seq++
	frame := encodeFrame(h.seq, ev.Type, data)
	for ch, sub := range h.subs {
		select {
		case ch <- frame:
		default:
			sub.dropped++
			b.log.Debug("sse frame dropped",
				slog.String("event", ev.Type),
				slog.Uint64("seq", h.seq),
				slog.Int("dropped", sub.dropped),
			)
		}
	}
}

func encodeFrame(seq uint64, name string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(seq, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(name)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}

var keepAliveFrame = []byte(": keepalive\n\n")

// ServeHTTP streams events to one client until it disconnects or the
// broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case <-tick:
			frame = keepAliveFrame
		case f, ok := <-ch:
			if !ok {
				return
			}
			frame = f
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		flusher.Flush()
	}
}
