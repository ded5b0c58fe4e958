// Package mq is the fire-and-forget message channel between the state store
// and the background worker. Delivery is at-most-once: a subscriber that is
// not registered, or whose buffer is full, misses the message. There is no
// acknowledgment and no retry. Order is preserved per subscriber within a topic.
package mq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("mq")

// subscriberCap is the per-subscriber buffer. Telemetry arrives several times
// a second; a subscriber that falls this far behind starts losing messages.
const subscriberCap = 64

var (
	ErrUnknownTopic = errors.New("mq: unknown topic")
	ErrWrongTopic   = errors.New("mq: message does not belong to topic")
	ErrClosed       = errors.New("mq: bus closed")
)

// Msg is one published message.
type Msg struct {
	ID      string  `json:"id"`
	Seq     int64   `json:"seq"`
	Topic   Topic   `json:"topic"`
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

type wireMsg struct {
	ID      string          `json:"id"`
	Seq     int64           `json:"seq"`
	Topic   Topic           `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (m *Msg) UnmarshalJSON(b []byte) error {
	var w wireMsg
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		return err
	}
	*m = Msg{ID: w.ID, Seq: w.Seq, Topic: w.Topic, Type: w.Type, Payload: p}
	return nil
}

// Bus is an in-process publish/subscribe transport with the two fixed topics.
type Bus struct {
	seq     atomic.Int64
	dropped atomic.Int64

	mu     sync.RWMutex
	subs   map[Topic]map[chan Msg]struct{}
	closed bool
}

func New() *Bus {
	return &Bus{
		subs: map[Topic]map[chan Msg]struct{}{
			TopicCommand:   {},
			TopicTelemetry: {},
		},
	}
}

// Publish delivers p to every subscriber currently registered on topic.
// Subscribers that are absent or full silently miss it.
func (b *Bus) Publish(topic Topic, p Payload) error {
	if !topic.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	if p == nil || p.Topic() != topic {
		return fmt.Errorf("%w: %T on %s", ErrWrongTopic, p, topic)
	}

	msg := Msg{
		ID:      uuid.NewString(),
		Seq:     b.seq.Add(1),
		Topic:   topic,
		Type:    p.MsgType(),
		Payload: p,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	subs := b.subs[topic]
	if len(subs) == 0 {
		log.Debugf("MQ: no subscriber on %s, dropping %s", topic, msg.Type)
		b.dropped.Add(1)
		return nil
	}
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
			log.Debugf("MQ: subscriber full, dropping %s on %s", msg.Type, topic)
		}
	}
	return nil
}

// Subscribe registers a receiver on topic. Only messages published after this
// call are seen. The cancel function unregisters and closes the channel; it
// is safe to call more than once.
func (b *Bus) Subscribe(topic Topic) (<-chan Msg, func(), error) {
	if !topic.Valid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	ch := make(chan Msg, subscriberCap)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrClosed
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[topic][ch]; ok {
			delete(b.subs[topic], ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel, nil
}

// Dropped returns how many deliveries were lost to absent or full subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close unregisters every subscriber and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for ch := range subs {
			close(ch)
			delete(subs, ch)
		}
	}
}
