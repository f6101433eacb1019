// Package queryevents publishes one event per served hex grid query to Kafka.
// Publishing never blocks the request path: when the queue is full the event
// is dropped and counted.
package queryevents

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/mmcloughlin/geohash"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/signal-hexgrid/internal/core/observability"
	"github.com/mohammed-shakir/signal-hexgrid/internal/logger"
)

// GeohashPrecision is the geohash length used for the user location, roughly
// 150 m cells.
const GeohashPrecision = 7

type Event struct {
	ID        string    `json:"id"`
	TS        time.Time `json:"ts"`
	Operator  string    `json:"operator"`
	Network   string    `json:"network,omitempty"`
	Mode      string    `json:"mode"`
	UserLat   float64   `json:"user_lat"`
	UserLon   float64   `json:"user_lon"`
	Geohash   string    `json:"geohash"`
	Cells     int       `json:"cells"`
	Matched   int       `json:"matched"`
	Value     *float64  `json:"value,omitempty"`
	CacheHit  bool      `json:"cache_hit"`
	RequestID string    `json:"request_id,omitempty"`
}

// Fill sets ID, TS and Geohash when they are empty.
func (e *Event) Fill(now time.Time) {
	if e.ID == "" {
		e.ID = logger.NewID()
	}
	if e.TS.IsZero() {
		e.TS = now.UTC()
	}
	if e.Geohash == "" {
		e.Geohash = geohash.EncodeWithPrecision(e.UserLat, e.UserLon, GeohashPrecision)
	}
}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	log     zerolog.Logger
	now     func() time.Time
	dropped atomic.Uint64

	mu        sync.RWMutex // guards closed and sends on events
	closed    bool
	closeOnce sync.Once
	stopped   chan struct{}
	errsDone  chan struct{}
}

type Option func(*Publisher)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Publisher) { p.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// ProducerConfig is the sarama configuration used by NewPublisher.
func ProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	return cfg
}

func NewPublisher(brokers []string, topic string, queueSize int, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("queryevents: no brokers configured")
	}
	prod, err := sarama.NewAsyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("queryevents: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, opts...), nil
}

// NewWithProducer starts a publisher on an existing producer. The publisher
// owns prod and closes it on Close.
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, opts ...Option) *Publisher {
	p := newPublisher(prod, topic, queueSize, opts...)
	p.start()
	return p
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, opts ...Option) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Publisher{
		topic:    topic,
		events:   make(chan Event, queueSize),
		prod:     prod,
		log:      zerolog.New(io.Discard),
		now:      time.Now,
		stopped:  make(chan struct{}),
		errsDone: make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Publisher) start() {
	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error().Err(err).Msg("queryevents: marshal")
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Geohash),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.errsDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn().Err(err).Str("topic", p.topic).Msg("queryevents: producer error")
			}
		}
	}()
}

// Publish enqueues ev after filling its defaults. Events published after Close
// are dropped.
func (p *Publisher) Publish(ev Event) {
	ev.Fill(p.now())
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop()
		return
	}
	select {
	case p.events <- ev:
	default:
		p.drop()
	}
}

func (p *Publisher) drop() {
	p.dropped.Add(1)
	observability.IncEventDropped()
}

// Dropped reports how many events were discarded, either because the queue was
// full or because the publisher was already closed.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close drains queued events into the producer and closes it. It is safe to
// call concurrently with Publish.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()

		<-p.stopped
		if cerr := p.prod.Close(); cerr != nil {
			err = fmt.Errorf("queryevents: close producer: %w", cerr)
		}
		<-p.errsDone
	})
	return err
}
