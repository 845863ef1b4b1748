// Package queryevents publishes successful risk and driver queries to Kafka.
package queryevents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/observability"
	"github.com/mohammed-shakir/mosquito-risk/internal/logger"
)

type Kind string

const (
	KindRiskDefault Kind = "risk_default"
	KindRiskQuery   Kind = "risk_query"
	KindDrivers     Kind = "drivers"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	RequestID string    `json:"request_id,omitempty"`
	Label     string    `json:"label"`
	Source    string    `json:"source"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Cell      string    `json:"cell,omitempty"`
	Window    string    `json:"window,omitempty"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	TS        time.Time `json:"ts"`
}

// NewEvent fills the fields common to every query; callers add Cell and Window.
func NewEvent(ctx context.Context, kind Kind, loc model.Location, vp model.Viewport, r model.DateRange) Event {
	return Event{
		Kind:      kind,
		RequestID: logger.RequestID(ctx),
		Label:     loc.Label,
		Source:    string(loc.Source),
		Lat:       vp.CenterLat,
		Lng:       vp.CenterLng,
		StartDate: r.Start.Format(model.DateLayout),
		EndDate:   r.End.Format(model.DateLayout),
	}
}

// Sink receives events; Publish must never block the request path.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	stopped chan struct{}
	errDone chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("queryevents: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, logger), nil
}

// NewWithProducer starts the publish loop on an existing producer.
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		logger:  logger,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("queryevents: marshal", "err", err)
				observability.IncQueryEvent("error")
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Kind),
				Value: sarama.ByteEncoder(b),
			}
			observability.IncQueryEvent("sent")
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("queryevents: producer error", "err", err.Err)
				observability.IncQueryEvent("error")
			}
		}
	}()

	return p
}

func (p *Publisher) Publish(_ context.Context, ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	select {
	case p.events <- ev:
	default:
		// queue full: drop rather than block the request
		observability.IncQueryEvent("dropped")
	}
}

// Close drains queued events and closes the producer.
func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("queryevents: close producer: %w", err)
	}
	<-p.errDone
	return nil
}
