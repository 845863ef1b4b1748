package queryevents

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
)

func TestPublisher_SendsJSONEvent(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Errors = true
	prod := mocks.NewAsyncProducer(t, cfg)

	var got Event
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "risk-queries" {
			t.Errorf("topic=%s", msg.Topic)
		}
		b, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		return json.Unmarshal(b, &got)
	})

	p := NewWithProducer(prod, "risk-queries", 4, nil)
	p.Publish(context.Background(), Event{
		Kind:      KindRiskQuery,
		Label:     "Miami, FL",
		Lat:       25.76,
		Lng:       -80.19,
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
	})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got.Kind != KindRiskQuery || got.Label != "Miami, FL" || got.EndDate != "2024-01-31" {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.TS.IsZero() || time.Since(got.TS) > time.Minute {
		t.Fatalf("timestamp not set: %v", got.TS)
	}
}

func TestPublisher_ProducerErrorDoesNotBlock(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Errors = true
	prod := mocks.NewAsyncProducer(t, cfg)
	prod.ExpectInputAndFail(sarama.ErrOutOfBrokers)
	prod.ExpectInputAndSucceed()

	p := NewWithProducer(prod, "risk-queries", 4, nil)
	p.Publish(context.Background(), Event{Kind: KindDrivers})
	p.Publish(context.Background(), Event{Kind: KindDrivers})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNop(t *testing.T) {
	var s Sink = Nop{}
	s.Publish(context.Background(), Event{})
}
