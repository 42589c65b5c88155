package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/yurie-chat/yurie/pkg/eventstream"
	"github.com/yurie-chat/yurie/pkg/eventstream/kafka"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ eventstream.Publisher = (*kafka.Publisher)(nil)

var _ = Describe("Publisher", func() {
	var (
		w *recordingWriter
		p *kafka.Publisher
	)

	BeforeEach(func() {
		w = &recordingWriter{}
		p = kafka.NewPublisherWithWriter(w)
	})

	It("requires brokers and a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
		Expect(err).To(MatchError(kafka.ErrNoBrokers))

		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())
	})

	It("builds a writer without dialing", func() {
		pub, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "yurie.turns"})
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.Close()).To(Succeed())
	})

	It("returns ErrNilTurnEvent for nil events", func() {
		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
		Expect(w.msgs).To(BeEmpty())
	})

	It("writes the event as JSON keyed by event id", func() {
		ev := eventstream.NewTurnEvent("/api/chat", "gpt-5", time.Now().Add(-time.Second))
		ev.Deltas = 3

		Expect(p.PublishTurn(context.Background(), ev)).To(Succeed())
		Expect(w.msgs).To(HaveLen(1))

		msg := w.msgs[0]
		Expect(string(msg.Key)).To(Equal(ev.EventID))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeTurnCompleted)}))

		var got eventstream.TurnEvent
		Expect(json.Unmarshal(msg.Value, &got)).To(Succeed())
		Expect(got.Route).To(Equal("/api/chat"))
		Expect(got.Deltas).To(Equal(3))
	})

	It("wraps writer errors", func() {
		w.err = errors.New("broker down")
		err := p.PublishTurn(context.Background(), eventstream.NewTurnEvent("/api/chat", "", time.Now()))
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
