// Package broadcaster drains the fill outbox to Kafka. Delivery is
// at-least-once: a record is marked SENT before the publish attempt and
// ACKED only after the broker confirms, so a crash replays rather than
// drops.
package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"apexlob/infra/outbox"
)

// producer is the slice of sarama.SyncProducer the broadcaster needs.
type producer interface {
	SendMessage(*sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type Broadcaster struct {
	outbox   *outbox.Outbox
	producer producer
	topic    string
	interval time.Duration
	logger   *zap.Logger
}

func New(
	ob *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
	logger *zap.Logger,
) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		outbox:   ob,
		producer: p,
		topic:    topic,
		interval: interval,
		logger:   logger.Named("broadcaster"),
	}, nil
}

func (b *Broadcaster) Run(ctx context.Context) {
	b.logger.Info("started", zap.String("topic", b.topic))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

// drainOnce republishes anything stuck in SENT from a previous crash,
// then pushes out the new records.
func (b *Broadcaster) drainOnce() {
	for _, state := range []outbox.State{outbox.StateSent, outbox.StateNew} {
		_ = b.outbox.ScanByState(state, func(seq uint64, rec outbox.Record) error {
			b.publish(seq, rec)
			return nil
		})
	}
}

func (b *Broadcaster) publish(seq uint64, rec outbox.Record) {
	if rec.State == outbox.StateNew {
		if err := b.outbox.MarkSent(seq); err != nil {
			b.logger.Warn("mark sent failed", zap.Uint64("seq", seq), zap.Error(err))
			return
		}
	}

	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(seq, 10)),
		Value: sarama.ByteEncoder(rec.Payload),
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		// Left in SENT; the next pass retries.
		b.logger.Warn("publish failed", zap.Uint64("seq", seq), zap.Error(err))
		return
	}

	if err := b.outbox.MarkAcked(seq); err != nil {
		b.logger.Warn("mark acked failed", zap.Uint64("seq", seq), zap.Error(err))
		return
	}
	_ = b.outbox.Delete(seq)
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
