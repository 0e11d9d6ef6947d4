// Package broadcaster publishes the outbox to Kafka: every stored event
// batch is sent once to the events topic, in sequence order.
package broadcaster

import (
	"context"
	"encoding/binary"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"matchbook/infra/codec"
	exitwal "matchbook/infra/wal/exit"
)

const seqHeader = "seq"

type Broadcaster struct {
	exitWAL  *exitwal.ExitWAL
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

// ------------------------------------------------
// CONSTRUCTORS
// ------------------------------------------------

// NewSyncProducer dials brokers with acknowledgements from all in-sync
// replicas.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_8_0_0

	return sarama.NewSyncProducer(brokers, cfg)
}

func New(
	exitWAL *exitwal.ExitWAL,
	producer sarama.SyncProducer,
	topic string,
	interval time.Duration,
	log *zap.Logger,
) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		exitWAL:  exitWAL,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log.Named("broadcaster"),
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run publishes pending batches every interval until ctx ends.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("started", zap.String("topic", b.topic))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return

		case <-ticker.C:
			if _, err := b.ReplayOnce(); err != nil {
				b.log.Warn("publish pass interrupted", zap.Error(err))
			}
		}
	}
}

// ------------------------------------------------
// REPLAY LOGIC
// ------------------------------------------------

// ReplayOnce publishes every pending batch in sequence order and returns
// how many were acknowledged. The first failed send ends the pass so that
// batches never overtake each other; the failed one is retried on the next
// pass. A batch sent but not yet acknowledged when the process died is
// sent again, so consumers deduplicate on the seq header.
func (b *Broadcaster) ReplayOnce() (int, error) {
	sent := 0
	err := b.exitWAL.ScanPending(func(rec *exitwal.ExitRecord) error {
		if err := b.exitWAL.MarkSent(rec.Seq); err != nil {
			return err
		}

		if _, _, err := b.producer.SendMessage(b.message(rec)); err != nil {
			if merr := b.exitWAL.MarkFailed(rec.Seq); merr != nil {
				b.log.Error("mark failed", zap.Uint64("seq", rec.Seq), zap.Error(merr))
			}
			return err
		}

		if err := b.exitWAL.MarkAcked(rec.Seq); err != nil {
			return err
		}
		sent++
		return nil
	})
	return sent, err
}

// message keys the batch by symbol so that one symbol stays on one
// partition.
func (b *Broadcaster) message(rec *exitwal.ExitRecord) *sarama.ProducerMessage {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], rec.Seq)

	msg := &sarama.ProducerMessage{
		Topic:   b.topic,
		Value:   sarama.ByteEncoder(rec.Payload),
		Headers: []sarama.RecordHeader{{Key: []byte(seqHeader), Value: seq[:]}},
	}
	if batch, err := codec.DecodeBatch(rec.Payload); err == nil {
		msg.Key = sarama.StringEncoder(strconv.FormatInt(int64(batch.Symbol), 10))
	} else {
		b.log.Warn("undecodable batch published without key", zap.Uint64("seq", rec.Seq), zap.Error(err))
	}
	return msg
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
