package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
)

/* ========================================================================
 * Kafka Publisher
 * ========================================================================
 * Async sarama producer. Events are keyed by company id so one
 * tenant's audit trail stays ordered within a partition.
 * ======================================================================== */

// Config wires the event stream.
type Config struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Version string   `yaml:"version"`

	SASL struct {
		Enabled   bool   `yaml:"enabled"`
		Mechanism string `yaml:"mechanism"` // plain, scram-sha-256, scram-sha-512
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
	} `yaml:"sasl"`
}

// KafkaPublisher publishes audit events to one topic.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewKafkaPublisher connects the async producer and starts the
// result drain.
func NewKafkaPublisher(cfg Config, log *logger.Logger) (*KafkaPublisher, error) {
	saramaCfg, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnavailable, "create kafka producer", err)
	}

	p := &KafkaPublisher{producer: producer, topic: cfg.Topic, log: log}
	p.wg.Add(1)
	go p.drain()

	log.Info("event publisher started",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return p, nil
}

func (p *KafkaPublisher) drain() {
	defer p.wg.Done()
	successes := p.producer.Successes()
	errs := p.producer.Errors()
	for successes != nil || errs != nil {
		select {
		case _, ok := <-successes:
			if !ok {
				successes = nil
			}
		case perr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.log.Error("event publish failed",
				zap.String("topic", perr.Msg.Topic),
				zap.Error(perr.Err))
		}
	}
}

// Publish enqueues event. It never waits for the broker beyond ctx.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return errors.New(errors.ErrCodeUnavailable, "event publisher closed")
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "encode event", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(partitionKey(event)),
		Value: sarama.ByteEncoder(payload),
	}
	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending events and stops the drain.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	p.wg.Wait()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "close kafka producer", err)
	}
	p.log.Info("event publisher closed")
	return nil
}

func partitionKey(event Event) string {
	if event.CompanyID != nil {
		return strconv.FormatInt(*event.CompanyID, 10)
	}
	return "platform"
}

func buildSaramaConfig(cfg Config) (*sarama.Config, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Compression = sarama.CompressionSnappy

	if cfg.Version != "" {
		version, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidArgument, "invalid kafka version", err)
		}
		saramaCfg.Version = version
	}

	if cfg.SASL.Enabled {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = cfg.SASL.Username
		saramaCfg.Net.SASL.Password = cfg.SASL.Password
		switch cfg.SASL.Mechanism {
		case "scram-sha-256":
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{hashGeneratorFcn: sha256Fcn}
			}
		case "scram-sha-512":
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{hashGeneratorFcn: sha512Fcn}
			}
		default:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}

	return saramaCfg, nil
}
