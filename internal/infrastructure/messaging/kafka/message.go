package kafka

import (
	"context"
	"time"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	Partition int
}

// MessageHandler processes one consumed message. A returned error triggers
// retries and, once exhausted, dead-lettering.
type MessageHandler func(ctx context.Context, msg *Message) error

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
	MaxMessageBytes   int
	Configs           map[string]string
}

// Config is the messaging.kafka configuration section.
type Config struct {
	Brokers          []string      `mapstructure:"brokers"`
	GroupID          string        `mapstructure:"group_id"`
	TopicPrefix      string        `mapstructure:"topic_prefix"`
	Acks             string        `mapstructure:"acks"`
	CompressionCodec string        `mapstructure:"compression"`
	MaxRetries       int           `mapstructure:"max_retries"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	EnsureTopics     bool          `mapstructure:"ensure_topics"`
	SASLEnabled      bool          `mapstructure:"sasl_enabled"`
	SASLMechanism    string        `mapstructure:"sasl_mechanism"`
	SASLUsername     string        `mapstructure:"sasl_username"`
	SASLPassword     string        `mapstructure:"sasl_password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	TLSCertPath      string        `mapstructure:"tls_cert_path"`
}

// Topics returns the prefixed topic names for this deployment.
func (c Config) Topics() Topics {
	return NewTopics(c.TopicPrefix)
}

func (c Config) ProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:          c.Brokers,
		Acks:             c.Acks,
		MaxRetries:       c.MaxRetries,
		CompressionCodec: c.CompressionCodec,
		WriteTimeout:     c.WriteTimeout,
		SASLEnabled:      c.SASLEnabled,
		SASLMechanism:    c.SASLMechanism,
		SASLUsername:     c.SASLUsername,
		SASLPassword:     c.SASLPassword,
		TLSEnabled:       c.TLSEnabled,
		TLSCertPath:      c.TLSCertPath,
	}
}

func (c Config) ConsumerConfig() ConsumerConfig {
	t := c.Topics()
	return ConsumerConfig{
		Brokers:       c.Brokers,
		GroupID:       c.GroupID,
		Topics:        []string{t.RunRequested},
		SASLEnabled:   c.SASLEnabled,
		SASLMechanism: c.SASLMechanism,
		SASLUsername:  c.SASLUsername,
		SASLPassword:  c.SASLPassword,
		TLSEnabled:    c.TLSEnabled,
		TLSCertPath:   c.TLSCertPath,
		RetryConfig: RetryConfig{
			MaxRetries:      c.MaxRetries,
			DeadLetterTopic: t.DeadLetter,
		},
	}
}
