package events

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const (
	OrderCreatedTopic          = "order.created"
	OrderConfirmedTopic        = "order.confirmed"
	OrderStatusChangedTopic    = "order.status_changed"
	DeliveryAssignedTopic      = "delivery.assigned"
	DeliveryStatusChangedTopic = "delivery.status_changed"
)

type Envelope struct {
	Topic     string      `json:"topic"`
	Key       string      `json:"key"`
	Data      interface{} `json:"data"`
	EventTime time.Time   `json:"event_time"`
}

// StatusChange is the payload of the *.status_changed topics.
type StatusChange struct {
	ID   uint   `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Publisher emits order and delivery lifecycle events.
type Publisher interface {
	Publish(topic, key string, data interface{}) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func NewKafkaPublisher(brokers []string, logger *logrus.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewKafkaPublisherWithProducer(producer, logger), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) Publish(topic, key string, data interface{}) error {
	payload, err := json.Marshal(Envelope{
		Topic:     topic,
		Key:       key,
		Data:      data,
		EventTime: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"key":       key,
	}).Debug("Event published to Kafka")

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct {
	Logger *logrus.Logger
}

func (p NopPublisher) Publish(topic, key string, data interface{}) error {
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{"topic": topic, "key": key}).Debug("Event publishing disabled")
	}
	return nil
}

func (NopPublisher) Close() error { return nil }
