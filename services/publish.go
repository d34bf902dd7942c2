package services

import (
	"strconv"

	"github.com/Kariqs/greenleaf-api/events"
	"github.com/sirupsen/logrus"
)

// publish keys events by aggregate id. Broker failures are logged and never
// fail the request that produced the event.
func publish(p events.Publisher, logger *logrus.Logger, topic string, id uint, data interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(topic, strconv.FormatUint(uint64(id), 10), data); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"topic": topic,
			"id":    id,
		}).Warn("Failed to publish event")
	}
}
