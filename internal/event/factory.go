package event

import (
	"fmt"

	"libshare/internal/config"
	"libshare/internal/libshare"
)

// NewSinkFromConfig creates an EventSink implementation based on the
// events config type.
func NewSinkFromConfig(cfg config.EventsConfig, logger libshare.Logger) (libshare.EventSink, error) {
	switch cfg.Type {
	case "none", "":
		return libshare.NopSink{}, nil
	case "log":
		return NewLogSink(logger), nil
	case "amqp":
		if cfg.AMQPURL == "" {
			return nil, fmt.Errorf("amqp events require amqp_url to be set")
		}
		queue := cfg.AMQPQueue
		if queue == "" {
			queue = "libshare.events"
		}
		return NewAMQPSink(cfg.AMQPURL, queue)
	default:
		return nil, fmt.Errorf("unknown events type: %s", cfg.Type)
	}
}
