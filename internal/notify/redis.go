package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tunneld/config"
	"tunneld/util"
)

// RedisChannel delivers tunnel notifications over a Redis pub/sub
// topic.  The on-device broker republishes cloud-side notify messages
// to the topic returned by Topic, so from this core's point of view
// delivery is at-least-once and may repeat.
type RedisChannel struct {
	client *redis.Client
	log    *util.Logger
	pubsub *redis.PubSub
}

// NewRedisChannel connects to the broker configured in cfg.
func NewRedisChannel(cfg *config.Config, log *util.Logger) *RedisChannel {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.BrokerAddr,
		Password: cfg.BrokerPassword,
		DB:       cfg.BrokerDB,
	})
	return &RedisChannel{client: client, log: log}
}

// Subscribe joins the device's notification topic and dispatches each
// decoded payload to h on the receive goroutine.  It returns once the
// broker has confirmed the subscription.
func (c *RedisChannel) Subscribe(ctx context.Context, thingName string, h Handler) error {
	topic := Topic(thingName)
	pubsub := c.client.Subscribe(ctx, topic)

	// Receive forces the SUBSCRIBE round trip so a dead broker fails
	// here instead of silently delivering nothing.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.pubsub = pubsub
	c.log.Debug("subscribed to %s", topic)

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				// Drop the broker subscription with the context; Close on
				// the channel only has the client left to tear down.
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					c.log.Error("malformed tunnel notification: %v", err)
					continue
				}
				h(n)
			}
		}
	}()

	return nil
}

// Close tears down the subscription and the broker connection.
func (c *RedisChannel) Close() error {
	if c.pubsub != nil {
		_ = c.pubsub.Close()
	}
	return c.client.Close()
}
