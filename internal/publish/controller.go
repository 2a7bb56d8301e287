package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gridwatch/dayahead/internal/cache"
	"github.com/gridwatch/dayahead/internal/pricing"
)

// Transport is the retained-message broker connection the controller writes
// to. Retraction is a publish with an empty payload and the same retain flag.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool, qos byte) error
}

// Controller keeps the retained topic surface consistent across day
// boundaries. It reads its snapshot from the cache rather than the in-memory
// window so a restart with a cold window still publishes correctly.
type Controller struct {
	cache     cache.ObjectCache
	transport Transport
	prefix    string
	now       func() time.Time
}

func NewController(objCache cache.ObjectCache, transport Transport, topicPrefix string, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{cache: objCache, transport: transport, prefix: topicPrefix, now: now}
}

// RunCycle publishes the current window and retracts the day that fell out of
// it. New retained state always goes out before the old state is cleared, so
// a subscriber reconnecting mid-sequence observes at least one valid day.
// Any publish failure aborts the cycle before retraction; the next cycle
// re-runs the full sequence, which is safe because retained publishes
// overwrite.
func (c *Controller) RunCycle(ctx context.Context) error {
	today := c.now()
	twoDaysAgo := today.AddDate(0, 0, -2)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	tomorrowPayload, err := c.payload(ctx, tomorrow)
	if err != nil {
		return err
	}

	if tomorrowPayload != nil {
		if err := c.publishDay(ctx, today); err != nil {
			return err
		}
		if err := c.publish(ctx, tomorrow, tomorrowPayload); err != nil {
			return err
		}
		return c.retract(ctx, yesterday)
	}

	if err := c.publishDay(ctx, yesterday); err != nil {
		return err
	}
	if err := c.publishDay(ctx, today); err != nil {
		return err
	}
	return c.retract(ctx, twoDaysAgo)
}

func (c *Controller) payload(ctx context.Context, date time.Time) ([]byte, error) {
	raw, ok, err := c.cache.RetrieveObject(ctx, cache.PriceKey(date))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", date.Format(pricing.DateFormat), err)
	}
	if !ok {
		return nil, nil
	}
	return raw, nil
}

// publishDay publishes the cached object for date, skipping days the cache
// has never seen.
func (c *Controller) publishDay(ctx context.Context, date time.Time) error {
	payload, err := c.payload(ctx, date)
	if err != nil {
		return err
	}
	if payload == nil {
		slog.Debug("publish cycle: no cached object", "date", date.Format(pricing.DateFormat))
		return nil
	}
	return c.publish(ctx, date, payload)
}

func (c *Controller) publish(ctx context.Context, date time.Time, payload []byte) error {
	topic := c.topic(date)
	if err := c.transport.Publish(ctx, topic, payload, true, 1); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	slog.Info("published retained prices", "topic", topic, "bytes", len(payload))
	return nil
}

func (c *Controller) retract(ctx context.Context, date time.Time) error {
	topic := c.topic(date)
	if err := c.transport.Publish(ctx, topic, nil, true, 1); err != nil {
		return fmt.Errorf("retract %s: %w", topic, err)
	}
	slog.Info("retracted retained prices", "topic", topic)
	return nil
}

func (c *Controller) topic(date time.Time) string {
	return c.prefix + "/" + date.Format(pricing.DateFormat)
}
