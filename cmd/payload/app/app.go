// Package app wires the payload controller's collaborators together and
// drives the single event loop that fans the MAVLink node's shared event
// channel out to the telemetry subscriber and the command dispatcher.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/bluenviron/gomavlib/v3"

	"github.com/skyward-avionics/sdr-payload/internal/config"
)

// Run builds every collaborator from cfg and blocks until ctx is cancelled,
// then tears them down in reverse dependency order.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	c, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("payload controller started")
	runEventLoop(ctx, c, logger)
	logger.Info("payload controller stopping")
	return nil
}

// runEventLoop owns the node's event channel. A gomavlib.Node only exposes
// one Events() channel, and a channel can only be drained by a single
// reader, so this loop is the sole consumer: every frame is handed first to
// the telemetry subscriber (HandleEvent), which is cheap and never blocks,
// and then to the command dispatcher. The dispatcher itself runs on its own
// goroutine per frame: a ListRecords/ListTags/ListDataPages reply can take
// many paced DATA96 frames to send, and running that inline here would stall
// every other event and starve the ticker.C case below, so CheckLinkTimeout
// would never fire for the duration of one paginated reply.
func runEventLoop(ctx context.Context, c *components, logger *slog.Logger) {
	timeout := time.Duration(c.deviceTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ticker := time.NewTicker(timeout / 4)
	defer ticker.Stop()

	events := c.node.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.tel.HandleEvent(ctx, evt)
			if fe, ok := evt.(*gomavlib.EventFrame); ok {
				go c.dispatcher.HandleFrame(ctx, fe)
			}
		case <-ticker.C:
			c.tel.CheckLinkTimeout(timeout)
		}
	}
}
