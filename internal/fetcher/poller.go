package fetcher

import (
	"context"
	"time"

	"github.com/openskynetwork/opensky-api/internal/model"
	"github.com/openskynetwork/opensky-api/internal/throttle"
)

// PollContinuously fetches q once right away and then every interval until
// ctx is done. callback receives every non-nil snapshot. Failed and
// throttled polls are logged and skipped.
//
// An interval at or below the throttle threshold makes every poll after
// the first one a no-op, since denied attempts also reset the window.
func (c *OpenSkyClient) PollContinuously(ctx context.Context, interval time.Duration, q StatesQuery, callback func(*model.StatesSnapshot)) {
	if interval <= throttle.AllStatesPolicy.Authenticated ||
		(!c.Authenticated() && interval <= throttle.AllStatesPolicy.Anonymous) {
		c.logger.Warn("Poll interval does not exceed the rate limit, most polls will be throttled", "interval", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("Starting continuous polling of OpenSky API", "interval", interval)

	for {
		c.pollOnce(ctx, q, callback)

		select {
		case <-ctx.Done():
			c.logger.Info("Stopping OpenSky polling")
			return
		case <-ticker.C:
		}
	}
}

func (c *OpenSkyClient) pollOnce(ctx context.Context, q StatesQuery, callback func(*model.StatesSnapshot)) {
	res, err := c.FetchStates(ctx, q)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("Failed to fetch states during polling", "error", err)
		}
		return
	}
	if !res.Issued {
		return
	}
	if res.Snapshot != nil && callback != nil {
		callback(res.Snapshot)
	}
}
