package bingx

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"bingx-relay/internal/alert"
)

// MaxClockSkew is the drift past which signed requests risk rejection.
const MaxClockSkew = time.Second

func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, pathServerTime, nil, AuthNone)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := parseServerTime(raw)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "decode server time")
	}
	return ts, nil
}

// ClockSkew is server time minus the local midpoint of the round trip.
func (c *Client) ClockSkew(ctx context.Context) (time.Duration, error) {
	before := c.now()
	server, err := c.ServerTime(ctx)
	if err != nil {
		return 0, err
	}
	after := c.now()
	mid := before.Add(after.Sub(before) / 2)
	return server.Sub(mid), nil
}

// CheckClockSkew measures the skew once and warns when it exceeds
// MaxClockSkew. It never changes how later requests are timestamped.
func (c *Client) CheckClockSkew(ctx context.Context) (time.Duration, error) {
	skew, err := c.ClockSkew(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("clock skew check failed")
		return 0, err
	}
	if skew > MaxClockSkew || skew < -MaxClockSkew {
		c.log.Warn().Dur("skew", skew).Msg("local clock drifts from exchange time")
		c.raise(alert.ClockSkew{Skew: skew, Limit: MaxClockSkew})
		return skew, nil
	}
	c.log.Info().Dur("skew", skew).Msg("clock skew ok")
	return skew, nil
}
