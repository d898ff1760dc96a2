// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package board

import (
	"context"
	"sync"
	"time"

	"github.com/danjacques/goledstrip/support/logging"

	"github.com/beevik/ntp"
	"github.com/pkg/errors"
)

// NTP synchronization defaults.
const (
	// DefaultNTPServer is the default NTP server.
	DefaultNTPServer = "pool.ntp.org"
	// DefaultNTPRetries is the default number of NTP query attempts.
	DefaultNTPRetries = 15
	// DefaultNTPRetryInterval is the default delay between NTP query attempts.
	DefaultNTPRetryInterval = 2 * time.Second
)

// Clock is a board's wall clock.
type Clock interface {
	// Sync synchronizes the clock with its time source.
	Sync(ctx context.Context) error
	// Synced returns true once the clock has been synchronized.
	Synced() bool
	// Now returns the current time.
	Now() time.Time
}

// LocalClock is a Clock backed by the host's clock, which is assumed to be
// kept synchronized by the host.
type LocalClock struct {
	// Location is the clock's time zone. If nil, UTC is used.
	Location *time.Location

	// NowFunc, if not nil, is used in place of time.Now.
	NowFunc func() time.Time

	mu     sync.Mutex
	synced bool
}

var _ Clock = (*LocalClock)(nil)

// Sync implements Clock.
func (lc *LocalClock) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.synced = true
	return nil
}

// Synced implements Clock.
func (lc *LocalClock) Synced() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.synced
}

// Now implements Clock.
func (lc *LocalClock) Now() time.Time {
	now := time.Now
	if lc.NowFunc != nil {
		now = lc.NowFunc
	}

	loc := lc.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// NTPClock is a Clock that is synchronized with an NTP server. Until it is
// synchronized, it reports the host's time.
type NTPClock struct {
	// Server is the NTP server to query. If empty, DefaultNTPServer is used.
	Server string
	// Retries is the number of query attempts made by Sync. If <= 0,
	// DefaultNTPRetries is used.
	Retries int
	// RetryInterval is the delay between query attempts. If <= 0,
	// DefaultNTPRetryInterval is used.
	RetryInterval time.Duration
	// Location is the clock's time zone. If nil, UTC is used.
	Location *time.Location

	// Query, if not nil, is used in place of ntp.Query.
	Query func(host string) (*ntp.Response, error)
	// NowFunc, if not nil, is used in place of time.Now.
	NowFunc func() time.Time
	// Logger, if not nil, is the logger to use.
	Logger logging.L

	mu     sync.Mutex
	synced bool
	offset time.Duration
}

var _ Clock = (*NTPClock)(nil)

// Sync implements Clock. It queries the server until a valid response is
// received, the attempts are exhausted, or ctx is cancelled.
func (nc *NTPClock) Sync(ctx context.Context) error {
	logger := logging.Must(nc.Logger)

	server := nc.Server
	if server == "" {
		server = DefaultNTPServer
	}
	retries := nc.Retries
	if retries <= 0 {
		retries = DefaultNTPRetries
	}
	interval := nc.RetryInterval
	if interval <= 0 {
		interval = DefaultNTPRetryInterval
	}
	query := nc.Query
	if query == nil {
		query = ntp.Query
	}

	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		var resp *ntp.Response
		if resp, err = query(server); err == nil {
			err = resp.Validate()
		}
		if err != nil {
			logger.Debugf("NTP query %d/%d to %q failed: %s", attempt, retries, server, err)
			continue
		}

		nc.mu.Lock()
		nc.offset = resp.ClockOffset
		nc.synced = true
		nc.mu.Unlock()

		logger.Infof("Synchronized clock with %q (offset %s).", server, resp.ClockOffset)
		return nil
	}
	return errors.Wrapf(err, "synchronizing with %q after %d attempt(s)", server, retries)
}

// Synced implements Clock.
func (nc *NTPClock) Synced() bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.synced
}

// Now implements Clock.
func (nc *NTPClock) Now() time.Time {
	now := time.Now
	if nc.NowFunc != nil {
		now = nc.NowFunc
	}

	loc := nc.Location
	if loc == nil {
		loc = time.UTC
	}

	nc.mu.Lock()
	offset := nc.offset
	nc.mu.Unlock()
	return now().Add(offset).In(loc)
}
