// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package board

import (
	"context"
	"sync"
	"time"

	"github.com/danjacques/goledstrip/support/logging"
	"github.com/danjacques/goledstrip/support/network"

	"github.com/pkg/errors"
)

// NetworkEvent is an unsolicited network failure.
type NetworkEvent int

const (
	// FailToConnect means the network could not be found.
	FailToConnect NetworkEvent = iota
	// BeaconTimeout means an established link was lost.
	BeaconTimeout
	// FailUnknown is any other network failure.
	FailUnknown
)

func (e NetworkEvent) String() string {
	switch e {
	case FailToConnect:
		return "FailToConnect"
	case BeaconTimeout:
		return "BeaconTimeout"
	case FailUnknown:
		return "FailUnknown"
	default:
		return "Unknown"
	}
}

// ErrOffline is returned by Offline's Connect.
var ErrOffline = errors.New("network is offline")

// Network is a board's network link.
type Network interface {
	// Connect establishes the link, blocking until it is up or ctx is done.
	Connect(ctx context.Context) error
	// Connected returns true if the link is up.
	Connected() bool
	// Events returns a channel that receives unsolicited failures.
	Events() <-chan NetworkEvent
	// Close tears the link down.
	Close() error
}

// Offline is a Network that never connects.
type Offline struct{}

var _ Network = Offline{}

// Connect implements Network.
func (Offline) Connect(context.Context) error { return ErrOffline }

// Connected implements Network.
func (Offline) Connected() bool { return false }

// Events implements Network. The returned channel never receives.
func (Offline) Events() <-chan NetworkEvent { return nil }

// Close implements Network.
func (Offline) Close() error { return nil }

// DefaultPollInterval is the default interval at which a HostNetwork checks
// its link.
const DefaultPollInterval = time.Second

// HostNetwork is a Network backed by one of the host's network interfaces.
//
// The link is up while a matching interface has an IPv4 address.
type HostNetwork struct {
	// Options selects the interface.
	Options network.InterfaceOptions
	// PollInterval is the link check interval. If zero, DefaultPollInterval is
	// used.
	PollInterval time.Duration
	// Logger, if not nil, is the logger to use.
	Logger logging.L

	// resolve is used in place of network.ResolveInterface if not nil.
	resolve func(network.InterfaceOptions) (*network.Link, error)

	initOnce sync.Once
	eventsC  chan NetworkEvent

	mu       sync.Mutex
	link     *network.Link
	cancelFn context.CancelFunc
	doneC    chan struct{}
}

var _ Network = (*HostNetwork)(nil)

const eventBufferSize = 8

func (hn *HostNetwork) init() {
	hn.initOnce.Do(func() {
		hn.eventsC = make(chan NetworkEvent, eventBufferSize)
	})
}

func (hn *HostNetwork) pollInterval() time.Duration {
	if hn.PollInterval > 0 {
		return hn.PollInterval
	}
	return DefaultPollInterval
}

func (hn *HostNetwork) resolveLink() (*network.Link, error) {
	if hn.resolve != nil {
		return hn.resolve(hn.Options)
	}
	return network.ResolveInterface(hn.Options)
}

// Connect implements Network.
//
// Connect polls for a matching interface until one is found or ctx is done.
// If none is found, a FailToConnect event is posted. Once connected, the link
// is watched in the background, and a BeaconTimeout is posted if it is lost.
func (hn *HostNetwork) Connect(ctx context.Context) error {
	hn.init()
	logger := logging.Must(hn.Logger)

	hn.mu.Lock()
	connected := hn.link != nil
	hn.mu.Unlock()
	if connected {
		logger.Warnf("Network is already connected.")
		return nil
	}

	t := time.NewTicker(hn.pollInterval())
	defer t.Stop()

	for {
		link, err := hn.resolveLink()
		switch {
		case err == nil:
			hn.connected(link)
			logger.Infof("Connected to network: %s", link)
			return nil

		case errors.Cause(err) != network.ErrNoInterface:
			hn.post(FailUnknown)
			return errors.Wrap(err, "resolving network interface")
		}

		select {
		case <-ctx.Done():
			hn.post(FailToConnect)
			return errors.Wrap(ctx.Err(), "waiting for network interface")
		case <-t.C:
		}
	}
}

func (hn *HostNetwork) connected(link *network.Link) {
	ctx, cancel := context.WithCancel(context.Background())
	doneC := make(chan struct{})

	hn.mu.Lock()
	if hn.cancelFn != nil {
		// A previous watcher that lost its link.
		hn.cancelFn()
	}
	hn.link, hn.cancelFn, hn.doneC = link, cancel, doneC
	hn.mu.Unlock()

	go func() {
		defer close(doneC)
		hn.watch(ctx)
	}()
}

func (hn *HostNetwork) watch(ctx context.Context) {
	t := time.NewTicker(hn.pollInterval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		if _, err := hn.resolveLink(); err != nil {
			logging.Must(hn.Logger).Warnf("Lost network link: %s", err)
			hn.mu.Lock()
			hn.link = nil
			hn.mu.Unlock()

			if errors.Cause(err) == network.ErrNoInterface {
				hn.post(BeaconTimeout)
			} else {
				hn.post(FailUnknown)
			}
			return
		}
	}
}

// post delivers e without blocking. If no one is reading events, e is dropped.
func (hn *HostNetwork) post(e NetworkEvent) {
	select {
	case hn.eventsC <- e:
	default:
	}
}

// Connected implements Network.
func (hn *HostNetwork) Connected() bool {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	return hn.link != nil
}

// Link returns the connected link, or nil if not connected.
func (hn *HostNetwork) Link() *network.Link {
	hn.mu.Lock()
	defer hn.mu.Unlock()
	return hn.link
}

// Events implements Network.
func (hn *HostNetwork) Events() <-chan NetworkEvent {
	hn.init()
	return hn.eventsC
}

// Close implements Network, stopping the link watcher.
func (hn *HostNetwork) Close() error {
	hn.mu.Lock()
	cancel, doneC := hn.cancelFn, hn.doneC
	hn.link, hn.cancelFn, hn.doneC = nil, nil, nil
	hn.mu.Unlock()

	if cancel != nil {
		cancel()
		<-doneC
	}
	return nil
}
