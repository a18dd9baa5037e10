package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/recoverable/core"
)

var (
	creator      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	user         = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	recoveryUser = common.HexToAddress("0x00000000000000000000000000000000000000b3")
	randomUser   = common.HexToAddress("0x00000000000000000000000000000000000000d4")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []core.WalletEvent
	logouts []string
	fail    bool
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, address string, tokenID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.logouts = append(p.logouts, tokenID)
	return nil
}

func (p *recordingPublisher) PublishWalletEvent(ctx context.Context, event core.WalletEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []core.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
