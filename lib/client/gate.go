package client

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// AdmissionGate serializes session opens. The portal allows a single
// live session per source address, so every client that shares an
// address must also share a gate: a permit is taken when a session is
// opened and only given back when it is closed.
//
// A nil gate performs no admission control, which is convenient in
// tests.
type AdmissionGate struct {
	sem *semaphore.Weighted
}

func NewAdmissionGate() *AdmissionGate {
	return &AdmissionGate{sem: semaphore.NewWeighted(1)}
}

func (g *AdmissionGate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	return g.sem.Acquire(ctx, 1)
}

func (g *AdmissionGate) Release() {
	if g == nil {
		return
	}
	g.sem.Release(1)
}

// DefaultGate is shared by all clients that do not inject their own.
var DefaultGate = NewAdmissionGate()
