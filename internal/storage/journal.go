// Package storage persists trade submissions and the local session.
package storage

import (
	"context"

	"github.com/mselser95/marketview/internal/gate"
)

// Journal records trade submission results.
type Journal interface {
	// Record stores one submission result.
	Record(ctx context.Context, result *gate.Result) error

	// Close releases the journal's resources.
	Close() error
}

// NopJournal discards every record.
type NopJournal struct{}

// Record implements Journal.
func (NopJournal) Record(context.Context, *gate.Result) error { return nil }

// Close implements Journal.
func (NopJournal) Close() error { return nil }
