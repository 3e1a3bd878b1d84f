// Package ledger defines the persistent store of the UTXO lifetime ledger: one record per spendable
// output, keyed by outpoint, holding its creation height and, once spent, its spend height.
package ledger

import (
	"context"

	"github.com/bsv-blockchain/utxo-ttl/model"
)

// Store is the persistent keyed store behind the ledger builder.
//
// InsertIgnoring and UpdateSpendHeight each apply their whole batch as one atomic unit: either every
// row is written or, on error, none is.
type Store interface {
	// Health returns an http status code and a short description of the store.
	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	// InsertIgnoring inserts records, silently skipping any whose outpoint already exists.
	InsertIgnoring(ctx context.Context, records []*model.Record) error

	// UpdateSpendHeight sets spend_height to height for every outpoint that has a record.
	// Outpoints without a record are ignored.
	UpdateSpendHeight(ctx context.Context, outpoints []model.Outpoint, height uint32) error

	// Get returns the record of outpoint or an ERR_NOT_FOUND error.
	Get(ctx context.Context, outpoint model.Outpoint) (*model.Record, error)

	// Count returns the number of records.
	Count(ctx context.Context) (uint64, error)

	// Summary aggregates the records per script category, ordered by category.
	Summary(ctx context.Context) ([]*model.CategorySummary, error)

	Close() error
}

// Options are shared by all store implementations.
type Options struct {
	// FirstSpendWins makes UpdateSpendHeight leave records that already have a spend height untouched.
	// The default overwrites unconditionally.
	FirstSpendWins bool
}

type Option func(*Options)

func WithFirstSpendWins(firstSpendWins bool) Option {
	return func(o *Options) {
		o.FirstSpendWins = firstSpendWins
	}
}

func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}

	return o
}
