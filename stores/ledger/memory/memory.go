// Package memory is an in-process ledger store backed by a swiss map, used by tests and for
// building small chains without a database.
package memory

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/dolthub/swiss"
)

type entry struct {
	category      model.ScriptCategory
	amount        int64
	createdHeight uint32
	spendHeight   uint32
	spent         bool
}

type Store struct {
	logger ulogger.Logger
	opts   *ledger.Options
	mu     sync.RWMutex
	m      *swiss.Map[model.Outpoint, entry]
}

func New(logger ulogger.Logger, opts ...ledger.Option) *Store {
	return &Store{
		logger: logger,
		opts:   ledger.NewOptions(opts...),
		// the swiss map uses a lot less memory than the standard map
		m: swiss.NewMap[model.Outpoint, entry](1024),
	}
}

func (s *Store) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "Memory Store", nil
}

// InsertIgnoring holds the write lock for the whole batch, so readers see all of it or none of it.
func (s *Store) InsertIgnoring(ctx context.Context, records []*model.Record) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStorageError("insert aborted", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if s.m.Has(r.Outpoint) {
			continue
		}

		e := entry{
			category:      r.Category,
			amount:        r.Amount,
			createdHeight: r.CreatedHeight,
		}

		if r.SpendHeight != nil {
			e.spendHeight = *r.SpendHeight
			e.spent = true
		}

		s.m.Put(r.Outpoint, e)
	}

	return nil
}

func (s *Store) UpdateSpendHeight(ctx context.Context, outpoints []model.Outpoint, height uint32) error {
	if err := ctx.Err(); err != nil {
		return errors.NewStorageError("update aborted", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range outpoints {
		e, ok := s.m.Get(op)
		if !ok {
			continue
		}

		if e.spent && s.opts.FirstSpendWins {
			continue
		}

		e.spendHeight = height
		e.spent = true
		s.m.Put(op, e)
	}

	return nil
}

func (s *Store) Get(_ context.Context, outpoint model.Outpoint) (*model.Record, error) {
	s.mu.RLock()
	e, ok := s.m.Get(outpoint)
	s.mu.RUnlock()

	if !ok {
		return nil, errors.NewNotFoundError("record %s not found", outpoint)
	}

	return e.record(outpoint), nil
}

func (s *Store) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return uint64(s.m.Count()), nil
}

func (s *Store) Summary(_ context.Context) ([]*model.CategorySummary, error) {
	byCategory := make(map[model.ScriptCategory]*model.CategorySummary)
	lifetimes := make(map[model.ScriptCategory]uint64)

	s.mu.RLock()
	s.m.Iter(func(_ model.Outpoint, e entry) (stop bool) {
		summary, ok := byCategory[e.category]
		if !ok {
			summary = &model.CategorySummary{Category: e.category}
			byCategory[e.category] = summary
		}

		summary.Records++
		summary.Amount += e.amount

		if e.spent {
			summary.Spent++
			lifetimes[e.category] += uint64(e.spendHeight) - uint64(e.createdHeight)
		}

		return false
	})
	s.mu.RUnlock()

	summaries := make([]*model.CategorySummary, 0, len(byCategory))

	for category, summary := range byCategory {
		if summary.Spent > 0 {
			summary.AvgLifetime = float64(lifetimes[category]) / float64(summary.Spent)
		}

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Category < summaries[j].Category
	})

	return summaries, nil
}

func (s *Store) Close() error {
	return nil
}

func (e entry) record(outpoint model.Outpoint) *model.Record {
	r := &model.Record{
		Outpoint:      outpoint,
		Category:      e.category,
		Amount:        e.amount,
		CreatedHeight: e.createdHeight,
	}

	if e.spent {
		h := e.spendHeight
		r.SpendHeight = &h
	}

	return r
}
