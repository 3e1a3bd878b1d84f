// Package logger decorates a ledger store with a log line per call, enabled with logging=true on the store url.
package logger

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
)

// maxLoggedOutpoints caps how many outpoints of a batch are printed.
const maxLoggedOutpoints = 5

type Store struct {
	logger ulogger.Logger
	store  ledger.Store
}

func New(logger ulogger.Logger, store ledger.Store) ledger.Store {
	return &Store{
		logger: logger,
		store:  store,
	}
}

func caller() string {
	var callers []string

	depth := 3

	for i := 0; i < depth; i++ {
		pc, file, line, ok := runtime.Caller(2 + i)
		if !ok {
			break
		}

		// keep the last two folders, the full path is too long to read
		folders := strings.Split(file, string(filepath.Separator))
		if len(folders) > 3 {
			folders = folders[len(folders)-3:]
		}

		file = filepath.Join(folders...)

		funcName := runtime.FuncForPC(pc).Name()
		funcPaths := strings.Split(funcName, "/")
		funcName = funcPaths[len(funcPaths)-1]

		callers = append(callers, fmt.Sprintf("called from %s: %s:%d", funcName, file, line))
	}

	return strings.Join(callers, ",")
}

func outpointsString(outpoints []model.Outpoint) string {
	n := len(outpoints)
	if n > maxLoggedOutpoints {
		n = maxLoggedOutpoints
	}

	parts := make([]string, 0, n+1)
	for _, op := range outpoints[:n] {
		parts = append(parts, op.String())
	}

	if len(outpoints) > n {
		parts = append(parts, fmt.Sprintf("... %d more", len(outpoints)-n))
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

func (s *Store) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	status, details, err := s.store.Health(ctx, checkLiveness)
	s.logger.Infof("[LedgerStore][logger][Health] status %d details %s err %v : %s", status, details, err, caller())

	return status, details, err
}

func (s *Store) InsertIgnoring(ctx context.Context, records []*model.Record) error {
	start := time.Now()
	err := s.store.InsertIgnoring(ctx, records)

	outpoints := make([]model.Outpoint, 0, maxLoggedOutpoints)
	for i := 0; i < len(records) && i < maxLoggedOutpoints; i++ {
		outpoints = append(outpoints, records[i].Outpoint)
	}

	more := ""
	if len(records) > maxLoggedOutpoints {
		more = fmt.Sprintf(" (+%d)", len(records)-maxLoggedOutpoints)
	}

	s.logger.Infof("[LedgerStore][logger][InsertIgnoring] %d records %s%s in %s err %v : %s",
		len(records), outpointsString(outpoints), more, time.Since(start), err, caller())

	return err
}

func (s *Store) UpdateSpendHeight(ctx context.Context, outpoints []model.Outpoint, height uint32) error {
	start := time.Now()
	err := s.store.UpdateSpendHeight(ctx, outpoints, height)

	s.logger.Infof("[LedgerStore][logger][UpdateSpendHeight] height %d, %d outpoints %s in %s err %v : %s",
		height, len(outpoints), outpointsString(outpoints), time.Since(start), err, caller())

	return err
}

func (s *Store) Get(ctx context.Context, outpoint model.Outpoint) (*model.Record, error) {
	record, err := s.store.Get(ctx, outpoint)

	recordStr := "<nil>"
	if record != nil {
		recordStr = record.String()
	}

	s.logger.Infof("[LedgerStore][logger][Get] outpoint %s record %s err %v : %s", outpoint, recordStr, err, caller())

	return record, err
}

func (s *Store) Count(ctx context.Context) (uint64, error) {
	count, err := s.store.Count(ctx)
	s.logger.Infof("[LedgerStore][logger][Count] %d err %v : %s", count, err, caller())

	return count, err
}

func (s *Store) Summary(ctx context.Context) ([]*model.CategorySummary, error) {
	summaries, err := s.store.Summary(ctx)
	s.logger.Infof("[LedgerStore][logger][Summary] %d categories err %v : %s", len(summaries), err, caller())

	return summaries, err
}

func (s *Store) Close() error {
	err := s.store.Close()
	s.logger.Infof("[LedgerStore][logger][Close] err %v : %s", err, caller())

	return err
}
