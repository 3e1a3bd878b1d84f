// Package sql implements the ledger store on sqlite and postgres.
//
// The utxo table is keyed by (txid, vout). On sqlite the primary key is declared ON CONFLICT IGNORE,
// on postgres the insert carries ON CONFLICT DO NOTHING, so re-inserting an outpoint is a silent no-op
// on both engines. Each InsertIgnoring and UpdateSpendHeight call runs in a single database transaction.
package sql

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"strconv"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/bsv-blockchain/utxo-ttl/util"
	"github.com/bsv-blockchain/utxo-ttl/util/usql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	logger ulogger.Logger
	db     *usql.DB
	engine util.SQLEngine
	opts   *ledger.Options

	insertSQL string
	updateSQL string
}

// New opens the database behind storeURL and creates the utxo table if it does not exist.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings, storeURL *url.URL, opts ...ledger.Option) (*Store, error) {
	initPrometheusMetrics()

	engine, err := util.EngineFromURL(storeURL)
	if err != nil {
		return nil, err
	}

	db, err := util.InitSQLDB(logger, storeURL, tSettings)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	switch engine {
	case util.Postgres:
		err = createPostgresSchema(ctx, db)
	default:
		err = createSqliteSchema(ctx, db)
	}

	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		logger: logger,
		db:     db,
		engine: engine,
		opts:   ledger.NewOptions(opts...),
	}

	s.insertSQL = insertStatement(engine)
	s.updateSQL = updateStatement(s.opts.FirstSpendWins)

	return s, nil
}

func insertStatement(engine util.SQLEngine) string {
	q := `INSERT INTO utxo (txid, vout, script, amount, created_height, spend_height) VALUES ($1, $2, $3, $4, $5, $6)`
	if engine == util.Postgres {
		q += ` ON CONFLICT (txid, vout) DO NOTHING`
	}

	return q
}

func updateStatement(firstSpendWins bool) string {
	q := `UPDATE utxo SET spend_height = $1 WHERE txid = $2 AND vout = $3`
	if firstSpendWins {
		q += ` AND spend_height IS NULL`
	}

	return q
}

func (s *Store) Health(ctx context.Context, _ bool) (int, string, error) {
	details := "SQL Engine is " + string(s.engine)

	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, details, errors.NewStorageUnavailableError("ping failed", err)
	}

	return http.StatusOK, details, nil
}

func (s *Store) InsertIgnoring(ctx context.Context, records []*model.Record) error {
	if len(records) == 0 {
		return nil
	}

	prometheusLedgerInsert.Inc()

	err := s.inTransaction(ctx, s.insertSQL, func(stmt *usql.Stmt) error {
		for _, r := range records {
			var spendHeight interface{}
			if r.SpendHeight != nil {
				spendHeight = int64(*r.SpendHeight)
			}

			if _, err := stmt.ExecContext(ctx, r.Outpoint.TxID[:], int64(r.Outpoint.Vout), int64(r.Category), r.Amount, int64(r.CreatedHeight), spendHeight); err != nil {
				return errors.NewStorageError("failed to insert %s", r.Outpoint, err)
			}
		}

		return nil
	})
	if err != nil {
		prometheusLedgerErrors.WithLabelValues("InsertIgnoring", errorLabel(err)).Inc()
		return err
	}

	prometheusLedgerInsertRecords.Add(float64(len(records)))

	return nil
}

func (s *Store) UpdateSpendHeight(ctx context.Context, outpoints []model.Outpoint, height uint32) error {
	if len(outpoints) == 0 {
		return nil
	}

	prometheusLedgerUpdate.Inc()

	var updated int64

	err := s.inTransaction(ctx, s.updateSQL, func(stmt *usql.Stmt) error {
		for _, op := range outpoints {
			res, err := stmt.ExecContext(ctx, int64(height), op.TxID[:], int64(op.Vout))
			if err != nil {
				return errors.NewStorageError("failed to set spend height of %s", op, err)
			}

			if n, err := res.RowsAffected(); err == nil {
				updated += n
			}
		}

		return nil
	})
	if err != nil {
		prometheusLedgerErrors.WithLabelValues("UpdateSpendHeight", errorLabel(err)).Inc()
		return err
	}

	prometheusLedgerUpdateRecords.Add(float64(updated))

	return nil
}

// inTransaction prepares query inside a new transaction, hands it to fn and commits only if fn succeeds.
func (s *Store) inTransaction(ctx context.Context, query string, fn func(stmt *usql.Stmt) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("failed to begin transaction", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return errors.NewStorageError("failed to prepare statement", err)
	}

	if err = fn(stmt); err != nil {
		_ = stmt.Close()
		return err
	}

	if err = stmt.Close(); err != nil {
		return errors.NewStorageError("failed to close statement", err)
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit transaction", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, outpoint model.Outpoint) (*model.Record, error) {
	prometheusLedgerGet.Inc()

	q := `SELECT script, amount, created_height, spend_height FROM utxo WHERE txid = $1 AND vout = $2`

	var (
		script, createdHeight int
		amount                int64
		spendHeight           sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, q, outpoint.TxID[:], int64(outpoint.Vout)).Scan(&script, &amount, &createdHeight, &spendHeight)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("record %s not found", outpoint)
		}

		prometheusLedgerErrors.WithLabelValues("Get", errorLabel(err)).Inc()

		return nil, errors.NewStorageError("failed to get %s", outpoint, err)
	}

	record := &model.Record{
		Outpoint: outpoint,
		Category: model.ScriptCategory(script),
		Amount:   amount,
	}

	if record.CreatedHeight, err = safeconversion.IntToUint32(createdHeight); err != nil {
		return nil, errors.NewStorageError("invalid created_height for %s", outpoint, err)
	}

	if spendHeight.Valid {
		h, err := safeconversion.IntToUint32(int(spendHeight.Int64))
		if err != nil {
			return nil, errors.NewStorageError("invalid spend_height for %s", outpoint, err)
		}

		record.SpendHeight = &h
	}

	return record, nil
}

func (s *Store) Count(ctx context.Context) (uint64, error) {
	var count int

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM utxo`).Scan(&count); err != nil {
		return 0, errors.NewStorageError("failed to count records", err)
	}

	return safeconversion.IntToUint64(count)
}

func (s *Store) Summary(ctx context.Context) ([]*model.CategorySummary, error) {
	q := `
		SELECT script
		      ,COUNT(*)
		      ,COUNT(spend_height)
		      ,COALESCE(SUM(amount), 0)
		      ,COALESCE(AVG(spend_height - created_height), 0)
		FROM utxo
		GROUP BY script
		ORDER BY script
	`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.NewStorageError("failed to summarize ledger", err)
	}

	defer rows.Close()

	var summaries []*model.CategorySummary

	for rows.Next() {
		var (
			script, records, spent int
			amount                 int64
			avgLifetime            float64
		)

		if err = rows.Scan(&script, &records, &spent, &amount, &avgLifetime); err != nil {
			return nil, errors.NewStorageError("failed to scan summary row", err)
		}

		summary := &model.CategorySummary{
			Category:    model.ScriptCategory(script),
			Amount:      amount,
			AvgLifetime: avgLifetime,
		}

		if summary.Records, err = safeconversion.IntToUint64(records); err != nil {
			return nil, errors.NewStorageError("invalid record count", err)
		}

		if summary.Spent, err = safeconversion.IntToUint64(spent); err != nil {
			return nil, errors.NewStorageError("invalid spent count", err)
		}

		summaries = append(summaries, summary)
	}

	if err = rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate summary rows", err)
	}

	return summaries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// errorLabel reduces a driver error to a low cardinality metric label.
func errorLabel(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name()
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_BUSY:
			return "busy"
		case sqlite3.SQLITE_FULL:
			return "full"
		default:
			return "sqlite_" + strconv.Itoa(sqliteErr.Code())
		}
	}

	var e *errors.Error
	if errors.As(err, &e) {
		return e.Code().String()
	}

	return "unknown"
}

func createPostgresSchema(ctx context.Context, db *usql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS utxo (
		   txid           BYTEA    NOT NULL
		  ,vout           BIGINT   NOT NULL
		  ,script         SMALLINT NOT NULL
		  ,amount         BIGINT   NOT NULL
		  ,created_height BIGINT   NOT NULL
		  ,spend_height   BIGINT
		  ,PRIMARY KEY (txid, vout)
		);
	`); err != nil {
		return errors.NewStorageError("could not create utxo table", err)
	}

	return nil
}

func createSqliteSchema(ctx context.Context, db *usql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS utxo (
		   txid           BLOB    NOT NULL
		  ,vout           INTEGER NOT NULL
		  ,script         INTEGER NOT NULL
		  ,amount         INTEGER NOT NULL
		  ,created_height INTEGER NOT NULL
		  ,spend_height   INTEGER
		  ,PRIMARY KEY (txid, vout) ON CONFLICT IGNORE
		);
	`); err != nil {
		return errors.NewStorageError("could not create utxo table", err)
	}

	return nil
}
