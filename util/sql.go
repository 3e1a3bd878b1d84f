package util

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/bsv-blockchain/utxo-ttl/util/usql"
	"github.com/labstack/gommon/random"
)

type SQLEngine string

const (
	Postgres     SQLEngine = "postgres"
	Sqlite       SQLEngine = "sqlite"
	SqliteMemory SQLEngine = "sqlitememory"
	// SqliteFile is a sqlite database at an explicit filesystem path.
	SqliteFile SQLEngine = "file"
)

// EngineFromURL maps a store url scheme to the SQL engine that serves it.
func EngineFromURL(storeURL *url.URL) (SQLEngine, error) {
	switch SQLEngine(storeURL.Scheme) {
	case Postgres:
		return Postgres, nil
	case Sqlite, SqliteMemory, SqliteFile:
		return SQLEngine(storeURL.Scheme), nil
	}

	return "", errors.NewConfigurationError("db: unknown scheme: %s", storeURL.Scheme)
}

func InitSQLDB(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*usql.DB, error) {
	engine, err := EngineFromURL(storeURL)
	if err != nil {
		return nil, err
	}

	if engine == Postgres {
		return InitPostgresDB(logger, storeURL)
	}

	return InitSQLiteDB(logger, storeURL, tSettings)
}

func InitPostgresDB(logger ulogger.Logger, storeURL *url.URL) (*usql.DB, error) {
	dbHost := storeURL.Hostname()
	dbPort, _ := strconv.Atoi(storeURL.Port())

	if dbPort == 0 {
		dbPort = 5432
	}

	if len(storeURL.Path) < 2 {
		return nil, errors.NewConfigurationError("postgres url %s has no database name", storeURL.Redacted())
	}

	dbName := storeURL.Path[1:]
	dbUser := ""
	dbPassword := ""

	if storeURL.User != nil {
		dbUser = storeURL.User.Username()
		dbPassword, _ = storeURL.User.Password()
	}

	// Default sslmode to "disable"
	sslMode := "disable"

	queryParams := storeURL.Query()
	if val := queryParams.Get("sslmode"); val != "" {
		sslMode = val
	}

	dbInfo := fmt.Sprintf("user=%s password=%s dbname=%s sslmode=%s host=%s port=%d", dbUser, dbPassword, dbName, sslMode, dbHost, dbPort)

	db, err := usql.Open("postgres", dbInfo)
	if err != nil {
		return nil, errors.NewServiceError("failed to open postgres DB", err)
	}

	logger.Infof("Using postgres DB: %s@%s:%d/%s", dbUser, dbHost, dbPort, dbName)

	db.SetMaxIdleConns(queryInt(queryParams, "maxIdleConns", 10))
	db.SetMaxOpenConns(queryInt(queryParams, "maxOpenConns", 10))

	return db, nil
}

func InitSQLiteDB(logger ulogger.Logger, storeURL *url.URL, tSettings *settings.Settings) (*usql.DB, error) {
	var (
		filename string
		err      error
	)

	switch SQLEngine(storeURL.Scheme) {
	case SqliteMemory:
		filename = fmt.Sprintf("file:%s?mode=memory&cache=shared", random.String(16))

	case SqliteFile:
		filename, err = filepath.Abs(storeURL.Path)
		if err != nil {
			return nil, errors.NewServiceError("failed to get absolute path for sqlite DB", err)
		}

		if err = os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			return nil, errors.NewServiceError("failed to create folder for %s", filename, err)
		}

		filename = fmt.Sprintf("%s?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL", filename)

	default:
		folder := tSettings.DataFolder
		if err = os.MkdirAll(folder, 0755); err != nil {
			return nil, errors.NewServiceError("failed to create data folder %s", folder, err)
		}

		if len(storeURL.Path) < 2 {
			return nil, errors.NewConfigurationError("sqlite url %s has no database name", storeURL.String())
		}

		dbName := storeURL.Path[1:]

		filename, err = filepath.Abs(path.Join(folder, fmt.Sprintf("%s.db", dbName)))
		if err != nil {
			return nil, errors.NewServiceError("failed to get absolute path for sqlite DB", err)
		}

		/* Don't be tempted by a large busy_timeout. Just masks a bigger problem.
		Fail fast. */
		filename = fmt.Sprintf("%s?cache=shared&_pragma=busy_timeout=5000&_pragma=journal_mode=WAL", filename)
	}

	logger.Infof("Using sqlite DB: %s", filename)

	db, err := usql.Open("sqlite", filename)
	if err != nil {
		return nil, errors.NewServiceError("failed to open sqlite DB", err)
	}

	if _, err = db.Exec(`PRAGMA synchronous = NORMAL;`); err != nil {
		_ = db.Close()
		return nil, errors.NewServiceError("could not set synchronous mode", err)
	}

	// a single writer, the ledger is built by one goroutine
	db.SetMaxOpenConns(1)

	return db, nil
}

func queryInt(values url.Values, key string, defaultValue int) int {
	if v := values.Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}

	return defaultValue
}
