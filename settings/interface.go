package settings

import (
	"net/url"

	"github.com/bsv-blockchain/utxo-ttl/chaincfg"
)

type LedgerSettings struct {
	// BitcoinDir is the Bitcoin Core data directory holding chainstate/ and blocks/.
	BitcoinDir string
	// BlocksDir is where blk*.dat and the block index live. Defaults to <BitcoinDir>/blocks/.
	BlocksDir string
	// StoreURL selects the ledger store, a bare path is a sqlite file.
	StoreURL string
	// StoreOpenRetries is how often opening an unreachable store is attempted.
	StoreOpenRetries int
	// Workers is the extraction pool size, 0 extracts sequentially on the calling goroutine.
	Workers          int
	ProgressInterval int
	FirstSpendWins   bool
	Resume           bool
	CheckpointFile   string
}

type StatsSettings struct {
	ProgressInterval int
}

type CacheHintsSettings struct {
	OutputFile       string
	ProgressInterval int
}

type Settings struct {
	ClientName         string
	DataFolder         string
	LogLevel           string
	LoggerType         string
	Network            string
	ChainCfgParams     *chaincfg.Params
	ProfilerAddr       string
	PrometheusEndpoint string
	Ledger             LedgerSettings
	Stats              StatsSettings
	CacheHints         CacheHintsSettings
}

// StoreURLParsed returns the ledger store URL, treating a URL without a scheme as a sqlite file path.
func (s *Settings) StoreURLParsed() (*url.URL, error) {
	return ParseStoreURL(s.Ledger.StoreURL)
}
