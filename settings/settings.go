package settings

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/bsv-blockchain/utxo-ttl/chaincfg"
	"github.com/bsv-blockchain/utxo-ttl/errors"
)

func NewSettings() *Settings {
	network := getString("network", "mainnet")

	params, err := chaincfg.GetChainParams(network)
	if err != nil {
		panic(err)
	}

	dataFolder := getString("dataFolder", "data")
	bitcoinDir := getString("ledger_bitcoinDir", "/data1")

	return &Settings{
		ClientName:         getString("clientName", "utxottl"),
		DataFolder:         dataFolder,
		LogLevel:           getString("logLevel", "INFO"),
		LoggerType:         getString("logger", "zerolog"),
		Network:            network,
		ChainCfgParams:     params,
		ProfilerAddr:       getString("profilerAddr", ""),
		PrometheusEndpoint: getString("prometheusEndpoint", ""),
		Ledger: LedgerSettings{
			BitcoinDir:       bitcoinDir,
			BlocksDir:        getString("ledger_blocksDir", filepath.Join(bitcoinDir, "blocks")+"/"),
			StoreURL:         getString("ledger_storeURL", "/data1/ttls.sqlite"),
			StoreOpenRetries: getInt("ledger_storeOpenRetries", 3),
			Workers:          getInt("ledger_workers", 0),
			ProgressInterval: getInt("ledger_progressInterval", 100),
			FirstSpendWins:   getBool("ledger_firstSpendWins", false),
			Resume:           getBool("ledger_resume", false),
			CheckpointFile:   getString("ledger_checkpointFile", filepath.Join(dataFolder, "lastProcessed.dat")),
		},
		Stats: StatsSettings{
			ProgressInterval: getInt("stats_progressInterval", 10_000),
		},
		CacheHints: CacheHintsSettings{
			OutputFile:       getString("cachehints_outputFile", "./cache_hints.bin"),
			ProgressInterval: getInt("cachehints_progressInterval", 1_000),
		},
	}
}

// ParseStoreURL parses a store location. Anything without a known scheme is a filesystem
// path to a sqlite database, so "/data1/ttls.sqlite" keeps working.
func ParseStoreURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.NewConfigurationError("store url is empty")
	}

	if !strings.Contains(raw, "://") {
		return &url.URL{Scheme: "file", Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid store url %s", raw, err)
	}

	return u, nil
}
