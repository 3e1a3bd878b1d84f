// Package ttlcli is the command line front end: build the ledger, inspect it, and run the chain
// statistics and cache-hint tools against a Bitcoin Core data directory.
package ttlcli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/ordishs/gocore"
	"github.com/urfave/cli/v2"
)

const progname = "utxottl"

// Start runs the command line in args (args[0] is the program name) and exits the process on error.
func Start(args []string, version, commit string) {
	gocore.SetInfo(progname, version, commit)

	tSettings := settings.NewSettings()
	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel), ulogger.WithLoggerType(tSettings.LoggerType))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(interrupt)

	go func() {
		select {
		case sig := <-interrupt:
			logger.Warnf("received %s, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	app := NewApp(tSettings, logger, os.Stdout)
	app.Version = version + " (" + commit + ")"

	if err := app.RunContext(ctx, args); err != nil {
		logger.Errorf("%v", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}

// NewApp builds the command tree. Command output that is not logging goes to out.
func NewApp(tSettings *settings.Settings, logger ulogger.Logger, out io.Writer) *cli.App {
	c := &commands{
		settings: tSettings,
		logger:   logger,
		out:      out,
	}

	return &cli.App{
		Name:                 progname,
		Usage:                "Build and query a ledger of UTXO lifetimes from a Bitcoin Core data directory",
		EnableBashCompletion: true,
		Writer:               out,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Replay the active chain and record created and spend heights of every spendable output",
				Flags:  append(append(sourceFlags(), storeFlags()...), buildFlags()...),
				Action: c.build,
			},
			{
				Name:   "stats",
				Usage:  "Count inputs and outputs of the active chain",
				Flags:  sourceFlags(),
				Action: c.stats,
			},
			{
				Name:  "cachehints",
				Usage: "Write the outpoints spent by each block to a cache hint file",
				Flags: append(sourceFlags(), &cli.StringFlag{
					Name:  "out",
					Usage: "output file, must not exist",
					Value: tSettings.CacheHints.OutputFile,
				}),
				Action: c.cacheHints,
			},
			{
				Name:      "get",
				Usage:     "Print the ledger record of an outpoint",
				ArgsUsage: "<txid:vout>",
				Flags:     storeFlags(),
				Action:    c.get,
			},
			{
				Name:  "summary",
				Usage: "Print record counts, amounts and average lifetime per script category",
				Flags: append(storeFlags(), &cli.StringFlag{
					Name:  "format",
					Usage: "output format, text or csv",
					Value: "text",
				}),
				Action: c.summary,
			},
		},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "bitcoin-dir",
			Usage:   "Bitcoin Core data directory, holding chainstate/",
			EnvVars: []string{"BITCOIN_DIR"},
		},
		&cli.StringFlag{
			Name:    "blocks-dir",
			Usage:   "Bitcoin Core blocks directory, holding index/ and blk*.dat",
			EnvVars: []string{"BLOCKS_DIR"},
		},
		&cli.StringFlag{
			Name:  "network",
			Usage: "mainnet, testnet, regtest, signet or simnet",
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Usage:   "ledger store: a sqlite file path, sqlite:///name, sqlitememory:///name, postgres://... or memory://",
			EnvVars: []string{"RESULTS_TABLE"},
		},
	}
}

func buildFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "workers",
			Usage: "transaction extraction workers per block, 0 extracts sequentially",
		},
		&cli.UintFlag{
			Name:  "from",
			Usage: "first height to process, overrides --resume",
		},
		&cli.UintFlag{
			Name:  "to",
			Usage: "last height to process, defaults to the tip",
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "start one above the height in the checkpoint file",
		},
		&cli.BoolFlag{
			Name:  "first-spend-wins",
			Usage: "never overwrite a spend height once set",
		},
	}
}
