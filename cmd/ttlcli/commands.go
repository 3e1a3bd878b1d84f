package ttlcli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxo-ttl/chaincfg"
	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/services/cachehints"
	"github.com/bsv-blockchain/utxo-ttl/services/chainstats"
	ledgerService "github.com/bsv-blockchain/utxo-ttl/services/ledger"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/stores/chain/bitcoincore"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger/factory"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/bsv-blockchain/utxo-ttl/util/health"
	"github.com/bsv-blockchain/utxo-ttl/util/retry"
	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"
)

type commands struct {
	settings *settings.Settings
	logger   ulogger.Logger
	out      io.Writer
}

// applyFlags copies the flags set on the command line over the settings.
func (c *commands) applyFlags(cCtx *cli.Context) error {
	s := c.settings

	if v := cCtx.String("bitcoin-dir"); v != "" {
		s.Ledger.BitcoinDir = v

		// blocks live below the data dir unless told otherwise
		if cCtx.String("blocks-dir") == "" {
			s.Ledger.BlocksDir = filepath.Join(v, "blocks")
		}
	}

	if v := cCtx.String("blocks-dir"); v != "" {
		s.Ledger.BlocksDir = v
	}

	if v := cCtx.String("network"); v != "" {
		params, err := chaincfg.GetChainParams(v)
		if err != nil {
			return err
		}

		s.Network = v
		s.ChainCfgParams = params
	}

	if v := cCtx.String("store"); v != "" {
		s.Ledger.StoreURL = v
	}

	if cCtx.IsSet("workers") {
		s.Ledger.Workers = cCtx.Int("workers")
	}

	if cCtx.IsSet("resume") {
		s.Ledger.Resume = cCtx.Bool("resume")
	}

	if cCtx.IsSet("first-spend-wins") {
		s.Ledger.FirstSpendWins = cCtx.Bool("first-spend-wins")
	}

	return nil
}

func uintFlag(cCtx *cli.Context, name string) (uint32, error) {
	v, err := safeconversion.Uint64ToUint32(uint64(cCtx.Uint(name)))
	if err != nil {
		return 0, errors.NewInvalidArgumentError("--%s is out of range", name, err)
	}

	return v, nil
}

func (c *commands) openStore(cCtx *cli.Context) (ledger.Store, error) {
	if err := c.applyFlags(cCtx); err != nil {
		return nil, err
	}

	return c.newStore(cCtx.Context)
}

// newStore opens the configured store, retrying while it is unreachable.
func (c *commands) newStore(ctx context.Context) (ledger.Store, error) {
	return retry.Retry(ctx, c.logger, func() (ledger.Store, error) {
		return factory.NewStore(ctx, c.logger, c.settings)
	},
		retry.WithRetryCount(c.settings.Ledger.StoreOpenRetries),
		retry.WithMessage("opening ledger store "+c.settings.Ledger.StoreURL),
		retry.WithRetryIf(func(err error) bool {
			return errors.Is(err, errors.ErrStorageError) || errors.Is(err, errors.ErrStorageUnavailable)
		}),
	)
}

func (c *commands) build(cCtx *cli.Context) error {
	ctx := cCtx.Context

	if err := c.applyFlags(cCtx); err != nil {
		return err
	}

	storeURL, err := c.settings.StoreURLParsed()
	if err != nil {
		return err
	}

	checkpoint := ledgerService.NewCheckpoint(c.settings.Ledger.CheckpointFile, storeURL.Redacted())

	var from uint32

	switch {
	case cCtx.IsSet("from"):
		if from, err = uintFlag(cCtx, "from"); err != nil {
			return err
		}
	case c.settings.Ledger.Resume:
		if from, err = checkpoint.ResumeHeight(); err != nil {
			return err
		}

		c.logger.Infof("resuming at height %d from %s", from, checkpoint.Path())
	}

	opts := []ledgerService.Option{ledgerService.WithCheckpoint(checkpoint)}

	if cCtx.IsSet("to") {
		to, err := uintFlag(cCtx, "to")
		if err != nil {
			return err
		}

		opts = append(opts, ledgerService.WithStopHeight(to))
	}

	source, err := bitcoincore.New(ctx, c.logger.New("bitcoincore"), c.settings)
	if err != nil {
		return err
	}

	defer source.Close()

	store, err := c.newStore(ctx)
	if err != nil {
		return err
	}

	defer store.Close()

	stopMonitoring := startMonitoring(c.logger, c.settings, health.Check{Name: "ledger", Check: store.Health})
	defer stopMonitoring()

	builder := ledgerService.NewBuilder(c.logger.New("ledger"), c.settings, store, opts...)

	last, committed, err := builder.Run(ctx, source, from)
	if err != nil {
		if !committed {
			return errors.NewProcessingError("ledger build stopped before committing any height", err)
		}

		return errors.NewProcessingError("ledger build stopped, last committed height %d", last, err)
	}

	c.logger.Infof("Result written to %s", c.settings.Ledger.StoreURL)

	return nil
}

func (c *commands) stats(cCtx *cli.Context) error {
	if err := c.applyFlags(cCtx); err != nil {
		return err
	}

	source, err := bitcoincore.New(cCtx.Context, c.logger.New("bitcoincore"), c.settings)
	if err != nil {
		return err
	}

	defer source.Close()

	summary, err := chainstats.New(c.logger, c.settings, source).Collect(cCtx.Context)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(c.out, summary.String())

	return err
}

func (c *commands) cacheHints(cCtx *cli.Context) error {
	if err := c.applyFlags(cCtx); err != nil {
		return err
	}

	source, err := bitcoincore.New(cCtx.Context, c.logger.New("bitcoincore"), c.settings)
	if err != nil {
		return err
	}

	defer source.Close()

	path := cCtx.String("out")

	total, err := cachehints.New(c.logger, c.settings, source).Export(cCtx.Context, path)
	if err != nil {
		return err
	}

	c.logger.Infof("wrote %d cache hints to %s", total, path)

	return nil
}

func (c *commands) get(cCtx *cli.Context) error {
	if cCtx.NArg() != 1 {
		return errors.NewInvalidArgumentError("expected exactly one <txid:vout> argument")
	}

	outpoint, err := model.NewOutpointFromString(cCtx.Args().First())
	if err != nil {
		return err
	}

	store, err := c.openStore(cCtx)
	if err != nil {
		return err
	}

	defer store.Close()

	record, err := store.Get(cCtx.Context, outpoint)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.out, record.String())

	return err
}

func (c *commands) summary(cCtx *cli.Context) error {
	format := cCtx.String("format")
	if format != "text" && format != "csv" {
		return errors.NewInvalidArgumentError("unknown summary format %q, expected text or csv", format)
	}

	store, err := c.openStore(cCtx)
	if err != nil {
		return err
	}

	defer store.Close()

	summaries, err := store.Summary(cCtx.Context)
	if err != nil {
		return err
	}

	if format == "csv" {
		return writeSummaryCSV(c.out, summaries)
	}

	_, err = fmt.Fprint(c.out, formatSummary(summaries))

	return err
}

// summaryRow is one line of the csv summary.
type summaryRow struct {
	Category    string  `csv:"category"`
	Records     uint64  `csv:"records"`
	Spent       uint64  `csv:"spent"`
	Amount      int64   `csv:"amount"`
	AvgLifetime float64 `csv:"avg_lifetime"`
}

func writeSummaryCSV(w io.Writer, summaries []*model.CategorySummary) error {
	rows := make([]*summaryRow, 0, len(summaries))

	for _, s := range summaries {
		rows = append(rows, &summaryRow{
			Category:    s.Category.String(),
			Records:     s.Records,
			Spent:       s.Spent,
			Amount:      s.Amount,
			AvgLifetime: s.AvgLifetime,
		})
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return errors.NewProcessingError("failed to write csv summary", err)
	}

	return nil
}

func formatSummary(summaries []*model.CategorySummary) string {
	out := fmt.Sprintf("%-16s %12s %12s %20s %14s\n", "category", "records", "spent", "amount", "avg lifetime")

	var records, spent uint64

	for _, s := range summaries {
		out += fmt.Sprintf("%-16s %12d %12d %20d %14.1f\n", s.Category, s.Records, s.Spent, s.Amount, s.AvgLifetime)
		records += s.Records
		spent += s.Spent
	}

	out += fmt.Sprintf("%-16s %12d %12d\n", "total", records, spent)

	return out
}
