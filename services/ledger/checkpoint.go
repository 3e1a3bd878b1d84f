package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxo-ttl/errors"
)

// Checkpoint persists the height of the last block whose three phases committed, together with the
// store it was committed to. The file holds the decimal height on the first line and the store on the
// second. A checkpoint of another store is never used to resume.
type Checkpoint struct {
	path  string
	store string
}

// NewCheckpoint returns the checkpoint at path for store, an identifier such as the redacted store URL.
func NewCheckpoint(path string, store string) *Checkpoint {
	return &Checkpoint{path: path, store: store}
}

func (c *Checkpoint) Path() string {
	return c.path
}

// Read returns the last committed height. found is false when no checkpoint was written yet.
// A checkpoint written for a different store is an ERR_CONFIGURATION error.
func (c *Checkpoint) Read() (height uint32, found bool, err error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}

		return 0, false, errors.NewProcessingError("failed to read checkpoint %s", c.path, err)
	}

	heightLine, store, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")

	if store = strings.TrimSpace(store); store != c.store {
		return 0, false, errors.NewConfigurationError("checkpoint %s was written for store %q, not %q", c.path, store, c.store)
	}

	h, err := strconv.ParseUint(strings.TrimSpace(heightLine), 10, 32)
	if err != nil {
		return 0, false, errors.NewProcessingError("failed to parse height from checkpoint %s", c.path, err)
	}

	height, err = safeconversion.Uint64ToUint32(h)
	if err != nil {
		return 0, false, errors.NewProcessingError("invalid height in checkpoint %s", c.path, err)
	}

	return height, true, nil
}

// Write replaces the checkpoint with height. The new content is written to a temp file first and
// renamed over the old one, so a crash leaves either the old or the new height.
func (c *Checkpoint) Write(height uint32) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewProcessingError("failed to create checkpoint folder %s", dir, err)
	}

	tmp := c.path + ".tmp"

	// #nosec G306
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("%d\n%s\n", height, c.store)), 0o644); err != nil {
		return errors.NewProcessingError("failed to write checkpoint %s", tmp, err)
	}

	if err := os.Rename(tmp, c.path); err != nil {
		return errors.NewProcessingError("failed to rename checkpoint %s", tmp, err)
	}

	return nil
}

// ResumeHeight returns the first height still to process: one above the checkpoint, or 0 without one.
func (c *Checkpoint) ResumeHeight() (uint32, error) {
	height, found, err := c.Read()
	if err != nil {
		return 0, err
	}

	if !found {
		return 0, nil
	}

	return height + 1, nil
}
