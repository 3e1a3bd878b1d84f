package ulogger_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/ordishs/gocore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level string) ulogger.Logger {
	return ulogger.New("ttl",
		ulogger.WithWriter(buf),
		ulogger.WithLevel(level),
		ulogger.WithPretty(false),
	)
}

func TestZeroLoggerJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := jsonLogger(&buf, "INFO")
	logger.Infof("%d / %d => %s", 100, 200, "00ab")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "100 / 200 => 00ab", entry["message"])
	assert.Equal(t, "ttl", entry["service"])
	assert.Contains(t, entry, "caller")
}

func TestZeroLoggerLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := jsonLogger(&buf, "WARN")
	assert.Equal(t, int(gocore.WARN), logger.LogLevel())

	logger.Debugf("debug")
	logger.Infof("info")
	assert.Empty(t, buf.String())

	logger.Warnf("warn")
	logger.Errorf("error")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	buf.Reset()
	logger.SetLogLevel("debug")
	logger.Debugf("debug")
	assert.Contains(t, buf.String(), `"level":"debug"`)
}

func TestZeroLoggerDuplicate(t *testing.T) {
	var buf bytes.Buffer

	logger := jsonLogger(&buf, "INFO")
	dup := logger.Duplicate(ulogger.WithLevel("ERROR"))

	dup.Infof("hidden")
	assert.Empty(t, buf.String())

	logger.Infof("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestZeroLoggerPretty(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.New("ledger", ulogger.WithWriter(&buf), ulogger.WithPretty(true))
	logger.Infof("processed block %d", 7)

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "| ledger| processed block 7")
}

func TestNoopLogger(t *testing.T) {
	logger := ulogger.New("x", ulogger.WithLoggerType("noop"))

	_, ok := logger.(*ulogger.TestLogger)
	require.True(t, ok)

	logger.Infof("nothing")
	assert.Same(t, logger, logger.New("y"))
}

func TestVerboseTestLogger(t *testing.T) {
	logger := ulogger.NewVerboseTestLogger(t)
	logger.Infof("height %d", 1)
	assert.Equal(t, logger, logger.Duplicate())
}

func TestGoCoreLogger(t *testing.T) {
	logger := ulogger.New("ttl", ulogger.WithLoggerType("gocore"), ulogger.WithLevel("WARN"))

	gl, ok := logger.(*ulogger.GoCoreLogger)
	require.True(t, ok)
	assert.Equal(t, int(gocore.WARN), gl.LogLevel())

	child := logger.New("ledger")
	_, ok = child.(*ulogger.GoCoreLogger)
	require.True(t, ok)
	assert.Equal(t, int(gocore.WARN), child.LogLevel())

	assert.NotNil(t, logger.Duplicate())
	child.Debugf("not shown")
}
