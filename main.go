package main

import (
	"os"

	"github.com/bsv-blockchain/utxo-ttl/cmd/ttlcli"
)

// Version & commit strings injected at build with -ldflags -X...
var (
	version string
	commit  string
)

func main() {
	ttlcli.Start(os.Args, version, commit)
}
