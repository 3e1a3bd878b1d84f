package model

import (
	"github.com/btcsuite/btcd/txscript"
)

// ScriptCategory is the one byte output category stored in the ledger.
type ScriptCategory uint8

const (
	ScriptOther          ScriptCategory = 0x00
	ScriptP2PK           ScriptCategory = 0x01
	ScriptP2PKH          ScriptCategory = 0x02
	ScriptP2SH           ScriptCategory = 0x03
	ScriptP2WSH          ScriptCategory = 0x04
	ScriptP2WPKH         ScriptCategory = 0x05
	ScriptP2TR           ScriptCategory = 0x06
	ScriptCoinbaseOutput ScriptCategory = 0x07
)

var scriptCategoryNames = map[ScriptCategory]string{
	ScriptOther:          "other",
	ScriptP2PK:           "p2pk",
	ScriptP2PKH:          "p2pkh",
	ScriptP2SH:           "p2sh",
	ScriptP2WSH:          "p2wsh",
	ScriptP2WPKH:         "p2wpkh",
	ScriptP2TR:           "p2tr",
	ScriptCoinbaseOutput: "coinbase",
}

func (c ScriptCategory) String() string {
	if name, ok := scriptCategoryNames[c]; ok {
		return name
	}

	return "unknown"
}

func (c ScriptCategory) IsValid() bool {
	_, ok := scriptCategoryNames[c]
	return ok
}

// scriptTemplates is evaluated in order and the first match wins.
var scriptTemplates = []struct {
	category ScriptCategory
	match    func(script []byte) bool
}{
	{ScriptP2PK, isPayToPubKeyShape},
	{ScriptP2PKH, txscript.IsPayToPubKeyHash},
	{ScriptP2SH, txscript.IsPayToScriptHash},
	{ScriptP2WSH, txscript.IsPayToWitnessScriptHash},
	{ScriptP2WPKH, txscript.IsPayToWitnessPubKeyHash},
	{ScriptP2TR, txscript.IsPayToTaproot},
}

// isPayToPubKeyShape matches <33 or 65 byte push> OP_CHECKSIG without looking at the key itself.
// Early mainnet outputs pay to malformed keys and still count as P2PK.
func isPayToPubKeyShape(script []byte) bool {
	switch len(script) {
	case 35:
		return script[0] == txscript.OP_DATA_33 && script[34] == txscript.OP_CHECKSIG
	case 67:
		return script[0] == txscript.OP_DATA_65 && script[66] == txscript.OP_CHECKSIG
	default:
		return false
	}
}

// ClassifyScript returns the category of an output locking script. It never fails,
// anything that matches no template is ScriptOther. ScriptCoinbaseOutput is never returned.
func ClassifyScript(script []byte) ScriptCategory {
	for _, t := range scriptTemplates {
		if t.match(script) {
			return t.category
		}
	}

	return ScriptOther
}
