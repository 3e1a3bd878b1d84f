package model

import "fmt"

// Record is one row of the lifetime ledger. SpendHeight is nil while the output is unspent.
type Record struct {
	Outpoint      Outpoint
	Category      ScriptCategory
	Amount        int64
	CreatedHeight uint32
	SpendHeight   *uint32
}

func (r *Record) IsSpent() bool {
	return r.SpendHeight != nil
}

// Lifetime returns the number of blocks the output stayed unspent, and false while it is unspent.
func (r *Record) Lifetime() (uint32, bool) {
	if r.SpendHeight == nil {
		return 0, false
	}

	if *r.SpendHeight < r.CreatedHeight {
		return 0, true
	}

	return *r.SpendHeight - r.CreatedHeight, true
}

func (r *Record) String() string {
	spend := "unspent"
	if r.SpendHeight != nil {
		spend = fmt.Sprintf("spent at %d", *r.SpendHeight)
	}

	return fmt.Sprintf("%s %s amount=%d created=%d %s", r.Outpoint, r.Category, r.Amount, r.CreatedHeight, spend)
}
