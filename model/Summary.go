package model

// CategorySummary aggregates the ledger records of one script category.
type CategorySummary struct {
	Category ScriptCategory
	Records  uint64
	Spent    uint64
	Amount   int64
	// AvgLifetime is the mean of spend_height - created_height over spent records.
	AvgLifetime float64
}
