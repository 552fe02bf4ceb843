package models

// Balance is a user's internal ledger balance. Rows are mutated only through
// atomic balance = balance ± x statements; no read-modify-write path exists.
type Balance struct {
	UserID  string  `db:"user_id" json:"user_id"`
	Balance float64 `db:"balance" json:"balance"`
}
