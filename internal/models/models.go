package models

import "time"

// CheckinRecord represents a user's last successful check-in
type CheckinRecord struct {
	UserID      string
	LastCheckin time.Time
}

// BalanceEntry represents one expiring ledger credit or debit
type BalanceEntry struct {
	EntryID   int64
	UserID    string
	Amount    int64
	Reason    string
	Timestamp time.Time
}

// Balances summarizes a user's account for profile display
type Balances struct {
	Networth int64
	AtRisk   int64
	Perma    int64
}
