// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// InboxState tracks where a transaction sits in the review queue.
type InboxState string

// Inbox state constants.
const (
	InboxUnclassified   InboxState = "unclassified"
	InboxNeedsReview    InboxState = "needs_review"
	InboxAutoClassified InboxState = "auto_classified"
	InboxCleared        InboxState = "cleared"
)

// ClassificationSource records how a transaction's category was decided.
type ClassificationSource string

// Classification source constants.
const (
	SourceRule  ClassificationSource = "rule"
	SourceModel ClassificationSource = "model"
	SourceUser  ClassificationSource = "user"
	SourceNone  ClassificationSource = "none"
)

// Transaction represents a single financial transaction from any source.
// Amount is signed: negative means money leaving the account.
type Transaction struct {
	Date              time.Time
	ConfirmedAt       *time.Time
	ID                string
	UserID            string
	Name              string // Raw transaction description
	MerchantName      string // Cleaned merchant name
	AccountName       string
	Category          string
	CategoryType      string
	SuggestedCategory string
	Source            ClassificationSource
	InboxState        InboxState
	Amount            float64
	Confidence        float64
	IsTransfer        bool
	CategoryConfirmed bool
}

// GenerateHash creates a content hash for duplicate detection on import.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.MerchantName,
		t.AccountName)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Confirmed reports whether the user has locked in this transaction's
// category. Confirmed transactions are never touched by automated passes.
func (t *Transaction) Confirmed() bool {
	return t.CategoryConfirmed
}
