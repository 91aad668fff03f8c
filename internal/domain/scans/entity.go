package scans

import (
	"time"
)

// ID tipe untuk ScanRecord
type RecordID string

// Prediction enum
type Prediction string

const (
	PredictionPhishing   Prediction = "phishing"
	PredictionLegitimate Prediction = "legitimate"
)

// Valid reports whether p is one of the two classifier verdicts.
// Anything else coming back from the classifier is a data-integrity
// error and must never be stored.
func (p Prediction) Valid() bool {
	return p == PredictionPhishing || p == PredictionLegitimate
}

// Aggregate Root: ScanRecord, one classification event owned by a user.
// OwnerID is set at creation and never changes; every read path is
// scoped to it.
type ScanRecord struct {
	ID         RecordID   `json:"id"`
	OwnerID    string     `json:"ownerId"`
	URL        string     `json:"url"`
	Prediction Prediction `json:"prediction"`
	Confidence float64    `json:"confidence"`
	CheckedAt  time.Time  `json:"checkedAt"`
}

// Verdict is what the external classifier returns for a URL.
type Verdict struct {
	Prediction Prediction `json:"prediction"`
	Confidence float64    `json:"confidence"`
}

// HistorySummary aggregates a user's recent ledger view.
type HistorySummary struct {
	Scans           []*ScanRecord `json:"scans"`
	Total           int64         `json:"total"`
	PhishingFound   int64         `json:"phishingFound"`
	LegitimateFound int64         `json:"legitimateFound"`
	Note            string        `json:"note,omitempty"`
}
