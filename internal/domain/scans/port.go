package scans

import "context"

// Ledger port (interface untuk persistence). The backing store receives
// an injected connection pool; implementations never open connections
// per call. Owner scoping lives inside every query, so a record that
// belongs to someone else is indistinguishable from a missing one.
type Ledger interface {
	Insert(ctx context.Context, rec *ScanRecord) error
	Recent(ctx context.Context, owner string, limit int) ([]*ScanRecord, error)
	Page(ctx context.Context, owner string, page, pageSize int) (PaginatedResult, error)
	CountAll(ctx context.Context, owner string) (int64, error)
	CountByPrediction(ctx context.Context, owner string, p Prediction) (int64, error)
	DeleteOne(ctx context.Context, owner string, id RecordID) (bool, error)
}

// Classifier port (interface untuk the external ML service)
type Classifier interface {
	Classify(ctx context.Context, url, user string) (Verdict, error)
}

// ReportStore port (interface untuk history export artifacts)
type ReportStore interface {
	UploadJSON(ctx context.Context, key string, body []byte) (string, error)
}
