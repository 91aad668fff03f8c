package scans

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domain "github.com/phishguard/phishguard/internal/domain/scans"
	"github.com/phishguard/phishguard/internal/domain/identity"
)

// Advisory text derived from the prediction alone.
const (
	MessageLegitimate = "URL appears to be legitimate."
	MessagePhishing   = "Warning! URL appears to be a phishing site."
)

// Service implements use-cases untuk scan submission.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Ledger     domain.Ledger
	Classifier domain.Classifier
	Clock      Clock
	Log        *slog.Logger
}

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

//
// ==== USE CASES ====
//

// Command untuk submit scan
type SubmitScanCommand struct {
	URL       string
	Requester identity.Identity
}

type SubmitScanResult struct {
	URL        string            `json:"url"`
	Prediction domain.Prediction `json:"prediction"`
	Confidence float64           `json:"confidence"`
	CheckedAt  time.Time         `json:"checkedAt"`
	Message    string            `json:"message"`
}

// Submit runs one scan: validate → classify → best-effort persist.
//
// Classification failures surface to the caller untouched. A ledger
// failure after a successful classification is logged and swallowed:
// the verdict is the user-visible value, the history write is an
// auxiliary durability concern that must not fail the scan.
func (s *Service) Submit(ctx context.Context, cmd SubmitScanCommand) (SubmitScanResult, error) {
	if cmd.URL == "" {
		return SubmitScanResult{}, domain.ErrInvalidRequest
	}

	verdict, err := s.Classifier.Classify(ctx, cmd.URL, cmd.Requester.ClassifierUser())
	if err != nil {
		return SubmitScanResult{}, err
	}

	checkedAt := s.Clock.Now()
	res := SubmitScanResult{
		URL:        cmd.URL,
		Prediction: verdict.Prediction,
		Confidence: verdict.Confidence,
		CheckedAt:  checkedAt,
		Message:    advisoryFor(verdict.Prediction),
	}

	// Anonymous scans are never persisted; history is a benefit of
	// signing in, not a requirement of scanning.
	if cmd.Requester.Anonymous() {
		return res, nil
	}

	rec := &domain.ScanRecord{
		ID:         domain.RecordID(uuid.New().String()),
		OwnerID:    cmd.Requester.ID,
		URL:        cmd.URL,
		Prediction: verdict.Prediction,
		Confidence: verdict.Confidence,
		CheckedAt:  checkedAt,
	}
	if err := s.Ledger.Insert(ctx, rec); err != nil {
		s.logger().Warn("history write failed, returning verdict anyway",
			"owner", cmd.Requester.ID, "url", cmd.URL, "err", err)
	}

	return res, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// advisoryFor picks the fixed user-facing text for a verdict.
func advisoryFor(p domain.Prediction) string {
	if p == domain.PredictionPhishing {
		return MessagePhishing
	}
	return MessageLegitimate
}

// IsClassifierError reports whether err came from the classification
// step rather than validation or persistence.
func IsClassifierError(err error) bool {
	return errors.Is(err, domain.ErrClassifierUnreachable) ||
		errors.Is(err, domain.ErrClassifierUnavailable) ||
		errors.Is(err, domain.ErrClassifierServerError) ||
		errors.Is(err, domain.ErrClassifierMalformed)
}
