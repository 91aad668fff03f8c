package scans

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/phishguard/phishguard/internal/domain/scans"
	"github.com/phishguard/phishguard/internal/domain/identity"
)

// Bounds for the two read views. Recent is the dashboard strip, Page
// the fuller paginated history.
const (
	RecentLimit     = 10
	DefaultPageSize = 20
)

// NoteSignIn is returned instead of an error when an anonymous caller
// asks for recent history.
const NoteSignIn = "Sign in to keep a scan history."

// History implements the read side of the ledger plus delete/export.
type History struct {
	Ledger  domain.Ledger
	Reports domain.ReportStore
	Clock   Clock
}

// ListRecent composes the dashboard view: latest records plus
// aggregate counts. limit <= 0 falls back to RecentLimit. Anonymous
// callers get an empty summary with an explanatory note, not an error.
func (h *History) ListRecent(ctx context.Context, ident identity.Identity, limit int) (domain.HistorySummary, error) {
	if ident.Anonymous() {
		return domain.HistorySummary{
			Scans: []*domain.ScanRecord{},
			Note:  NoteSignIn,
		}, nil
	}

	if limit <= 0 {
		limit = RecentLimit
	}
	recs, err := h.Ledger.Recent(ctx, ident.ID, limit)
	if err != nil {
		return domain.HistorySummary{}, err
	}
	total, err := h.Ledger.CountAll(ctx, ident.ID)
	if err != nil {
		return domain.HistorySummary{}, err
	}
	phishing, err := h.Ledger.CountByPrediction(ctx, ident.ID, domain.PredictionPhishing)
	if err != nil {
		return domain.HistorySummary{}, err
	}
	legitimate, err := h.Ledger.CountByPrediction(ctx, ident.ID, domain.PredictionLegitimate)
	if err != nil {
		return domain.HistorySummary{}, err
	}

	if recs == nil {
		recs = []*domain.ScanRecord{}
	}
	return domain.HistorySummary{
		Scans:           recs,
		Total:           total,
		PhishingFound:   phishing,
		LegitimateFound: legitimate,
	}, nil
}

// ListAll returns one page of the owner's full history.
func (h *History) ListAll(ctx context.Context, ident identity.Identity, page, pageSize int) (domain.PaginatedResult, error) {
	if ident.Anonymous() {
		return domain.PaginatedResult{}, domain.ErrUnauthorized
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return h.Ledger.Page(ctx, ident.ID, page, pageSize)
}

// Delete removes one record the caller owns. A record owned by someone
// else reports ErrNotFound, same as a missing one.
func (h *History) Delete(ctx context.Context, ident identity.Identity, id domain.RecordID) error {
	if ident.Anonymous() {
		return domain.ErrUnauthorized
	}
	deleted, err := h.Ledger.DeleteOne(ctx, ident.ID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return nil
}

// Export writes the owner's full history as a JSON report to the
// report store and returns the object URL.
func (h *History) Export(ctx context.Context, ident identity.Identity) (string, error) {
	if ident.Anonymous() {
		return "", domain.ErrUnauthorized
	}
	if h.Reports == nil {
		return "", fmt.Errorf("report store not configured")
	}

	total, err := h.Ledger.CountAll(ctx, ident.ID)
	if err != nil {
		return "", err
	}
	pageSize := int(total)
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page, err := h.Ledger.Page(ctx, ident.ID, 1, pageSize)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(struct {
		OwnerID    string               `json:"ownerId"`
		ExportedAt time.Time            `json:"exportedAt"`
		Total      int64                `json:"total"`
		Scans      []*domain.ScanRecord `json:"scans"`
	}{
		OwnerID:    ident.ID,
		ExportedAt: h.Clock.Now(),
		Total:      page.Total,
		Scans:      page.Data,
	})
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/history-%d.json", ident.ID, h.Clock.Now().Unix())
	return h.Reports.UploadJSON(ctx, key, body)
}
