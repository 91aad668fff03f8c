package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	domain "github.com/phishguard/phishguard/internal/domain/scans"
)

// DefaultTimeout bounds every classification call. A hung classifier
// must never hang a scan request.
const DefaultTimeout = 30 * time.Second

// Client talks to the external ML service that produces the
// phishing/legitimate verdict. One outbound call per scan, no caching:
// verdicts are not guaranteed stable per URL over time.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ domain.Classifier = (*Client)(nil)

// NewClient creates a reusable HTTP client. timeout <= 0 falls back to
// DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Classify sends the URL for scoring. user is the opaque owner id or
// "anonymous". Failures are classified so the orchestrator can pick a
// user-facing status: unreachable vs timed out vs remote 5xx vs a
// response that violates the contract.
func (c *Client) Classify(ctx context.Context, rawURL, user string) (domain.Verdict, error) {
	body, err := json.Marshal(map[string]string{
		"url":  rawURL,
		"user": user,
	})
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(body))
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Verdict{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return domain.Verdict{}, fmt.Errorf("%w: status %s", domain.ErrClassifierServerError, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Verdict{}, fmt.Errorf("%w: unexpected status %s", domain.ErrClassifierMalformed, resp.Status)
	}

	var out struct {
		Prediction *string  `json:"prediction"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Verdict{}, fmt.Errorf("%w: %v", domain.ErrClassifierMalformed, err)
	}
	if out.Prediction == nil || out.Confidence == nil {
		return domain.Verdict{}, fmt.Errorf("%w: missing prediction or confidence", domain.ErrClassifierMalformed)
	}

	pred := domain.Prediction(*out.Prediction)
	if !pred.Valid() {
		return domain.Verdict{}, fmt.Errorf("%w: prediction %q", domain.ErrClassifierMalformed, *out.Prediction)
	}
	if *out.Confidence < 0 || *out.Confidence > 100 {
		return domain.Verdict{}, fmt.Errorf("%w: confidence %v out of range", domain.ErrClassifierMalformed, *out.Confidence)
	}

	return domain.Verdict{Prediction: pred, Confidence: *out.Confidence}, nil
}

// Check probes the classifier base URL, for the health endpoint only.
// The scan path never calls this.
func (c *Client) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health returned %s", resp.Status)
	}
	return nil
}

// classifyTransportError splits "could not connect" from "connected
// but the bounded wait expired".
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrClassifierUnreachable, err)
}
