package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	appauth "github.com/phishguard/phishguard/internal/application/auth"
	appscans "github.com/phishguard/phishguard/internal/application/scans"
	domain "github.com/phishguard/phishguard/internal/domain/scans"
	"github.com/phishguard/phishguard/internal/domain/users"
	"github.com/phishguard/phishguard/internal/middleware"
)

type stubClassifier struct {
	verdict domain.Verdict
	err     error
}

func (s *stubClassifier) Classify(context.Context, string, string) (domain.Verdict, error) {
	if s.err != nil {
		return domain.Verdict{}, s.err
	}
	return s.verdict, nil
}

type memLedger struct {
	mu   sync.Mutex
	recs []*domain.ScanRecord
}

func (m *memLedger) Insert(_ context.Context, rec *domain.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memLedger) Recent(_ context.Context, owner string, limit int) ([]*domain.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ScanRecord
	for i := len(m.recs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.recs[i].OwnerID == owner {
			out = append(out, m.recs[i])
		}
	}
	return out, nil
}

func (m *memLedger) Page(_ context.Context, owner string, page, pageSize int) (domain.PaginatedResult, error) {
	recs, _ := m.Recent(context.Background(), owner, pageSize)
	total, _ := m.CountAll(context.Background(), owner)
	return domain.PaginatedResult{Data: recs, Page: page, PageSize: pageSize, Total: total, TotalPages: 1}, nil
}

func (m *memLedger) CountAll(_ context.Context, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.recs {
		if r.OwnerID == owner {
			n++
		}
	}
	return n, nil
}

func (m *memLedger) CountByPrediction(_ context.Context, owner string, p domain.Prediction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.recs {
		if r.OwnerID == owner && r.Prediction == p {
			n++
		}
	}
	return n, nil
}

func (m *memLedger) DeleteOne(_ context.Context, owner string, id domain.RecordID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.recs {
		if r.ID == id && r.OwnerID == owner {
			m.recs = append(m.recs[:i], m.recs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*users.User
}

func (m *memUserRepo) Create(_ context.Context, u *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byEmail[u.Email]; dup {
		return users.ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

// testApp wires the router with in-memory infrastructure the way
// cmd/api does with real backends.
func testApp(t *testing.T, clf *stubClassifier) (http.Handler, *memLedger) {
	t.Helper()

	ledger := &memLedger{}
	authSvc := &appauth.Service{
		Users:    &memUserRepo{byEmail: map[string]*users.User{}},
		Secret:   []byte("router-test-secret"),
		TokenTTL: time.Hour,
	}
	scanSvc := &appscans.Service{
		Ledger:     ledger,
		Classifier: clf,
		Clock:      appscans.SystemClock{},
	}
	history := &appscans.History{Ledger: ledger, Clock: appscans.SystemClock{}}

	handler := middleware.Authenticate(authSvc)(NewRouter(scanSvc, history, authSvc))
	return handler, ledger
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error.Code
}

func signupAndLogin(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "hunter22"}
	if rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", "", creds); rec.Code != http.StatusCreated {
		t.Fatalf("signup: status %d body %s", rec.Code, rec.Body.String())
	}
	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &out)
	if out.Token == "" {
		t.Fatal("login returned empty token")
	}
	return out.Token
}

func TestScanAnonymous(t *testing.T) {
	t.Parallel()

	h, ledger := testApp(t, &stubClassifier{
		verdict: domain.Verdict{Prediction: domain.PredictionLegitimate, Confidence: 92},
	})

	rec := doJSON(t, h, http.MethodPost, "/api/scan", "", map[string]string{"url": "http://example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var out struct {
		URL        string  `json:"url"`
		Prediction string  `json:"prediction"`
		Confidence float64 `json:"confidence"`
		Message    string  `json:"message"`
	}
	decodeBody(t, rec, &out)
	if out.URL != "http://example.com" || out.Prediction != "legitimate" || out.Confidence != 92 {
		t.Errorf("unexpected result: %+v", out)
	}
	if out.Message != "URL appears to be legitimate." {
		t.Errorf("message = %q", out.Message)
	}
	if len(ledger.recs) != 0 {
		t.Errorf("anonymous scan must not be persisted")
	}
}

func TestScanAuthenticatedPersists(t *testing.T) {
	t.Parallel()

	h, ledger := testApp(t, &stubClassifier{
		verdict: domain.Verdict{Prediction: domain.PredictionPhishing, Confidence: 88},
	})
	token := signupAndLogin(t, h, "dave@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/scan", token, map[string]string{"url": "http://bad.test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Message string `json:"message"`
	}
	decodeBody(t, rec, &out)
	if out.Message != "Warning! URL appears to be a phishing site." {
		t.Errorf("message = %q", out.Message)
	}
	if len(ledger.recs) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(ledger.recs))
	}
	if ledger.recs[0].URL != "http://bad.test" {
		t.Errorf("unexpected record: %+v", ledger.recs[0])
	}
}

func TestScanConcurrentSameUser(t *testing.T) {
	t.Parallel()

	h, _ := testApp(t, &stubClassifier{
		verdict: domain.Verdict{Prediction: domain.PredictionLegitimate, Confidence: 80},
	})
	token := signupAndLogin(t, h, "judy@example.com")

	urls := []string{"http://one.example.com", "http://two.example.com"}
	codes := make([]int, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			rec := doJSON(t, h, http.MethodPost, "/api/scan", token, map[string]string{"url": url})
			codes[i] = rec.Code
		}(i, url)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("scan %d: status = %d, want 200", i, code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/history/recent", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recent: status = %d", rec.Code)
	}
	var out struct {
		Scans []struct {
			URL string `json:"url"`
		} `json:"scans"`
		Total int64 `json:"total"`
	}
	decodeBody(t, rec, &out)
	if out.Total != 2 || len(out.Scans) != 2 {
		t.Fatalf("total = %d, scans = %d, want both submissions recorded", out.Total, len(out.Scans))
	}
	seen := map[string]bool{}
	for _, s := range out.Scans {
		seen[s.URL] = true
	}
	for _, url := range urls {
		if !seen[url] {
			t.Errorf("submission %s missing from recent history", url)
		}
	}
}

func TestScanErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		clfErr     error
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{"classifier unreachable", domain.ErrClassifierUnreachable, map[string]string{"url": "http://x.test"}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"classifier timeout", domain.ErrClassifierUnavailable, map[string]string{"url": "http://x.test"}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"classifier 5xx", domain.ErrClassifierServerError, map[string]string{"url": "http://x.test"}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"malformed verdict", domain.ErrClassifierMalformed, map[string]string{"url": "http://x.test"}, http.StatusBadGateway, "SERVICE_ERROR"},
		{"empty url", nil, map[string]string{"url": ""}, http.StatusBadRequest, "INVALID_REQUEST"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h, _ := testApp(t, &stubClassifier{
				verdict: domain.Verdict{Prediction: domain.PredictionLegitimate, Confidence: 50},
				err:     tc.clfErr,
			})
			rec := doJSON(t, h, http.MethodPost, "/api/scan", "", tc.body)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tc.wantCode {
				t.Errorf("code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestSignupValidationAndConflict(t *testing.T) {
	t.Parallel()
	h, _ := testApp(t, &stubClassifier{})

	t.Run("bad email", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "nope", "password": "hunter22"})
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "INVALID_REQUEST" {
			t.Errorf("status %d code %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("short password", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "a@b.co", "password": "abc"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		creds := map[string]string{"email": "erin@example.com", "password": "hunter22"}
		if rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", "", creds); rec.Code != http.StatusCreated {
			t.Fatalf("first signup failed: %d", rec.Code)
		}
		rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", "", creds)
		if rec.Code != http.StatusConflict || errorCode(t, rec) != "EMAIL_TAKEN" {
			t.Errorf("status %d body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("wrong password on login", func(t *testing.T) {
		creds := map[string]string{"email": "frank@example.com", "password": "hunter22"}
		if rec := doJSON(t, h, http.MethodPost, "/api/auth/signup", "", creds); rec.Code != http.StatusCreated {
			t.Fatalf("signup failed: %d", rec.Code)
		}
		rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "frank@example.com", "password": "wrong"})
		if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "INVALID_CREDENTIALS" {
			t.Errorf("status %d body %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHistoryRecent(t *testing.T) {
	t.Parallel()

	h, _ := testApp(t, &stubClassifier{
		verdict: domain.Verdict{Prediction: domain.PredictionPhishing, Confidence: 75},
	})

	t.Run("anonymous gets note", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/history/recent", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var out struct {
			Scans []json.RawMessage `json:"scans"`
			Note  string            `json:"note"`
		}
		decodeBody(t, rec, &out)
		if out.Note == "" {
			t.Error("expected sign-in note for anonymous caller")
		}
		if out.Scans == nil {
			t.Error("scans should be [], not null")
		}
	})

	t.Run("authenticated sees own scans", func(t *testing.T) {
		token := signupAndLogin(t, h, "grace@example.com")
		for i := 0; i < 3; i++ {
			url := fmt.Sprintf("http://bad%d.test", i)
			if rec := doJSON(t, h, http.MethodPost, "/api/scan", token, map[string]string{"url": url}); rec.Code != http.StatusOK {
				t.Fatalf("scan failed: %d", rec.Code)
			}
		}

		rec := doJSON(t, h, http.MethodGet, "/api/history/recent", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var out struct {
			Scans         []json.RawMessage `json:"scans"`
			Total         int64             `json:"total"`
			PhishingFound int64             `json:"phishingFound"`
		}
		decodeBody(t, rec, &out)
		if out.Total != 3 || len(out.Scans) != 3 {
			t.Errorf("total = %d, scans = %d, want 3/3", out.Total, len(out.Scans))
		}
		if out.PhishingFound != 3 {
			t.Errorf("phishingFound = %d, want 3", out.PhishingFound)
		}

		rec = doJSON(t, h, http.MethodGet, "/api/history/recent?limit=2", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		decodeBody(t, rec, &out)
		if len(out.Scans) != 2 {
			t.Errorf("limit=2 returned %d scans", len(out.Scans))
		}
		if out.Total != 3 {
			t.Errorf("total should still count all records, got %d", out.Total)
		}
	})
}

func TestHistoryRequiresAuth(t *testing.T) {
	t.Parallel()
	h, _ := testApp(t, &stubClassifier{})

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/history"},
		{http.MethodDelete, "/api/history/some-id"},
		{http.MethodPost, "/api/history/export"},
	} {
		rec := doJSON(t, h, req.method, req.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", req.method, req.path, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != "UNAUTHORIZED" {
			t.Errorf("%s %s: code = %q, want UNAUTHORIZED (body %s)", req.method, req.path, code, rec.Body.String())
		}
	}
}

func TestHistoryDelete(t *testing.T) {
	t.Parallel()

	h, ledger := testApp(t, &stubClassifier{
		verdict: domain.Verdict{Prediction: domain.PredictionLegitimate, Confidence: 60},
	})
	token := signupAndLogin(t, h, "heidi@example.com")
	other := signupAndLogin(t, h, "ivan@example.com")

	if rec := doJSON(t, h, http.MethodPost, "/api/scan", token, map[string]string{"url": "http://example.com"}); rec.Code != http.StatusOK {
		t.Fatalf("scan failed: %d", rec.Code)
	}
	if len(ledger.recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(ledger.recs))
	}
	id := string(ledger.recs[0].ID)

	t.Run("cross-owner delete is 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, "/api/history/"+id, other, nil)
		if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
			t.Errorf("status %d body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("owner delete succeeds", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, "/api/history/"+id, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
		}
		var out struct {
			Deleted bool `json:"deleted"`
		}
		decodeBody(t, rec, &out)
		if !out.Deleted {
			t.Error("expected deleted=true")
		}
	})

	t.Run("second delete is 404", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodDelete, "/api/history/"+id, token, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestStaticPages(t *testing.T) {
	t.Parallel()
	h, _ := testApp(t, &stubClassifier{})

	for _, path := range []string{"/", "/login", "/signup", "/dashboard"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d", path, rec.Code)
			continue
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("GET %s: content-type = %q", path, ct)
		}
	}
}
