package httpserver

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appauth "github.com/phishguard/phishguard/internal/application/auth"
	appscans "github.com/phishguard/phishguard/internal/application/scans"
	domain "github.com/phishguard/phishguard/internal/domain/scans"
	"github.com/phishguard/phishguard/internal/domain/users"
	"github.com/phishguard/phishguard/internal/middleware"
)

//go:embed web
var webFS embed.FS

// errScanFailed is the fallback for submit errors outside the known
// taxonomy; clients see a stable SCAN_FAILED code.
var errScanFailed = errors.New("scan failed")

type Router struct {
	scansSvc *appscans.Service
	history  *appscans.History
	authSvc  *appauth.Service
}

func NewRouter(scansSvc *appscans.Service, history *appscans.History, authSvc *appauth.Service) http.Handler {
	r := &Router{scansSvc: scansSvc, history: history, authSvc: authSvc}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	// Static pages
	pages, _ := fs.Sub(webFS, "web")
	mux.Get("/", servePage(pages, "homepage.html"))
	mux.Get("/login", servePage(pages, "login.html"))
	mux.Get("/signup", servePage(pages, "signup.html"))
	mux.Get("/dashboard", servePage(pages, "dashboard.html"))

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/auth/signup", r.wrap(r.handleSignup))
		rt.Post("/auth/login", r.wrap(r.handleLogin))

		rt.Post("/scan", r.wrap(r.handleScan))

		rt.Get("/history/recent", r.wrap(r.handleHistoryRecent))

		rt.Group(func(auth chi.Router) {
			auth.Use(middleware.RequireAuth)
			auth.Get("/history", r.wrap(r.handleHistoryAll))
			auth.Delete("/history/{id}", r.wrap(r.handleHistoryDelete))
			auth.Post("/history/export", r.wrap(r.handleHistoryExport))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status, code := classifyError(err)
			writeJSON(w, status, map[string]any{
				"error": errorBody{Code: code, Message: err.Error()},
			})
		}
	}
}

// classifyError maps the failure taxonomy onto stable machine-readable
// codes, so clients can tell "fix your input" from "try again later"
// from "not allowed".
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, domain.ErrClassifierUnreachable),
		errors.Is(err, domain.ErrClassifierUnavailable),
		errors.Is(err, domain.ErrClassifierServerError):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	case errors.Is(err, domain.ErrClassifierMalformed):
		return http.StatusBadGateway, "SERVICE_ERROR"
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_TAKEN"
	case errors.Is(err, appauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, errScanFailed):
		return http.StatusInternalServerError, "SCAN_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// POST /api/auth/signup
// Body: {"email": "...", "password": "..."}
func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.ErrInvalidRequest
	}
	if err := middleware.ValidateEmail(body.Email); err != nil {
		return errInvalid(err)
	}
	if err := middleware.ValidatePassword(body.Password); err != nil {
		return errInvalid(err)
	}

	u, err := r.authSvc.Register(req.Context(), body.Email, body.Password)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Signup success",
		"id":      u.ID,
	})
}

// POST /api/auth/login
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.ErrInvalidRequest
	}

	token, username, err := r.authSvc.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Login success",
		"token":    token,
		"username": username,
	})
}

// POST /api/scan
// Body: {"url": "..."}. Works with or without an identity; only
// authenticated scans land in the history ledger.
func (r *Router) handleScan(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.ErrInvalidRequest
	}

	cmd := appscans.SubmitScanCommand{
		URL:       middleware.SanitizeString(body.URL),
		Requester: middleware.IdentityFromContext(req.Context()),
	}

	res, err := r.scansSvc.Submit(req.Context(), cmd)
	if err != nil {
		middleware.IncrementScansFailed()
		if errors.Is(err, domain.ErrInvalidRequest) || appscans.IsClassifierError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errScanFailed, err)
	}

	middleware.IncrementScans()
	if res.Prediction == domain.PredictionPhishing {
		middleware.IncrementScansPhishing()
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /api/history/recent?limit=
func (r *Router) handleHistoryRecent(w http.ResponseWriter, req *http.Request) error {
	ident := middleware.IdentityFromContext(req.Context())
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	limit = middleware.ValidateLimit(limit)

	summary, err := r.history.ListRecent(req.Context(), ident, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}

// GET /api/history?page=&page_size=
func (r *Router) handleHistoryAll(w http.ResponseWriter, req *http.Request) error {
	ident := middleware.IdentityFromContext(req.Context())
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))
	size = middleware.ValidatePageSize(size)

	list, err := r.history.ListAll(req.Context(), ident, page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// DELETE /api/history/{id}
func (r *Router) handleHistoryDelete(w http.ResponseWriter, req *http.Request) error {
	ident := middleware.IdentityFromContext(req.Context())
	id := chi.URLParam(req, "id")

	if err := r.history.Delete(req.Context(), ident, domain.RecordID(id)); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// POST /api/history/export
func (r *Router) handleHistoryExport(w http.ResponseWriter, req *http.Request) error {
	ident := middleware.IdentityFromContext(req.Context())

	url, err := r.history.Export(req.Context(), ident)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func servePage(pages fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		data, err := fs.ReadFile(pages, name)
		if err != nil {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}
}

func errInvalid(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
