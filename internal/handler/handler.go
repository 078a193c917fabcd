// Package handler exposes the catalog controller over a JSON HTTP API, one
// controller per session cookie.
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/cocktail-catalog/internal/catalog"
	"github.com/xenking/cocktail-catalog/pkg/httpmiddleware"
)

// SessionCookie names the cookie holding the session id.
const SessionCookie = "catalog_session"

const (
	maxBodySize        = 64 << 10
	defaultWaitTimeout = 5 * time.Second
)

// Sessions resolves session ids to controllers.
type Sessions interface {
	Acquire(id string) (string, *catalog.Controller, error)
}

// Config holds the non-dependency settings of the Handler.
type Config struct {
	DisplayName string
	DisplayID   string
	// DisplayNameDefault and DisplayIDDefault report that the identity is the
	// built-in placeholder rather than configured.
	DisplayNameDefault bool
	DisplayIDDefault   bool
	// WaitTimeout bounds ?wait=true requests.
	WaitTimeout time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// Handler serves the catalog API.
type Handler struct {
	cfg      Config
	sessions Sessions
	guard    []httpmiddleware.Middleware
	validate *validator.Validate
}

// Option configures optional Handler dependencies.
type Option func(*Handler)

// WithSessionGuard runs mw in front of session resolution, before a new
// session can be created.
func WithSessionGuard(mw httpmiddleware.Middleware) Option {
	return func(h *Handler) { h.guard = append(h.guard, mw) }
}

// New returns a Handler backed by sessions.
func New(cfg Config, sessions Sessions, opts ...Option) *Handler {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}
	h := &Handler{
		cfg:      cfg,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API router, meant to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/about", h.about)
	r.Group(func(r chi.Router) {
		for _, mw := range h.guard {
			r.Use(mw)
		}
		r.Use(h.withSession)

		r.Get("/catalog", h.getCatalog)
		r.Put("/catalog/search", h.setSearch)
		r.Put("/catalog/category", h.setCategory)
		r.Put("/catalog/sort", h.setSort)
		r.Put("/catalog/page", h.setPage)
		r.Post("/catalog/clear", h.clear)
		r.Post("/catalog/retry", h.retry)

		r.Get("/catalog/selection", h.getSelection)
		r.Post("/catalog/selection", h.selectProduct)
		r.Delete("/catalog/selection", h.dismiss)

		r.Get("/categories", h.categories)
	})
	return r
}

type controllerKey struct{}

func controllerFrom(ctx context.Context) *catalog.Controller {
	c, _ := ctx.Value(controllerKey{}).(*catalog.Controller)
	return c
}

// withSession attaches the caller's controller, issuing a new session cookie
// when the request has none or an expired one.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var current string
		if c, err := r.Cookie(SessionCookie); err == nil {
			current = c.Value
		}

		id, ctrl, err := h.sessions.Acquire(current)
		if err != nil {
			h.fail(w, r, errors.Wrap(err, "acquire session"))
			return
		}
		if id != current {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   h.cfg.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := zctx.With(r.Context(), zap.String("session", id))
		ctx = context.WithValue(ctx, controllerKey{}, ctrl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiError is an error with a client facing status and message.
type apiError struct {
	Code    int
	Message string
}

func (e *apiError) Error() string { return e.Message }

func badRequest(format string, args ...any) error {
	return &apiError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// fail maps err to a status code and writes the error body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		apiErr *apiError
		vErrs  validator.ValidationErrors
	)
	switch {
	case errors.As(err, &apiErr):
		httpmiddleware.WriteError(w, apiErr.Code, apiErr.Message)
	case errors.As(err, &vErrs):
		httpmiddleware.WriteError(w, http.StatusBadRequest, validationMessage(vErrs))
	case errors.Is(err, catalog.ErrInvalidSort):
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid sort mode")
	case errors.Is(err, catalog.ErrNotOnPage):
		httpmiddleware.WriteError(w, http.StatusNotFound, "product is not on the current page")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "oneof":
			parts = append(parts, field+" must be one of: "+e.Param())
		case "min", "gte":
			parts = append(parts, field+" must be at least "+e.Param())
		case "max", "lte":
			parts = append(parts, field+" must be at most "+e.Param())
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

// request is a JSON request body.
type request interface {
	decode(d *jx.Decoder) error
}

// bind decodes and validates the request body into v.
func (h *Handler) bind(r *http.Request, v request) error {
	d := jx.Decode(io.LimitReader(r.Body, maxBodySize), 512)
	if d.Next() != jx.Object {
		return badRequest("request body must be a JSON object")
	}
	if err := v.decode(d); err != nil {
		return badRequest("malformed request body")
	}
	return h.validate.Struct(v)
}

// wait blocks until the controller is idle when the request asks for it with
// ?wait=true, bounded by WaitTimeout. Hitting the bound is not an error; the
// caller gets the loading state.
func (h *Handler) wait(r *http.Request, ctrl *catalog.Controller) {
	if r.URL.Query().Get("wait") != "true" {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.WaitTimeout)
	defer cancel()
	if err := ctrl.Idle(ctx); err != nil {
		zctx.From(r.Context()).Debug("Wait ended before idle", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
