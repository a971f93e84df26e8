package internal

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/mailcast/middlewares"
	"github.com/dmitrymomot/mailcast/pkg/campaign"
	"github.com/dmitrymomot/mailcast/pkg/health"
	"github.com/dmitrymomot/mailcast/pkg/logger"
	"github.com/dmitrymomot/mailcast/pkg/source"
	"github.com/dmitrymomot/mailcast/pkg/storage"
	"github.com/dmitrymomot/mailcast/pkg/store"
	"github.com/dmitrymomot/mailcast/pkg/template"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxUploadSize  = 32 << 20 // 32MB
	maxBodySize           = 1 << 20  // 1MB
)

type handlerConfig struct {
	uploads   storage.Storage
	checks    health.Checks
	logger    *slog.Logger
	timeout   time.Duration
	maxUpload int64
}

// HandlerOption configures the control API.
type HandlerOption func(*handlerConfig)

// WithUploads enables POST /lists, storing uploaded CSV files in s.
func WithUploads(s storage.Storage) HandlerOption {
	return func(c *handlerConfig) {
		c.uploads = s
	}
}

// WithReadinessChecks sets the checks behind /health/ready.
func WithReadinessChecks(checks health.Checks) HandlerOption {
	return func(c *handlerConfig) {
		c.checks = checks
	}
}

// WithHandlerLogger sets the logger for request errors and panics.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(c *handlerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestTimeout bounds API requests. Default: 30s.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(c *handlerConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxUploadSize bounds uploaded list files. Default: 32MB.
func WithMaxUploadSize(n int64) HandlerOption {
	return func(c *handlerConfig) {
		if n > 0 {
			c.maxUpload = n
		}
	}
}

type api struct {
	engine *Engine
	cfg    *handlerConfig
}

// NewHandler returns the HTTP control API of the engine.
func NewHandler(e *Engine, opts ...HandlerOption) http.Handler {
	cfg := &handlerConfig{
		logger:    logger.NewNope(),
		timeout:   defaultRequestTimeout,
		maxUpload: defaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	a := &api{engine: e, cfg: cfg}

	r := chi.NewRouter()
	r.Use(middlewares.RequestID(), middlewares.Recover(cfg.logger))

	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(cfg.checks, health.WithLogger(cfg.logger)))

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Timeout(cfg.timeout))

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", a.handle(a.createCampaign))
			r.Get("/", a.handle(a.listCampaigns))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handle(a.getCampaign))
				r.Post("/start", a.handle(a.startCampaign))
				r.Post("/pause", a.handle(a.lifecycle(e.Pause)))
				r.Post("/resume", a.handle(a.lifecycle(e.Resume)))
				r.Post("/cancel", a.handle(a.lifecycle(e.Cancel)))
				r.Get("/progress", a.handle(a.progress))
				r.Get("/attempts", a.handle(a.attempts))
				r.Get("/recipients", a.handle(a.recipients))
			})
		})

		r.Route("/templates/{id}", func(r chi.Router) {
			r.Get("/", a.handle(a.getTemplate))
			r.Put("/", a.handle(a.putTemplate))
			r.Post("/preview", a.handle(a.preview))
		})

		r.Post("/lists", a.handle(a.uploadList))
	})

	return r
}

// handle adapts an error-returning handler and renders its error.
func (a *api) handle(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		httpErr := toHTTPError(err)
		httpErr.RequestID = logger.RequestIDFromContext(r.Context())
		if httpErr.Code >= http.StatusInternalServerError {
			a.cfg.logger.ErrorContext(r.Context(), "request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
		}
		writeJSON(w, httpErr.Code, httpErr)
	}
}

func (a *api) createCampaign(w http.ResponseWriter, r *http.Request) error {
	var req CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	c, err := a.engine.Create(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, c)
	return nil
}

func (a *api) listCampaigns(w http.ResponseWriter, r *http.Request) error {
	var statuses []campaign.Status
	for _, s := range r.URL.Query()["status"] {
		statuses = append(statuses, campaign.Status(s))
	}
	list, err := a.engine.List(r.Context(), statuses...)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*campaign.Campaign{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (a *api) getCampaign(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}
	c, err := a.engine.Get(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

// startCampaign starts now, or at ?at=RFC3339 through the job queue.
func (a *api) startCampaign(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}

	var c *campaign.Campaign
	if at := r.URL.Query().Get("at"); at != "" {
		t, perr := time.Parse(time.RFC3339, at)
		if perr != nil {
			return ErrBadRequest("invalid start time, expected RFC3339", WithError(perr))
		}
		c, err = a.engine.Schedule(r.Context(), id, t)
	} else {
		c, err = a.engine.Start(r.Context(), id)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

func (a *api) lifecycle(fn func(context.Context, uuid.UUID) (*campaign.Campaign, error)) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		id, err := campaignID(r)
		if err != nil {
			return err
		}
		c, err := fn(r.Context(), id)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, c)
		return nil
	}
}

func (a *api) progress(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}
	snap, err := a.engine.Progress(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, snap)
	return nil
}

func (a *api) attempts(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}

	q := store.AttemptQuery{CampaignID: id}
	query := r.URL.Query()
	if v := query.Get("recipient_id"); v != "" {
		if q.RecipientID, err = uuid.Parse(v); err != nil {
			return ErrBadRequest("invalid recipient_id", WithError(err))
		}
	}
	if q.Limit, err = intQuery(query.Get("limit")); err != nil {
		return ErrBadRequest("invalid limit", WithError(err))
	}
	if q.Offset, err = intQuery(query.Get("offset")); err != nil {
		return ErrBadRequest("invalid offset", WithError(err))
	}

	page, err := a.engine.Attempts(r.Context(), q)
	if err != nil {
		return err
	}
	if page.Attempts == nil {
		page.Attempts = []campaign.Attempt{}
	}
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (a *api) recipients(w http.ResponseWriter, r *http.Request) error {
	id, err := campaignID(r)
	if err != nil {
		return err
	}
	var statuses []campaign.RecipientStatus
	for _, s := range r.URL.Query()["status"] {
		statuses = append(statuses, campaign.RecipientStatus(s))
	}
	list, err := a.engine.Recipients(r.Context(), id, statuses...)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*campaign.Recipient{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (a *api) getTemplate(w http.ResponseWriter, r *http.Request) error {
	t, err := a.engine.Template(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, templateResponse(t))
	return nil
}

// putTemplate stores the raw request body as the template source.
func (a *api) putTemplate(w http.ResponseWriter, r *http.Request) error {
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return ErrBadRequest("failed to read template body", WithError(err))
	}
	t, err := a.engine.PutTemplate(r.Context(), chi.URLParam(r, "id"), content)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, templateResponse(t))
	return nil
}

type previewRequest struct {
	Variables map[string]string `json:"variables"`
}

func (a *api) preview(w http.ResponseWriter, r *http.Request) error {
	var req previewRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
	}
	msg, err := a.engine.Preview(r.Context(), chi.URLParam(r, "id"), req.Variables)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, msg)
	return nil
}

type uploadResponse struct {
	SourceRef string `json:"source_ref"`
	Key       string `json:"key"`
	Rows      int    `json:"rows"`
}

// uploadList stores a CSV recipient list, from a multipart "file" field or the raw body,
// and returns the source reference to create a campaign with.
func (a *api) uploadList(w http.ResponseWriter, r *http.Request) error {
	if a.cfg.uploads == nil {
		return ErrUploadsDisabled
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.maxUpload)
	filename := r.URL.Query().Get("filename")
	var reader io.Reader = r.Body
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		reader, filename = file, header.Filename
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return ErrBadRequest("failed to read upload", WithError(err))
	}
	rows, err := countRows(r.Context(), data)
	if err != nil {
		return err
	}
	if rows == 0 {
		return campaign.ErrEmptySource
	}

	key := storage.ListKey(uuid.New(), filename)
	if _, err := a.cfg.uploads.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		return err
	}

	a.cfg.logger.InfoContext(r.Context(), "recipient list uploaded",
		slog.String("key", key),
		slog.Int("rows", rows))
	writeJSON(w, http.StatusCreated, uploadResponse{SourceRef: source.ObjectRef(key), Key: key, Rows: rows})
	return nil
}

func countRows(ctx context.Context, data []byte) (int, error) {
	src, err := source.NewCSV(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	defer src.Close()
	for {
		if _, err := src.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return src.Offset(), nil
			}
			return 0, err
		}
	}
}

type templateView struct {
	template.Template
	Placeholders []string `json:"placeholders"`
}

func templateResponse(t template.Template) templateView {
	return templateView{Template: t, Placeholders: t.Placeholders()}
}

func campaignID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, ErrBadRequest("invalid campaign id", WithError(err))
	}
	return id, nil
}

func intQuery(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ErrBadRequest("invalid JSON body", WithDetail(err.Error()), WithError(err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// toHTTPError maps domain errors onto API responses.
func toHTTPError(err error) *HTTPError {
	if httpErr := AsHTTPError(err); httpErr != nil {
		return httpErr
	}

	var missing *template.MissingVariableError
	var parseErr *csv.ParseError
	switch {
	case errors.As(err, &missing):
		return ErrUnprocessable(err.Error(), WithErrorCode("missing_variable"), WithDetail(missing.Name), WithError(err))
	case errors.As(err, &parseErr):
		return ErrUnprocessable("malformed CSV", WithErrorCode("invalid_csv"), WithDetail(parseErr.Error()), WithError(err))
	case errors.Is(err, campaign.ErrNotFound):
		return ErrNotFound("campaign not found", WithErrorCode("campaign_not_found"), WithError(err))
	case errors.Is(err, template.ErrNotFound):
		return ErrNotFound("template not found", WithErrorCode("template_not_found"), WithError(err))
	case errors.Is(err, campaign.ErrInvalidTransition):
		return ErrConflict(err.Error(), WithErrorCode("invalid_transition"), WithError(err))
	case errors.Is(err, store.ErrDuplicate):
		return ErrConflict("already exists", WithErrorCode("duplicate"), WithError(err))
	case errors.Is(err, source.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return ErrUnprocessable("recipient source not found", WithErrorCode("source_not_found"), WithError(err))
	case errors.Is(err, campaign.ErrEmptySource),
		errors.Is(err, ErrEmptySourceRef),
		errors.Is(err, ErrUnknownProvider),
		errors.Is(err, source.ErrMissingEmailColumn),
		errors.Is(err, source.ErrUnknownScheme),
		errors.Is(err, source.ErrInvalidOffset),
		errors.Is(err, store.ErrInvalidQuery),
		errors.Is(err, template.ErrUnknownFormat),
		errors.Is(err, template.ErrInvalidFrontmatter),
		errors.Is(err, template.ErrRenderFailed):
		return ErrUnprocessable(err.Error(), WithErrorCode("validation_failed"), WithError(err))
	case errors.Is(err, ErrPersistenceUnavailable),
		errors.Is(err, ErrSchedulerUnavailable),
		errors.Is(err, ErrUploadsDisabled),
		errors.Is(err, ErrEngineClosed):
		return ErrServiceUnavailable(err.Error(), WithErrorCode("unavailable"), WithError(err))
	case errors.Is(err, context.DeadlineExceeded):
		return NewHTTPError(http.StatusGatewayTimeout, "request timed out", WithError(err))
	}
	return ErrInternal("internal server error", WithError(fmt.Errorf("unmapped: %w", err)))
}
