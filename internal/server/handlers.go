package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/alacambra/presidio-anonymization/internal/anonymizer"
	"github.com/alacambra/presidio-anonymization/internal/artifact"
	"github.com/alacambra/presidio-anonymization/internal/entity"
	"github.com/alacambra/presidio-anonymization/internal/ledger"
	"github.com/alacambra/presidio-anonymization/internal/pipeline"
	"github.com/alacambra/presidio-anonymization/internal/requestctx"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 1000
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// decodeJSON reads a size-limited JSON body into v and writes the error
// response itself when that fails.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// writeProcessError maps core errors to HTTP responses.
func writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entity.ErrUnsupportedLanguage),
		errors.Is(err, entity.ErrUnsupportedEntity),
		errors.Is(err, entity.ErrInvalidThreshold),
		errors.Is(err, entity.ErrInvalidEncoding):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, anonymizer.ErrUnknownSelection):
		writeError(w, http.StatusBadRequest, "invalid_selection", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request_failed")
		writeError(w, http.StatusInternalServerError, "internal", "anonymization failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"detectors": s.pool.Len(),
		"ledger":    s.ledger != nil,
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"languages": entity.Languages(),
		"default":   s.defaults.Language(),
	})
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entities": entity.Types(),
		"enabled":  s.defaults.Entities(),
	})
}

// optionsRequest carries per-request overrides of the server defaults.
type optionsRequest struct {
	Language      string   `json:"language"`
	Entities      []string `json:"entities"`
	MinConfidence *float64 `json:"min_confidence"`
}

func (s *Server) options(req optionsRequest) (entity.Options, error) {
	language := req.Language
	if language == "" {
		language = s.defaults.Language()
	}
	entities := req.Entities
	if len(entities) == 0 {
		entities = s.defaults.Entities()
	}
	minConfidence := s.defaults.MinConfidence()
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
	}
	return entity.NewOptions(language, entities, minConfidence)
}

type analyzeRequest struct {
	optionsRequest
	Text string `json:"text"`
}

type analyzeResponse struct {
	Language      string        `json:"language"`
	MinConfidence float64       `json:"min_confidence_score"`
	Accepted      []entity.Span `json:"accepted"`
	Rejected      []entity.Span `json:"rejected"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	opts, err := s.options(req.optionsRequest)
	if err != nil {
		writeProcessError(w, r, err)
		return
	}

	accepted, rejected, err := anonymizer.NewEngine(opts, s.pool).Analyze(r.Context(), req.Text)
	if err != nil {
		writeProcessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Language:      opts.Language(),
		MinConfidence: opts.MinConfidence(),
		Accepted:      nonNil(accepted),
		Rejected:      nonNil(rejected),
	})
}

type anonymizeRequest struct {
	optionsRequest
	Text     string `json:"text"`
	Document string `json:"document"`
	// Keep lists the seq values of accepted spans to anonymize, as returned
	// by /v1/analyze with the same options. Absent keeps every span.
	Keep   *[]int `json:"keep"`
	Cancel bool   `json:"cancel"`
}

type anonymizeResponse struct {
	Document       string                     `json:"document"`
	Cancelled      bool                       `json:"cancelled"`
	AnonymizedText string                     `json:"anonymized_text,omitempty"`
	Mapping        *anonymizer.MappingRecord  `json:"mapping,omitempty"`
	Excluded       *anonymizer.ExcludedRecord `json:"excluded,omitempty"`
	RunID          string                     `json:"run_id,omitempty"`
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if req.Document == "" {
		req.Document = "request"
	}
	opts, err := s.options(req.optionsRequest)
	if err != nil {
		writeProcessError(w, r, err)
		return
	}

	var selector anonymizer.Selector
	switch {
	case req.Cancel:
		selector = staticSelector(anonymizer.Cancel())
	case req.Keep != nil:
		selector = staticSelector(anonymizer.Keep(*req.Keep...))
	}

	runner := pipeline.NewRunner(anonymizer.NewEngine(opts, s.pool), nil, pipeline.WithRecorder(s.recorder))
	res, run, err := runner.ProcessText(r.Context(), pipeline.SourceHTTP, req.Document, req.Text, selector)
	if err != nil {
		writeProcessError(w, r, err)
		return
	}

	resp := anonymizeResponse{Document: res.Document, Cancelled: res.Cancelled}
	if !res.Cancelled {
		resp.AnonymizedText = res.AnonymizedText
		resp.Mapping = res.Mapping
		resp.Excluded = res.Excluded
	}
	if run != nil {
		resp.RunID = run.ID
	}
	log.Info().
		Str("client", requestctx.ClientID(r.Context())).
		Str("document", res.Document).
		Bool("cancelled", res.Cancelled).
		Int("placeholders", len(res.Mappings)).
		Str("run_id", resp.RunID).
		Msg("anonymize_request")
	writeJSON(w, http.StatusOK, resp)
}

func staticSelector(sel anonymizer.Selection) anonymizer.Selector {
	return anonymizer.SelectorFunc(func(_ context.Context, _ string, _ []entity.Span) (anonymizer.Selection, error) {
		return sel, nil
	})
}

type restoreRequest struct {
	Text    string          `json:"text"`
	Mapping json.RawMessage `json:"mapping"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Mapping) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "mapping is required")
		return
	}
	rec, err := artifact.ParseMapping(req.Mapping)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_mapping", err.Error())
		return
	}
	text, replaced := artifact.Restore(req.Text, rec.Mappings)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"text":     text,
		"replaced": replaced,
	})
}

func (s *Server) handleRunsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter{
		Document: q.Get("document"),
		Source:   q.Get("source"),
		Limit:    defaultRunsLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		if n > maxRunsLimit {
			n = maxRunsLimit
		}
		f.Limit = n
	}
	var err error
	if f.From, err = parseTimeParam(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "from: "+err.Error())
		return
	}
	if f.To, err = parseTimeParam(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "to: "+err.Error())
		return
	}

	runs, err := s.ledger.List(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("ledger_list_error")
		writeError(w, http.StatusInternalServerError, "internal", "listing runs failed")
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.ledger.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "run "+id+" not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", id).Msg("ledger_get_error")
		writeError(w, http.StatusInternalServerError, "internal", "reading run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	valid, err := s.ledger.Verify(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "run "+id+" not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", id).Msg("ledger_verify_error")
		writeError(w, http.StatusInternalServerError, "internal", "verifying run failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "valid": valid})
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates.
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func nonNil(spans []entity.Span) []entity.Span {
	if spans == nil {
		return []entity.Span{}
	}
	return spans
}
