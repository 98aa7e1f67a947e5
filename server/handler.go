package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tagpipe/config"
	"tagpipe/correction"
	"tagpipe/format"
	"tagpipe/logger"
	"tagpipe/parser"
	"tagpipe/types"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the tag pipeline over HTTP. It holds no tag state between
// requests; every call works only on its own request body.
type Handler struct {
	config     *config.Config
	validator  *correction.Validator
	serializer *format.Serializer
	log        *logger.ObservabilityLogger
	metrics    *Metrics
	registry   *prometheus.Registry
}

// NewHandler creates a handler with its own metrics registry
func NewHandler(cfg *config.Config, obsLogger *logger.ObservabilityLogger) *Handler {
	registry := prometheus.NewRegistry()
	return &Handler{
		config: cfg,
		validator: correction.NewValidator(
			correction.WithLongEntryLimit(cfg.LongEntryLimit),
			correction.WithLogFunc(obsLogger.Event),
		),
		serializer: format.NewSerializer(cfg.FormatOptions),
		log:        obsLogger,
		metrics:    NewMetrics(registry),
		registry:   registry,
	}
}

// Routes returns the HTTP routes for the service
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleRoot)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/v1/tokenize", h.instrument("tokenize", h.HandleTokenize))
	mux.HandleFunc("/v1/sanitize", h.instrument("sanitize", h.HandleSanitize))
	mux.HandleFunc("/v1/repair", h.instrument("repair", h.HandleRepair))
	mux.HandleFunc("/v1/serialize", h.instrument("serialize", h.HandleSerialize))
	mux.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	return mux
}

// TokenizeRequest is the body of POST /v1/tokenize
type TokenizeRequest struct {
	Text   string `json:"text"`
	Format string `json:"format,omitempty"`
}

// TokenizeResponse carries the tokens, the tags built from them and the rendered prompt
type TokenizeResponse struct {
	Tokens []types.Token `json:"tokens"`
	Tags   []types.Tag   `json:"tags"`
	Format string        `json:"format"`
	Output string        `json:"output"`
}

// SanitizeRequest is the body of POST /v1/sanitize
type SanitizeRequest struct {
	Raw string `json:"raw"`
}

// SanitizeResponse carries the narrowed record text
type SanitizeResponse struct {
	Sanitized string `json:"sanitized"`
	HasRecord bool   `json:"has_record"`
}

// RepairRequest is the body of POST /v1/repair: raw model output to recover tags from
type RepairRequest struct {
	Raw    string `json:"raw"`
	Format string `json:"format,omitempty"`
}

// RepairResponse carries the validated tags, the repair report and the rendered prompt
type RepairResponse struct {
	Pairs  []types.Tag       `json:"pairs"`
	Report correction.Report `json:"report"`
	Format string            `json:"format"`
	Output string            `json:"output"`
}

// SerializeTag is a caller-supplied tag. A missing weight means 1.0; any other
// weight is clamped into range.
type SerializeTag struct {
	ID       string         `json:"id,omitempty"`
	EN       string         `json:"en"`
	JA       string         `json:"ja,omitempty"`
	Weight   *float64       `json:"weight,omitempty"`
	Category types.Category `json:"category"`
}

// SerializeRequest is the body of POST /v1/serialize. An empty Format renders every format.
type SerializeRequest struct {
	Tags     []SerializeTag `json:"tags"`
	Format   string         `json:"format,omitempty"`
	Language string         `json:"language,omitempty"`
}

// SerializeResponse carries one rendered prompt or all of them
type SerializeResponse struct {
	Format  string            `json:"format,omitempty"`
	Output  string            `json:"output,omitempty"`
	Outputs map[string]string `json:"outputs,omitempty"`
}

// ErrorResponse is returned for any failed request. Raw echoes undecodable model output.
type ErrorResponse struct {
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

// HandleTokenize splits user-typed prompt text into weighted tags
func (h *Handler) HandleTokenize(w http.ResponseWriter, r *http.Request) {
	var req TokenizeRequest
	if !h.decode(w, r, &req) {
		return
	}

	f, ok := h.resolveFormat(w, req.Format)
	if !ok {
		return
	}

	tokens := parser.Tokenize(req.Text)
	tags := parser.TokensToTags(tokens, uuid.NewString)

	h.writeJSON(w, http.StatusOK, TokenizeResponse{
		Tokens: nonNil(tokens),
		Tags:   tags,
		Format: f.String(),
		Output: h.serializer.MustSerialize(tags, f),
	})
}

// HandleSanitize narrows raw model output to its record span
func (h *Handler) HandleSanitize(w http.ResponseWriter, r *http.Request) {
	var req SanitizeRequest
	if !h.decode(w, r, &req) {
		return
	}

	sanitized := parser.Sanitize(req.Raw)
	h.writeJSON(w, http.StatusOK, SanitizeResponse{
		Sanitized: sanitized,
		HasRecord: parser.HasRecordSpan(sanitized),
	})
}

// HandleRepair recovers validated tags from raw model output
func (h *Handler) HandleRepair(w http.ResponseWriter, r *http.Request) {
	var req RepairRequest
	if !h.decode(w, r, &req) {
		return
	}

	f, ok := h.resolveFormat(w, req.Format)
	if !ok {
		return
	}

	requestID := GetRequestID(r.Context())
	record, report, err := h.validator.ForRequest(requestID).Repair(req.Raw)
	if err != nil {
		var parseErr *correction.RecordParseError
		if errors.As(err, &parseErr) {
			h.metrics.ParseFailures.Inc()
			h.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Raw: parseErr.Raw})
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.metrics.EntriesDropped.Add(float64(len(report.Dropped)))
	h.metrics.EntriesSplit.Add(float64(report.Split))

	h.writeJSON(w, http.StatusOK, RepairResponse{
		Pairs:  record.Pairs,
		Report: report,
		Format: f.String(),
		Output: h.serializer.MustSerialize(record.Pairs, f),
	})
}

// HandleSerialize renders caller-supplied tags
func (h *Handler) HandleSerialize(w http.ResponseWriter, r *http.Request) {
	var req SerializeRequest
	if !h.decode(w, r, &req) {
		return
	}

	tags := make([]types.Tag, 0, len(req.Tags))
	for i, t := range req.Tags {
		tag, err := types.Tag{ID: t.ID, Weight: types.DefaultWeight, Category: t.Category}.WithText(t.EN, t.JA)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("tags[%d]: %w", i, err))
			return
		}
		if t.Weight != nil {
			tag = tag.WithWeight(*t.Weight)
		}
		tags = append(tags, tag)
	}

	serializer := h.serializer
	if req.Language != "" {
		opts := serializer.Options()
		opts.Language = types.ParseLanguage(req.Language)
		serializer = format.NewSerializer(opts)
	}

	if req.Format == "" {
		outputs := make(map[string]string, len(format.AllFormats))
		for f, out := range serializer.SerializeAll(tags) {
			outputs[f.String()] = out
		}
		h.writeJSON(w, http.StatusOK, SerializeResponse{Outputs: outputs})
		return
	}

	f, ok := h.resolveFormat(w, req.Format)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, SerializeResponse{
		Format: f.String(),
		Output: serializer.MustSerialize(tags, f),
	})
}

// resolveFormat parses id, falling back to the configured default when empty
func (h *Handler) resolveFormat(w http.ResponseWriter, id string) (format.Format, bool) {
	if id == "" {
		return h.config.DefaultFormat, true
	}
	f, err := format.ParseFormat(id)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	return f, true
}

// decode reads a POST JSON body into v, writing the error response itself on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return false
	}

	body := http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		h.log.Warn(logger.ComponentServer, logger.CategoryWarning, GetRequestID(r.Context()), "Invalid request body", map[string]interface{}{
			"error": err.Error(),
		})
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error(logger.ComponentServer, logger.CategoryError, "", "Failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleRoot provides basic information about the service
func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	formats := make([]string, 0, len(format.AllFormats))
	for _, f := range format.AllFormats {
		formats = append(formats, f.String())
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "tagpipe",
		"status":  "running",
		"formats": formats,
		"endpoints": []string{
			"POST /v1/tokenize - Split prompt text into weighted tags",
			"POST /v1/sanitize - Narrow model output to its JSON record",
			"POST /v1/repair - Recover validated tags from model output",
			"POST /v1/serialize - Render tags for a target format",
			"GET /health - Health check",
			"GET /metrics - Prometheus metrics",
		},
	})
}

// handleHealth provides a simple health check endpoint
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func nonNil(tokens []types.Token) []types.Token {
	if tokens == nil {
		return []types.Token{}
	}
	return tokens
}
