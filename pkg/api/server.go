// Package api exposes the linker engine over HTTP. Mutating routes are fenced
// to the leaseholder; followers redirect writers rather than failing them.
package api

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/isolink-io/isolink/pkg/anchor"
	"github.com/isolink-io/isolink/pkg/graph"
	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/reports"
	"github.com/isolink-io/isolink/pkg/store"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// EngineInterface is the slice of the linker engine the server drives.
type EngineInterface interface {
	CreateComponent(id linker.ComponentID, anchor string) error
	DestroyComponent(id linker.ComponentID) error
	SetPhase(id linker.ComponentID, phase linker.Phase) error
	AddEdge(ownerID, callerID, calleeID linker.ComponentID, kind linker.EdgeKind, weight float64) error
	AddResidue(id linker.ComponentID, anchor string, context any, activation linker.Activation) error
	Canonicalize(id linker.ComponentID) (linker.ComponentID, error)
	ResolveIndirect(sourceID linker.ComponentID, targetAnchor string) (linker.ComponentID, bool, error)
	Component(id linker.ComponentID) (linker.ComponentView, error)
	Components() []linker.ComponentView
	ComponentCount() int
	Journal() *linker.Journal
}

// StoreInterface is the slice of the persistence layer the server reads.
// It may be nil when the daemon runs without durability.
type StoreInterface interface {
	QueryLinkEvents(ctx context.Context, filter store.EventFilter) ([]store.LinkRecord, error)
	ReadRecentLinkEvents(ctx context.Context, limit int) ([]store.LinkRecord, error)
	ResolutionStats(ctx context.Context, filter store.StatsFilter) ([]store.ResolutionStat, error)
	CreateWebhook(ctx context.Context, w store.WebhookConfig) error
	ListWebhooks(ctx context.Context, activeOnly bool) ([]store.WebhookConfig, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
}

// ElectionInterface reports leadership so the server can fence writes.
type ElectionInterface interface {
	IsLeader() bool
	Leader(ctx context.Context) (string, bool, error)
}

// PrunerInterface runs ad-hoc retention passes for the admin API.
type PrunerInterface interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Server is the HTTP front end of the linker daemon.
type Server struct {
	engine   EngineInterface
	store    StoreInterface
	anchors  *anchor.Registry
	election ElectionInterface
	pruner   PrunerInterface
	logger   *slog.Logger
	server   *http.Server

	authHash    string
	tlsCertFile string
	tlsKeyFile  string
}

// NewServer wires the routes and middleware. st may be nil; store-backed
// endpoints then answer 503.
func NewServer(engine EngineInterface, st StoreInterface, anchors *anchor.Registry, addr string) *Server {
	if anchors == nil {
		anchors = anchor.NewRegistry()
	}
	s := &Server{
		engine:  engine,
		store:   st,
		anchors: anchors,
		logger:  slog.Default(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/components", s.withLeaderCheck(s.withAuth(s.handleComponents)))
	mux.HandleFunc("/v1/components/", s.withLeaderCheck(s.withAuth(s.handleComponent)))
	mux.HandleFunc("/v1/canonicalize", s.withLeaderCheck(s.withAuth(s.handleCanonicalize)))
	mux.HandleFunc("/v1/resolve", s.withLeaderCheck(s.withAuth(s.handleResolve)))
	mux.HandleFunc("/v1/webhooks", s.withLeaderCheck(s.withAuth(s.handleWebhooks)))
	mux.HandleFunc("/v1/admin/prune", s.withLeaderCheck(s.withAuth(s.handlePrune)))

	mux.HandleFunc("/v1/outcomes", s.handleOutcomes)
	mux.HandleFunc("/v1/journal", s.handleJournal)
	mux.HandleFunc("/v1/graph", s.handleGraph)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/trends", s.handleTrends)
	mux.HandleFunc("/v1/reports", s.handleReports)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withLogging(s.withRecovery(withSecureHeaders(mux))),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	return s
}

// SetLogger replaces the default logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetElection installs the leadership source used to fence writes. Without
// one the server behaves as a standalone leader.
func (s *Server) SetElection(m ElectionInterface) {
	s.election = m
}

// SetPruner enables POST /v1/admin/prune.
func (s *Server) SetPruner(p PrunerInterface) {
	s.pruner = p
}

// SetAuthToken requires a bearer token on mutating requests. Only a hash is
// retained.
func (s *Server) SetAuthToken(token string) {
	if token == "" {
		s.authHash = ""
		return
	}
	s.authHash = hashToken(token)
}

// SetTLS makes Start serve HTTPS with the given certificate pair.
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.logger.Info("api listening", "addr", s.server.Addr, "tls", true)
		return s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}
	s.logger.Info("api listening", "addr", s.server.Addr, "tls", false)
	return s.server.ListenAndServe()
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := generateTraceID()
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		w.Header().Set("X-Trace-ID", traceID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		s.logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"trace_id", traceID,
		)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked",
					"panic", rec,
					"path", r.URL.Path,
					"trace_id", getTraceID(r.Context()),
				)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}

// withAuth gates mutating methods behind the configured bearer token. Reads
// stay open; the daemon is expected to sit on a private network.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authHash == "" || isReadMethod(r.Method) {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, `{"error":"missing_token"}`, http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if !hmac.Equal([]byte(hashToken(token)), []byte(s.authHash)) {
			http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// withLeaderCheck fences mutating methods to the leaseholder. Followers
// redirect writers to the leader's advertise address so clients never need a
// cluster map.
func (s *Server) withLeaderCheck(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isReadMethod(r.Method) || s.election == nil || s.election.IsLeader() {
			next(w, r)
			return
		}
		leader, ok, err := s.election.Leader(r.Context())
		if err != nil {
			s.logger.Error("leader lookup failed", "error", err)
			http.Error(w, `{"error":"no_leader"}`, http.StatusServiceUnavailable)
			return
		}
		if !ok || leader == "" {
			http.Error(w, `{"error":"no_leader"}`, http.StatusServiceUnavailable)
			return
		}
		http.Redirect(w, r, leaderURL(leader, r), http.StatusTemporaryRedirect)
	}
}

func leaderURL(leader string, r *http.Request) string {
	if !strings.Contains(leader, "://") {
		leader = "http://" + leader
	}
	return strings.TrimSuffix(leader, "/") + r.URL.RequestURI()
}

func isReadMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Leader:     s.election == nil || s.election.IsLeader(),
		Components: s.engine.ComponentCount(),
	})
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createComponent(w, r)
	case http.MethodGet:
		views := s.engine.Components()
		writeJSON(w, http.StatusOK, ListComponentsResponse{Count: len(views), Components: views})
	default:
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) createComponent(w http.ResponseWriter, r *http.Request) {
	var req CreateComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}

	id := linker.ComponentID(req.ComponentID)
	if err := s.engine.CreateComponent(id, req.Anchor); err != nil {
		s.engineError(w, err)
		return
	}
	if err := s.populateComponent(id, req); err != nil {
		// Creation is atomic to callers: tear the half-built component
		// down so a corrected retry starts clean.
		s.engine.DestroyComponent(id)
		s.engineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateComponentResponse{
		ComponentID: req.ComponentID,
		Status:      "registered",
	})
}

func (s *Server) populateComponent(id linker.ComponentID, req CreateComponentRequest) error {
	if req.Phase != "" {
		if err := s.engine.SetPhase(id, linker.Phase(req.Phase)); err != nil {
			return err
		}
	}
	for _, e := range req.Edges {
		caller := linker.ComponentID(e.CallerID)
		if caller == "" {
			caller = id
		}
		if err := s.engine.AddEdge(id, caller, linker.ComponentID(e.CalleeID), linker.EdgeKind(e.Kind), e.Weight); err != nil {
			return err
		}
	}
	for _, res := range req.Residues {
		act, err := s.buildActivation(res.Activation)
		if err != nil {
			return err
		}
		if err := s.engine.AddResidue(id, res.Anchor, res.Context, act); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) buildActivation(spec *anchor.Spec) (linker.Activation, error) {
	if spec == nil {
		return nil, nil
	}
	return s.anchors.Build(*spec)
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/components/")
	parts := strings.SplitN(rest, "/", 2)
	id := linker.ComponentID(parts[0])
	if id == "" {
		http.Error(w, `{"error":"missing_component_id"}`, http.StatusBadRequest)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			view, err := s.engine.Component(id)
			if err != nil {
				s.engineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, view)
		case http.MethodDelete:
			if err := s.engine.DestroyComponent(id); err != nil {
				s.engineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{
				"status":       "destroyed",
				"component_id": string(id),
			})
		default:
			http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "phase":
		var req PhaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
			return
		}
		if err := s.engine.SetPhase(id, linker.Phase(req.Phase)); err != nil {
			s.engineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "phase": req.Phase})
	case "edges":
		var req EdgeSpec
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
			return
		}
		caller := linker.ComponentID(req.CallerID)
		if caller == "" {
			caller = id
		}
		if err := s.engine.AddEdge(id, caller, linker.ComponentID(req.CalleeID), linker.EdgeKind(req.Kind), req.Weight); err != nil {
			s.engineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
	case "residues":
		var req ResidueSpec
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
			return
		}
		act, err := s.buildActivation(req.Activation)
		if err != nil {
			s.engineError(w, err)
			return
		}
		if err := s.engine.AddResidue(id, req.Anchor, req.Context, act); err != nil {
			s.engineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
	default:
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
	}
}

func (s *Server) handleCanonicalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req CanonicalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}

	rep, err := s.engine.Canonicalize(linker.ComponentID(req.ComponentID))
	if err != nil {
		s.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CanonicalizeResponse{
		ComponentID:    req.ComponentID,
		Representative: string(rep),
		Merged:         string(rep) != req.ComponentID,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	if req.Anchor == "" {
		http.Error(w, `{"error":"missing_anchor"}`, http.StatusBadRequest)
		return
	}

	target, linked, err := s.engine.ResolveIndirect(linker.ComponentID(req.SourceID), req.Anchor)
	if err != nil {
		s.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{
		SourceID: req.SourceID,
		Anchor:   req.Anchor,
		TargetID: string(target),
		Linked:   linked,
	})
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	if id := r.URL.Query().Get("component_id"); id != "" {
		view, err := s.engine.Component(linker.ComponentID(id))
		if err != nil {
			s.engineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, OutcomesResponse{
			ComponentCount: 1,
			Components:     []ComponentOutcome{outcomeFromView(view)},
		})
		return
	}

	views := s.engine.Components()
	out := OutcomesResponse{
		ComponentCount: len(views),
		Components:     make([]ComponentOutcome, 0, len(views)),
	}
	for _, v := range views {
		out.Components = append(out.Components, outcomeFromView(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func outcomeFromView(v linker.ComponentView) ComponentOutcome {
	return ComponentOutcome{
		ComponentID: string(v.ID),
		Class:       string(v.Class),
		Metrics:     v.Metrics,
	}
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	j := s.engine.Journal()
	q := r.URL.Query()

	var events []linker.LinkEvent
	if sinceStr := q.Get("since_seq"); sinceStr != "" {
		since, err := strconv.ParseUint(sinceStr, 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid_since_seq"}`, http.StatusBadRequest)
			return
		}
		events = j.Since(since)
	} else {
		limit := 50
		if limitStr := q.Get("limit"); limitStr != "" {
			n, err := strconv.Atoi(limitStr)
			if err != nil || n <= 0 {
				http.Error(w, `{"error":"invalid_limit"}`, http.StatusBadRequest)
				return
			}
			limit = n
		}
		events = j.Recent(limit)
	}

	writeJSON(w, http.StatusOK, JournalResponse{
		LastSeq: j.LastSeq(),
		Dropped: j.Dropped(),
		Events:  events,
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, graph.FromViews(s.engine.Components()))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, `{"error":"persistence_disabled"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"invalid_limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.store.ReadRecentLinkEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("event query failed", "error", err, "trace_id", getTraceID(r.Context()))
		http.Error(w, `{"error":"query_failed"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.LinkRecord{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Count: len(records), Records: records})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, `{"error":"persistence_disabled"}`, http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" || toStr == "" {
		http.Error(w, `{"error":"missing_time_range"}`, http.StatusBadRequest)
		return
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		http.Error(w, `{"error":"invalid_from"}`, http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		http.Error(w, `{"error":"invalid_to"}`, http.StatusBadRequest)
		return
	}
	bucket := q.Get("bucket")
	if bucket == "" {
		bucket = "hour"
	}
	if bucket != "hour" && bucket != "day" {
		http.Error(w, `{"error":"invalid_bucket"}`, http.StatusBadRequest)
		return
	}

	stats, err := s.store.ResolutionStats(r.Context(), store.StatsFilter{From: from, To: to, Bucket: bucket})
	if err != nil {
		s.logger.Error("trend query failed", "error", err, "trace_id", getTraceID(r.Context()))
		http.Error(w, `{"error":"query_failed"}`, http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []store.ResolutionStat{}
	}
	writeJSON(w, http.StatusOK, TrendsResponse{Bucket: bucket, Stats: stats})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		kind = string(reports.ReportTypeJournal)
	}
	format := reports.ReportFormat(q.Get("format"))
	if format == "" {
		format = reports.ReportFormatCSV
	}
	if format != reports.ReportFormatCSV && format != reports.ReportFormatJSON {
		http.Error(w, `{"error":"invalid_format"}`, http.StatusBadRequest)
		return
	}

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	if fromStr := q.Get("from"); fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_from"}`, http.StatusBadRequest)
			return
		}
		start = t
	}
	if toStr := q.Get("to"); toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_to"}`, http.StatusBadRequest)
			return
		}
		end = t
	}

	filters := make(map[string]string)
	for _, key := range []string{"source_id", "target_id", "type", "class"} {
		if v := q.Get(key); v != "" {
			filters[key] = v
		}
	}

	if reports.ReportType(kind) == reports.ReportTypeJournal && s.store == nil {
		http.Error(w, `{"error":"persistence_disabled"}`, http.StatusServiceUnavailable)
		return
	}
	gen, err := reports.NewReportGenerator(reports.ReportType(kind), s.store, s.engine)
	if err != nil {
		http.Error(w, `{"error":"unknown_report_type"}`, http.StatusBadRequest)
		return
	}
	rd, err := gen.Generate(r.Context(), reports.ReportParams{
		Start:   start,
		End:     end,
		Format:  format,
		Filters: filters,
	})
	if err != nil {
		s.logger.Error("report generation failed", "kind", kind, "error", err, "trace_id", getTraceID(r.Context()))
		http.Error(w, `{"error":"report_failed"}`, http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", kind, time.Now().UTC().Format("20060102_150405"), format)
	w.Header().Set("Content-Type", reports.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	io.Copy(w, rd)
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	if s.pruner == nil {
		http.Error(w, `{"error":"pruning_disabled"}`, http.StatusServiceUnavailable)
		return
	}

	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	retention, err := time.ParseDuration(req.Retention)
	if err != nil || retention <= 0 {
		http.Error(w, `{"error":"invalid_retention"}`, http.StatusBadRequest)
		return
	}

	cutoff := time.Now().UTC().Add(-retention)
	removed, err := s.pruner.PruneBefore(r.Context(), cutoff)
	if err != nil {
		s.logger.Error("prune failed", "error", err, "trace_id", getTraceID(r.Context()))
		http.Error(w, `{"error":"prune_failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, PruneResponse{
		Removed: removed,
		Cutoff:  cutoff.Format(time.RFC3339),
	})
}

// engineError maps linker sentinels onto HTTP statuses.
func (s *Server) engineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, linker.ErrNotFound):
		http.Error(w, `{"error":"component_not_found"}`, http.StatusNotFound)
	case errors.Is(err, linker.ErrExists):
		http.Error(w, `{"error":"component_exists"}`, http.StatusConflict)
	case errors.Is(err, linker.ErrCanonicalReferent):
		http.Error(w, `{"error":"component_has_members"}`, http.StatusConflict)
	case errors.Is(err, linker.ErrCapacity):
		http.Error(w, `{"error":"registry_full"}`, http.StatusInsufficientStorage)
	case errors.Is(err, linker.ErrEmptyID),
		errors.Is(err, linker.ErrEmptyAnchor),
		errors.Is(err, linker.ErrWeightRange),
		errors.Is(err, linker.ErrPhase),
		errors.Is(err, linker.ErrEdgeKind),
		errors.Is(err, anchor.ErrUnknownKind):
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
	default:
		s.logger.Error("engine call failed", "error", err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func generateTraceID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
