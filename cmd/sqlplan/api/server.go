package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/queryplan/sqlplan/lib/sql/ast"
	"github.com/queryplan/sqlplan/lib/sql/render"
	"github.com/queryplan/sqlplan/lib/sql/sqlerr"
	"github.com/queryplan/sqlplan/lib/sql/token"
	"github.com/queryplan/sqlplan/lib/sqlplan"
	"github.com/queryplan/sqlplan/lib/store"
	"github.com/queryplan/sqlplan/lib/store/accessstore"
	"github.com/queryplan/sqlplan/lib/store/querystore"
	"github.com/queryplan/sqlplan/lib/warehouse"
)

const maxBodyBytes = 1 << 20

type Config struct {
	ListenAddr       string `json:"listenAddr"`
	Driver           string `json:"driver"`
	DSN              string `json:"dsn"`
	AccessDir        string `json:"accessDir"`
	CheckTableAccess bool   `json:"checkTableAccess"`
	QueriesDir       string `json:"queriesDir"`
	Limit            int64  `json:"limit"`
	MaxFilterDepth   int    `json:"maxFilterDepth"`
	// QueryTimeout bounds each warehouse statement, e.g. "30s".
	QueryTimeout string `json:"queryTimeout"`
}

type Server struct {
	router  chi.Router
	planner *sqlplan.Planner
	wh      *warehouse.Warehouse
	sp      *store.Provider
	log     *zap.Logger
}

func NewServer(cfg Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	serverCfg := cfg
	serverCfg.AccessDir = strings.TrimSpace(serverCfg.AccessDir)
	serverCfg.QueriesDir = strings.TrimSpace(serverCfg.QueriesDir)
	serverCfg.Driver = strings.TrimSpace(serverCfg.Driver)

	var policy *accessstore.Policy
	if serverCfg.AccessDir != "" {
		p, err := accessstore.LoadDir(serverCfg.AccessDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load table access policy: %w", err)
		}
		if keys := p.LowerCaseKeys(); len(keys) > 0 {
			log.Warn("table access keys contain lower-case letters; bare names are matched upper-cased",
				zap.Strings("keys", keys))
		}
		policy = p
	} else if serverCfg.CheckTableAccess {
		log.Warn("table access checks are enabled but no access directory is configured; every query will fail")
	}
	queryStore, err := querystore.New(serverCfg.QueriesDir, log.Named("querystore"))
	if err != nil {
		return nil, fmt.Errorf("failed to create query store: %w", err)
	}
	wh, err := warehouse.Open(serverCfg.Driver, serverCfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	if timeout := strings.TrimSpace(serverCfg.QueryTimeout); timeout != "" {
		d, err := cast.ToDurationE(timeout)
		if err != nil || d < 0 {
			_ = wh.Close()
			return nil, fmt.Errorf("invalid query timeout %q", timeout)
		}
		wh.SetTimeout(d)
	}

	srv := &Server{
		router: chi.NewRouter(),
		planner: sqlplan.New(sqlplan.Options{
			Policy:           policy,
			CheckTableAccess: serverCfg.CheckTableAccess,
			DefaultLimit:     serverCfg.Limit,
			MaxFilterDepth:   serverCfg.MaxFilterDepth,
		}),
		wh:  wh,
		sp:  store.NewStoreProvider(policy, queryStore),
		log: log,
	}
	srv.routes()
	return srv, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(withRequestID)
	r.Use(withSecurityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", s.handleConfig)
		r.Post("/plan", s.handlePlan)
		r.Post("/query", s.handleQuery)
		r.Route("/queries", func(r chi.Router) {
			r.Get("/", s.handleListQueries)
			r.Get("/{name}", s.handleGetQuery)
			r.Put("/{name}", s.handleSaveQuery)
			r.Delete("/{name}", s.handleDeleteQuery)
			r.Post("/{name}/run", s.handleRunQuery)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Close() error {
	return s.wh.Close()
}

func (s *Server) setWarehouse(wh *warehouse.Warehouse) {
	s.wh = wh
}

type ctxKey struct{}

// withRequestID tags every request with an id, reusing the caller's when sent.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// withSecurityHeaders middleware adds security headers to responses
func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		next.ServeHTTP(w, r)
	})
}

type queryResponse struct {
	Plan  *sqlplan.Plan `json:"plan,omitempty"`
	SQL   string        `json:"sql,omitempty"`
	Data  string        `json:"data,omitempty"`
	Error string        `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(s.log, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	opts := s.planner.Options()
	writeJSON(s.log, w, http.StatusOK, map[string]any{
		"limit":            opts.DefaultLimit,
		"checkTableAccess": opts.CheckTableAccess,
		"maxFilterDepth":   opts.MaxFilterDepth,
		"execute":          s.wh.Enabled(),
		"savedQueries":     s.sp.QueryStore() != nil,
		"serviceRead":      s.sp.AccessPolicy().Configured(token.SERVICE),
		"callerRead":       s.sp.AccessPolicy().Configured(token.CALLER),
		"queryTimeout":     s.wh.Timeout().String(),
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	plan, sql, err := s.compile(body)
	if err != nil {
		s.writeError(w, r, err, "query processing failed")
		return
	}
	writeJSON(s.log, w, http.StatusOK, queryResponse{Plan: plan, SQL: sql})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.run(w, r, body)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, body []byte) {
	plan, sql, err := s.compile(body)
	if err != nil {
		s.writeError(w, r, err, "query processing failed")
		return
	}
	data, err := s.wh.Execute(r.Context(), sql, nil)
	if err != nil {
		s.writeError(w, r, err, "query execution failed")
		return
	}
	writeJSON(s.log, w, http.StatusOK, queryResponse{Plan: plan, SQL: sql, Data: string(data)})
}

func (s *Server) compile(body []byte) (*sqlplan.Plan, string, error) {
	q, err := ast.DecodeQueryDepth(body, s.planner.Options().MaxFilterDepth)
	if err != nil {
		return nil, "", err
	}
	plan, err := s.planner.Plan(q)
	if err != nil {
		return nil, "", err
	}
	sql, _, err := render.Render(plan)
	if err != nil {
		return nil, "", err
	}
	return plan, sql, nil
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	names, err := s.sp.QueryStore().List()
	if err != nil {
		s.writeError(w, r, err, "failed to list queries")
		return
	}
	writeJSON(s.log, w, http.StatusOK, map[string][]string{"queries": names})
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := s.loadSaved(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleSaveQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	// only queries that compile are stored
	if _, _, err := s.compile(body); err != nil {
		s.writeError(w, r, err, "query processing failed")
		return
	}
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	name, err := s.sp.QueryStore().Save(chi.URLParam(r, "name"), body, querystore.SaveOptions{OrReplace: replace})
	if err != nil {
		s.writeError(w, r, err, "failed to save query")
		return
	}
	writeJSON(s.log, w, http.StatusOK, map[string]string{"name": name})
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	ifExists, _ := strconv.ParseBool(r.URL.Query().Get("ifExists"))
	if err := s.sp.QueryStore().Remove(chi.URLParam(r, "name"), ifExists); err != nil {
		s.writeError(w, r, err, "failed to delete query")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := s.loadSaved(w, r)
	if !ok {
		return
	}
	s.run(w, r, body)
}

func (s *Server) loadSaved(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	name := chi.URLParam(r, "name")
	body, found, err := s.sp.QueryStore().Load(name)
	if err != nil {
		s.writeError(w, r, err, "failed to load query")
		return nil, false
	}
	if !found {
		writeJSON(s.log, w, http.StatusNotFound, queryResponse{Error: fmt.Sprintf("query %q does not exist", name)})
		return nil, false
	}
	return body, true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.log.Error("failed to read request", zap.String("request_id", requestID(r)), zap.Error(err))
		writeJSON(s.log, w, http.StatusBadRequest, queryResponse{Error: "invalid request payload"})
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeJSON(s.log, w, http.StatusBadRequest, queryResponse{Error: "query is required"})
		return nil, false
	}
	return body, true
}

// writeError answers with the status carried by err. Anything without one
// is reported as fallback with status 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	fields := []zap.Field{zap.String("request_id", requestID(r)), zap.Error(err)}

	var re *sqlerr.RequestError
	var ae *sqlerr.AccessError
	var ce *sqlerr.ConfigError
	var se *querystore.StoreError
	var ee *warehouse.ExecError
	switch {
	case errors.As(err, &re):
		s.log.Info(fallback, fields...)
		writeJSON(s.log, w, re.Code, queryResponse{Error: re.Message})
	case errors.As(err, &ae):
		s.log.Warn(fallback, append(fields, zap.String("stage", string(ae.Stage)))...)
		writeJSON(s.log, w, ae.Code, queryResponse{Error: ae.Message})
	case errors.As(err, &ce):
		s.log.Error("configuration error while planning query", fields...)
		writeJSON(s.log, w, ce.Code, queryResponse{Error: ce.Message})
	case errors.As(err, &se):
		s.log.Info(fallback, fields...)
		writeJSON(s.log, w, se.Code, queryResponse{Error: se.Message})
	case errors.As(err, &ee):
		s.log.Error(fallback, fields...)
		writeJSON(s.log, w, ee.Code, queryResponse{Error: ee.Message})
	default:
		s.log.Error(fallback, fields...)
		writeJSON(s.log, w, http.StatusInternalServerError, queryResponse{Error: fallback})
	}
}

func writeJSON(log *zap.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode JSON response", zap.Error(err))
	}
}
