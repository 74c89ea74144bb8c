package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/incentedge/match-engine/internal/config"
	"github.com/incentedge/match-engine/internal/matcher"
	"github.com/incentedge/match-engine/internal/model"
	"github.com/incentedge/match-engine/internal/monitoring"
	"github.com/incentedge/match-engine/internal/probability"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		metrics := monitoring.NewCollector()
		scorer := probability.NewScorer(st,
			probability.WithTTL(time.Duration(cfg.Probability.CacheTTLDays)*24*time.Hour),
			probability.WithMetrics(metrics))
		defer scorer.Close()

		api := &apiServer{
			matcher: matcher.New(cfg.Matcher),
			scorer:  scorer,
			metrics: metrics,
			probCfg: cfg.Probability,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// apiServer carries the engine components behind the HTTP handlers.
type apiServer struct {
	matcher *matcher.Matcher
	scorer  *probability.Scorer
	metrics *monitoring.Collector
	probCfg config.ProbabilityConfig
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/match", s.handleMatch)
		r.Post("/probability", s.handleProbability)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

type matchRequest struct {
	Project  model.Project            `json:"project"`
	Programs []model.IncentiveProgram `json:"programs"`
	Options  struct {
		IncludePartialMatches bool `json:"include_partial_matches"`
		PrioritizeGreen       bool `json:"prioritize_green"`
		MaxResults            int  `json:"max_results"`
	} `json:"options"`
}

func (s *apiServer) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateProject(&req.Project); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if len(req.Programs) == 0 {
		writeError(w, http.StatusBadRequest, "programs are required")
		return
	}

	result := s.matcher.Match(&req.Project, req.Programs, matcher.Options{
		IncludePartialMatches: req.Options.IncludePartialMatches,
		PrioritizeGreen:       req.Options.PrioritizeGreen,
		MaxResults:            req.Options.MaxResults,
	})
	writeJSON(w, http.StatusOK, result)
}

type probabilityRequest struct {
	Project    model.Project `json:"project"`
	ProgramIDs []string      `json:"program_ids"`
}

func (s *apiServer) handleProbability(w http.ResponseWriter, r *http.Request) {
	var req probabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateProject(&req.Project); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if len(req.ProgramIDs) == 0 {
		writeError(w, http.StatusBadRequest, "program_ids are required")
		return
	}

	items, err := s.scorer.ScoreBatch(r.Context(), &req.Project, req.ProgramIDs, probability.BatchOptions{
		Concurrency: s.probCfg.BatchConcurrency,
		QPS:         s.probCfg.BatchQPS,
	})
	if err != nil {
		zap.L().Error("probability scoring failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "probability scoring failed")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// validateProject enforces the request boundary invariants. Scoring code
// assumes these hold.
func validateProject(p *model.Project) string {
	if p.ID == "" {
		return "project.id is required"
	}
	if len(p.State) != 2 {
		return "project.state must be a 2-letter code"
	}
	if p.TotalDevelopmentCost < 0 {
		return "project.total_development_cost must be >= 0"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
