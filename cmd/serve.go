package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/scoutline/vendorscout/internal/model"
	"github.com/scoutline/vendorscout/internal/research"
	"github.com/scoutline/vendorscout/internal/results"
	"github.com/scoutline/vendorscout/internal/store"
)

var servePort int

// apiServer holds what the HTTP handlers need. The semaphore serializes
// research runs: the pipeline is sequential by design and the result document
// has a single writer.
type apiServer struct {
	doc      *results.Store
	runs     store.Store
	research func(ctx context.Context, objective, site string) (*research.RunResult, error)
	sem      *semaphore.Weighted
}

func newAPIServer(doc *results.Store, runs store.Store, researchFn func(ctx context.Context, objective, site string) (*research.RunResult, error)) *apiServer {
	return &apiServer{
		doc:      doc,
		runs:     runs,
		research: researchFn,
		sem:      semaphore.NewWeighted(1),
	}
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/vendors", s.handleVendors)
	r.Get("/api/runs", s.handleRuns)
	r.Post("/api/research", s.handleResearch)

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleVendors(w http.ResponseWriter, r *http.Request) {
	rs, err := s.doc.Load()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read result document"})
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Site:   r.URL.Query().Get("site"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filter.Limit = limit
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *apiServer) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Objective string `json:"objective"`
		Site      string `json:"site"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Objective == "" || req.Site == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "objective and site are required"})
		return
	}

	if !s.sem.TryAcquire(1) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a research run is already in flight"})
		return
	}

	// The run outlives the request; detach it from the request context.
	go func() {
		defer s.sem.Release(1)
		result, err := s.research(context.Background(), req.Objective, req.Site)
		if err != nil {
			zap.L().Error("serve: research run failed",
				zap.String("site", req.Site),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("serve: research run complete",
			zap.String("site", req.Site),
			zap.Int("vendors_added", result.Run.VendorsAdded),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"site":   req.Site,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for triggering runs and reading results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		doc := results.NewStore(cfg.Research.OutputPath)
		p := newPipeline(cfg, st, cfg.Research.OutputPath, cfg.Research.MaxPages, cfg.Research.RunBudget)

		api := newAPIServer(doc, st, func(ctx context.Context, objective, site string) (*research.RunResult, error) {
			return p.Run(ctx, objective, site)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
