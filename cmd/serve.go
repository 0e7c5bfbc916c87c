package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/job"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIRouter(env.Controller, env.Store),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newAPIRouter builds the job API.
func newAPIRouter(ctrl *job.Controller, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var query model.JobQuery
			if err := json.NewDecoder(req.Body).Decode(&query); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			created, err := ctrl.Start(req.Context(), query)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusAccepted, created)
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			jobs, err := st.ListJobs(req.Context(), store.JobFilter{
				Status: model.JobStatus(req.URL.Query().Get("status")),
				Limit:  50,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, "list jobs failed")
				return
			}
			writeJSON(w, http.StatusOK, jobs)
		})

		r.Get("/{jobID}", func(w http.ResponseWriter, req *http.Request) {
			j, err := st.GetJob(req.Context(), chi.URLParam(req, "jobID"))
			if err != nil {
				writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, j)
		})

		r.Get("/{jobID}/leads", func(w http.ResponseWriter, req *http.Request) {
			jobID := chi.URLParam(req, "jobID")
			if _, err := st.GetJob(req.Context(), jobID); err != nil {
				writeStoreError(w, err)
				return
			}
			leads, err := st.ListLeads(req.Context(), store.LeadFilter{JobID: jobID})
			if err != nil {
				writeError(w, http.StatusInternalServerError, "list leads failed")
				return
			}
			writeJSON(w, http.StatusOK, leads)
		})

		r.Delete("/{jobID}", func(w http.ResponseWriter, req *http.Request) {
			jobID := chi.URLParam(req, "jobID")
			j, err := st.GetJob(req.Context(), jobID)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			if j.Status.Terminal() {
				writeError(w, http.StatusConflict, fmt.Sprintf("job already %s", j.Status))
				return
			}
			ctrl.Cancel(jobID)
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
