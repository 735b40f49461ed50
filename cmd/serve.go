package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP evaluation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEvaluator(ctx, "serve")
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
			Handler:           newRouter(env.Evaluator, env.Metrics.Handler(), cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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

// evaluationBody is the body of an evaluation request. Both fields are
// optional.
type evaluationBody struct {
	ProposalIDs     []string `json:"proposalIds"`
	ForceReevaluate bool     `json:"forceReevaluate"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// newRouter builds the HTTP surface. metrics may be nil.
func newRouter(ev evaluator, metrics http.Handler, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/v1/projects/{projectID}", func(pr chi.Router) {
		pr.Post("/evaluations", evaluationHandler(ev))
	})
	return r
}

func evaluationHandler(ev evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body evaluationBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
				Code:    evalerr.CodeValidation,
				Kind:    "InvalidRequest",
				Message: "invalid request body: " + err.Error(),
			}})
			return
		}

		req := model.EvaluationRequest{
			ProjectID:       chi.URLParam(r, "projectID"),
			ProposalIDs:     body.ProposalIDs,
			ForceReevaluate: body.ForceReevaluate,
		}

		resp, err := ev.Evaluate(r.Context(), req)
		if err != nil {
			writeError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeError(w http.ResponseWriter, req model.EvaluationRequest, err error) {
	status := evalerr.HTTPStatus(err)
	kind := string(evalerr.KindOf(err))
	if kind == "" {
		kind = "Internal"
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		zap.L().Error("evaluation request failed",
			zap.String("project_id", req.ProjectID),
			zap.Int("status", status),
			zap.Error(err),
		)
		if kind == "Internal" {
			message = "internal error"
		}
	}

	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    evalerr.CodeOf(err),
		Kind:    kind,
		Message: message,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
