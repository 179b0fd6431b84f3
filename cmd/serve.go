package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bikepass-cli/internal/agent"
	"github.com/sells-group/bikepass-cli/internal/auth"
	"github.com/sells-group/bikepass-cli/internal/model"
	"github.com/sells-group/bikepass-cli/internal/store"
)

const maxUploadBytes = 64 << 20 // 64 MiB trip log cap

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		ag, err := initAgent()
		if err != nil {
			return err
		}

		signingKey := cfg.Auth.SigningKey
		if signingKey == "" {
			return eris.New("auth signing key is required (BIKEPASS_AUTH_SIGNING_KEY)")
		}
		expiry, err := time.ParseDuration(cfg.Auth.TokenExpiry)
		if err != nil {
			return eris.Wrap(err, "parse auth token expiry")
		}

		srvEnv := &serverEnv{
			store:     st,
			agent:     ag,
			users:     auth.NewUserRepo(),
			tokens:    auth.NewTokenService(signingKey, expiry),
			uploadDir: cfg.Server.UploadDir,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srvEnv.router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
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

// serverEnv holds the collaborators shared by all HTTP handlers.
type serverEnv struct {
	store     store.Store
	agent     *agent.Agent
	users     *auth.UserRepo
	tokens    *auth.TokenService
	uploadDir string
}

func (e *serverEnv) router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", e.handleHealth)
	r.Post("/api/auth/register", e.handleRegister)
	r.Post("/api/auth/login", e.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(e.tokens.RequireToken)
		r.Get("/api/me", e.handleMe)
		r.Post("/api/run-agent", e.handleRunAgent)
		r.Get("/api/runs", e.handleListRuns)
		r.Get("/api/runs/{runID}", e.handleGetRun)
	})

	return r
}

func (e *serverEnv) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (e *serverEnv) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := e.users.Create(req.Username, req.Password, "")
	if err != nil {
		if eris.Is(err, auth.ErrUserExists) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		zap.L().Error("register failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := e.tokens.Issue(user)
	if err != nil {
		zap.L().Error("token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   token,
	})
}

func (e *serverEnv) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := e.users.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := e.tokens.Issue(user)
	if err != nil {
		zap.L().Error("token issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
	})
}

func (e *serverEnv) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing claims")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user_id":  claims.UserID,
		"username": claims.Username,
		"role":     claims.Role,
	})
}

// handleRunAgent accepts a multipart form with a tripsFile upload and a
// pricingUrl field, runs the analysis synchronously, and returns the full
// result. The uploaded file is spooled to disk and removed on every path.
func (e *serverEnv) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	pricingURL := r.FormValue("pricingUrl")
	if pricingURL == "" {
		writeError(w, http.StatusBadRequest, "pricingUrl is required")
		return
	}

	file, header, err := r.FormFile("tripsFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "tripsFile is required")
		return
	}
	defer file.Close() //nolint:errcheck

	tmpPath, err := e.spoolUpload(file, header.Filename)
	if err != nil {
		zap.L().Error("spool upload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tmpPath) //nolint:errcheck

	rec, err := e.store.CreateRun(ctx, header.Filename, pricingURL)
	if err != nil {
		zap.L().Error("create run record failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}
	if err := e.store.UpdateStatus(ctx, rec.ID, model.RunStatusRunning, ""); err != nil {
		zap.L().Warn("failed to mark run running", zap.Error(err))
	}

	result, err := e.agent.Run(ctx, agent.Params{
		RunID:          rec.ID,
		DatasetLocator: tmpPath,
		PricingURL:     pricingURL,
	})
	if err != nil {
		if sErr := e.store.UpdateStatus(ctx, rec.ID, model.RunStatusFailed, err.Error()); sErr != nil {
			zap.L().Warn("failed to record run failure", zap.Error(sErr))
		}
		zap.L().Error("analysis failed", zap.String("run_id", rec.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if err := e.store.AttachResult(ctx, rec.ID, result); err != nil {
		zap.L().Warn("failed to persist run result", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"result":  result,
	})
}

func (e *serverEnv) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := e.store.ListRuns(r.Context(), 0)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"runs":    runs,
	})
}

func (e *serverEnv) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := e.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"run":     run,
	})
}

// spoolUpload copies an uploaded trip log to a temp file, preserving the
// extension so the loader can detect xlsx uploads.
func (e *serverEnv) spoolUpload(src io.Reader, filename string) (string, error) {
	dir := e.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}

	ext := filepath.Ext(filename)
	tmp, err := os.CreateTemp(dir, "trips-*"+ext)
	if err != nil {
		return "", eris.Wrap(err, "create temp file")
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return "", eris.Wrap(err, "close temp file")
	}
	return tmp.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
