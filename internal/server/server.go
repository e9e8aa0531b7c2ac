package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brickshelf/internal/app"
	"brickshelf/internal/ratelimit"
	"brickshelf/internal/util"
	"brickshelf/pkg/domain"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "token"

const defaultMaxUploadBytes = 30 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	CORSOrigin                 string
	UploadDir                  string
	MaxUploadBytes             int64
	CookieMaxAge               time.Duration
	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
}

// Server exposes the REST endpoints for the backend.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	corsOrigin      string
	uploadDir       string
	maxUploadBytes  int64
	cookieMaxAge    time.Duration
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limiting is active
// only when a Redis address is configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	var registerLimiter, loginLimiter *ratelimit.FixedWindowLimiter
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		registerLimit := cfg.RegisterRateLimitPerMinute
		if registerLimit <= 0 {
			registerLimit = 5
		}
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		var err error
		registerLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "brickshelf:ratelimit:register", registerLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init register limiter: %w", err)
		}
		loginLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "brickshelf:ratelimit:login", loginLimit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	cookieMaxAge := cfg.CookieMaxAge
	if cookieMaxAge <= 0 {
		cookieMaxAge = 24 * time.Hour
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		corsOrigin:      cfg.CORSOrigin,
		uploadDir:       cfg.UploadDir,
		maxUploadBytes:  maxBytes,
		cookieMaxAge:    cookieMaxAge,
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(
		util.WithCORS(s.corsOrigin,
			util.WithRequestID(
				util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/register", s.handleRegister)
	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.HandleFunc("/api/profile", s.handleProfile)
	s.mux.HandleFunc("/api/logout", s.handleLogout)

	// ingestion; the shipped client calls this before login, so no
	// session is required here
	s.mux.HandleFunc("/api/upload", s.handleUpload)

	// creations
	s.mux.HandleFunc("/api/creations", s.handleCreations)
	s.mux.HandleFunc("/api/creations/", s.handleCreationByID)
	s.mux.Handle("/api/user-creations", s.authenticated(s.handleUserCreations))

	// locally stored photos
	if s.uploadDir != "" {
		s.mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// access gate

type authHandler func(http.ResponseWriter, *http.Request, domain.Identity)

// identityFromRequest reads the session cookie. A missing cookie is an
// anonymous caller, not an error; a present but invalid token is an error
// the caller must convert into a structured 401.
func (s *Server) identityFromRequest(r *http.Request) (domain.Identity, bool, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return domain.Identity{}, false, nil
	}
	identity, err := s.app.VerifyToken(cookie.Value)
	if err != nil {
		return domain.Identity{}, false, err
	}
	return identity, true, nil
}

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok, err := s.identityFromRequest(r)
		if err != nil || !ok {
			s.audit(r, "gate.authenticate", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.audit(r, "gate.authenticate", "success", "user_id", identity.UserID)
		next(w, r, identity)
	})
}

// auth handlers

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "auth.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "auth.register", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Register(req.Name, req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		if errors.Is(err, app.ErrRegistrationRejected) {
			writeError(w, http.StatusUnprocessableEntity, "could not create user")
			return
		}
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "auth.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		switch {
		case errors.Is(err, app.ErrUserNotFound):
			writeError(w, http.StatusBadRequest, "user does not exist")
		case errors.Is(err, app.ErrWrongPassword):
			writeError(w, http.StatusUnprocessableEntity, "password incorrect")
		default:
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	s.setSessionCookie(w, token, int(s.cookieMaxAge.Seconds()))
	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  domain.Identity{UserID: user.ID, Email: user.Email},
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	identity, ok, err := s.identityFromRequest(r)
	if err != nil {
		s.audit(r, "auth.profile", "fail", "reason", "invalid_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !ok {
		// Anonymous callers are tolerated here.
		writeJSON(w, http.StatusOK, nil)
		return
	}
	user, found, err := s.app.UserByID(identity.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, true)
}

// ingestion

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	headers := r.MultipartForm.File["photos"]
	files := make([]app.UploadFile, 0, len(headers))
	for _, h := range headers {
		header := h
		files = append(files, app.UploadFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		})
	}
	photos, err := s.app.IngestPhotos(r.Context(), files)
	if err != nil {
		if errors.Is(err, app.ErrTooManyFiles) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", s.app.MaxUploadFiles()))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to upload files")
		return
	}
	writeJSON(w, http.StatusOK, photos)
}

// creations

type creationRequest struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	AddedPhotos []string `json:"addedPhotos"`
	Description string   `json:"description"`
	Rating      float64  `json:"rating"`
	LegoFamily  string   `json:"legoFamily"`
}

func (req creationRequest) fields() app.CreationFields {
	return app.CreationFields{
		Title:       req.Title,
		Photos:      req.AddedPhotos,
		Description: req.Description,
		Rating:      req.Rating,
		LegoFamily:  req.LegoFamily,
	}
}

func (s *Server) handleCreations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.authenticated(s.handleCreateCreation).ServeHTTP(w, r)
	case http.MethodGet:
		s.authenticated(s.handleListCreations).ServeHTTP(w, r)
	case http.MethodPut:
		s.authenticated(s.handleUpdateCreation).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateCreation(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	var req creationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	creation, err := s.app.CreateCreation(identity.UserID, req.fields())
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("create creation", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create creation")
		return
	}
	writeJSON(w, http.StatusOK, creation)
}

func (s *Server) handleListCreations(w http.ResponseWriter, r *http.Request, _ domain.Identity) {
	creations, err := s.app.ListCreations()
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("list creations", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list creations")
		return
	}
	writeJSON(w, http.StatusOK, creations)
}

func (s *Server) handleUpdateCreation(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	var req creationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if _, err := s.app.UpdateCreation(req.ID, identity.UserID, req.fields()); err != nil {
		switch {
		case errors.Is(err, app.ErrCreationNotFound):
			writeError(w, http.StatusBadRequest, "creation not found")
		case errors.Is(err, app.ErrNotOwner):
			s.audit(r, "creations.update", "fail", "user_id", identity.UserID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			util.LoggerFromContext(r.Context()).Error("update creation", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to update creation")
		}
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

// handleCreationByID serves GET /api/creations/{id}. Reads are not
// ownership-gated; anyone holding the id may view the record.
func (s *Server) handleCreationByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/creations/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	creation, ok, err := s.app.CreationByID(id)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("get creation", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch creation")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, creation)
}

func (s *Server) handleUserCreations(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	creations, err := s.app.ListCreationsByOwner(identity.UserID)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("list user creations", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list creations")
		return
	}
	writeJSON(w, http.StatusOK, creations)
}

// helpers

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logger := util.LoggerFromContext(r.Context())
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
