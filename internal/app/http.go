package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"koinonia/api/internal/auth"
	"koinonia/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	rest := parts[2:]

	// Public routes: auth flows and the branch list used by the signup form.
	if rest[0] == "auth" {
		s.handleAuth(w, r, rest)
		return
	}
	if len(rest) == 1 && rest[0] == "branches" && r.Method == http.MethodGet {
		payload, err := s.service.ListBranches(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	// Admin subtree.
	if rest[0] == "admin" {
		actor, ok := s.requireAdmin(w, r)
		if !ok {
			return
		}
		if s.routeAdmin(w, r, actor, rest[1:]) {
			return
		}
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if s.routeShared(w, r, rest) {
		return
	}
	if s.routeMember(w, r, rest) {
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleAuth covers signup, both logins, refresh rotation, and logout.
func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	switch strings.Join(rest[1:], "/") {
	case "signup":
		var body struct {
			FullName string `json:"fullName"`
			Email    string `json:"email"`
			Password string `json:"password"`
			BranchID string `json:"branchId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.SignUp(r.Context(), body.FullName, body.Email, body.Password, body.BranchID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, payload)

	case "login":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))

	case "admin/login":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.AdminLogin(r.Context(), body.Email, body.Password)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))

	case "refresh":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionPayload(session))

	case "logout":
		actor := Actor{}
		if token := bearerToken(r); token != "" {
			if parsed, err := s.service.ActorFromToken(r.Context(), token); err == nil {
				actor = parsed
			}
		}
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(r, &body)
		if err := s.service.Logout(r.Context(), actor, body.RefreshToken); err != nil {
			log.Printf("logout: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// routeShared handles surfaces readable by both members and admins.
func (s *HTTPServer) routeShared(w http.ResponseWriter, r *http.Request, rest []string) bool {
	switch {
	case len(rest) == 1 && rest[0] == "sermon-categories" && r.Method == http.MethodGet:
		if _, ok := s.requireActor(w, r); !ok {
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListSermonCategories(r.Context())
		})
		return true

	case len(rest) == 1 && rest[0] == "sermons" && r.Method == http.MethodGet:
		if _, ok := s.requireActor(w, r); !ok {
			return true
		}
		categoryID := strings.TrimSpace(r.URL.Query().Get("categoryId"))
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListSermons(r.Context(), categoryID)
		})
		return true

	case len(rest) == 2 && rest[0] == "sermons" && r.Method == http.MethodGet:
		if _, ok := s.requireActor(w, r); !ok {
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.GetSermon(r.Context(), rest[1])
		})
		return true

	case len(rest) == 1 && rest[0] == "blogs" && r.Method == http.MethodGet:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListBlogs(r.Context(), actor)
		})
		return true

	case len(rest) == 2 && rest[0] == "blogs" && r.Method == http.MethodGet:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.GetBlog(r.Context(), actor, rest[1])
		})
		return true

	case len(rest) == 1 && rest[0] == "search" && r.Method == http.MethodGet:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return true
		}
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		filterType := strings.TrimSpace(r.URL.Query().Get("type"))
		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return true
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.Search(r.Context(), actor, q, filterType, limit, offset)
		})
		return true

	case len(rest) == 1 && rest[0] == "media" && r.Method == http.MethodPost:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return true
		}
		s.handleMediaUpload(w, r, actor)
		return true
	}
	return false
}

// routeMember handles member-only operations.
func (s *HTTPServer) routeMember(w http.ResponseWriter, r *http.Request, rest []string) bool {
	switch {
	case rest[0] == "profile":
		actor, ok := s.requireMember(w, r)
		if !ok {
			return true
		}
		s.handleProfile(w, r, actor, rest)
		return true

	case rest[0] == "events":
		actor, ok := s.requireMember(w, r)
		if !ok {
			return true
		}
		s.handleEvents(w, r, actor, rest)
		return true

	case rest[0] == "prayers":
		actor, ok := s.requireMember(w, r)
		if !ok {
			return true
		}
		s.handlePrayers(w, r, actor, rest)
		return true

	case rest[0] == "notifications":
		actor, ok := s.requireMember(w, r)
		if !ok {
			return true
		}
		s.handleNotifications(w, r, actor, rest)
		return true

	case len(rest) == 3 && rest[0] == "sermons" && rest[2] == "view" && r.Method == http.MethodPost:
		actor, ok := s.requireMember(w, r)
		if !ok {
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.MarkSermonViewed(r.Context(), actor, rest[1])
		})
		return true

	case len(rest) == 3 && rest[0] == "sermons" && rest[2] == "like" && r.Method == http.MethodPost:
		actor, ok := s.requireMember(w, r)
		if !ok {
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ToggleSermonLike(r.Context(), actor, rest[1])
		})
		return true

	case len(rest) == 3 && rest[0] == "blogs" && rest[2] == "view" && r.Method == http.MethodPost:
		actor, ok := s.requireMember(w, r)
		if !ok {
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.MarkBlogViewed(r.Context(), actor, rest[1])
		})
		return true
	}
	return false
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) {
	switch {
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.GetProfile(r.Context(), actor)
		})

	case len(rest) == 1 && r.Method == http.MethodPut:
		var body struct {
			FullName     string  `json:"fullName"`
			ProfileImage *string `json:"profileImage"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.UpdateProfile(r.Context(), actor, body.FullName, body.ProfileImage)
		})

	case len(rest) == 2 && rest[1] == "password" && r.Method == http.MethodPost:
		var body struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ChangePassword(r.Context(), actor, body.CurrentPassword, body.NewPassword); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) {
	switch {
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListEvents(r.Context(), actor)
		})

	case len(rest) == 1 && r.Method == http.MethodPost:
		var body EventInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.CreateEvent(r.Context(), actor, body)
		})

	case len(rest) == 2 && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.GetEvent(r.Context(), actor, rest[1])
		})

	case len(rest) == 2 && r.Method == http.MethodPut:
		var body EventInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.UpdateEvent(r.Context(), actor, rest[1], body)
		})

	case len(rest) == 2 && r.Method == http.MethodDelete:
		if err := s.service.DeleteEvent(r.Context(), actor, rest[1]); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 4 && rest[2] == "cross-branch" && rest[3] == "request" && r.Method == http.MethodPost:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.RequestCrossBranch(r.Context(), actor, rest[1])
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handlePrayers(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) {
	switch {
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListPrayers(r.Context())
		})

	case len(rest) == 1 && r.Method == http.MethodPost:
		var body struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.CreatePrayer(r.Context(), actor, body.Title, body.Content)
		})

	case len(rest) == 2 && r.Method == http.MethodPut:
		var body struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.UpdatePrayer(r.Context(), actor, rest[1], body.Title, body.Content)
		})

	case len(rest) == 2 && r.Method == http.MethodDelete:
		if err := s.service.DeletePrayer(r.Context(), actor, rest[1]); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) {
	switch {
	case len(rest) == 1 && r.Method == http.MethodGet:
		unreadOnly := r.URL.Query().Get("unread") == "true"
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListNotifications(r.Context(), actor, unreadOnly)
		})

	case len(rest) == 2 && rest[1] == "read-all" && r.Method == http.MethodPost:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.MarkAllNotificationsRead(r.Context(), actor)
		})

	case len(rest) == 3 && rest[2] == "read" && r.Method == http.MethodPost:
		if err := s.service.MarkNotificationRead(r.Context(), actor, rest[1]); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && r.Method == http.MethodDelete:
		if err := s.service.DeleteNotification(r.Context(), actor, rest[1]); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

const maxUploadBytes = 32 << 20

func (s *HTTPServer) handleMediaUpload(w http.ResponseWriter, r *http.Request, actor Actor) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart form expected", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file field is required", nil)
		return
	}
	defer file.Close()

	s.respond(w, r, func() (map[string]any, error) {
		return s.service.UploadMedia(r.Context(), actor, MediaUpload{
			MediaType:   r.FormValue("mediaType"),
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
	})
}

// ── Gates ──

func (s *HTTPServer) requireMember(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	return s.requireActorOf(w, r, s.service.MemberFromToken)
}

func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	return s.requireActorOf(w, r, s.service.AdminFromToken)
}

func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	return s.requireActorOf(w, r, s.service.ActorFromToken)
}

func (s *HTTPServer) requireActorOf(w http.ResponseWriter, r *http.Request, resolve func(context.Context, string) (Actor, error)) (Actor, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Actor{}, false
	}
	actor, err := resolve(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, err)
		return Actor{}, false
	}
	return actor, true
}

// respond runs a service call and writes either its payload or its mapped error.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, call func() (map[string]any, error)) {
	payload, err := call()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("service error: %v", err)
	}
	writeError(w, status, code, message, details)
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"kind":         session.Kind,
		"subjectId":    session.SubjectID,
		"name":         session.Name,
		"branchId":     session.BranchID,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

// ── Middleware and helpers ──

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// memberFilterFromQuery parses the admin member-listing filters.
func memberFilterFromQuery(r *http.Request) (store.MemberFilter, error) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		return store.MemberFilter{}, validationError("limit must be an integer", nil)
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return store.MemberFilter{}, validationError("offset must be an integer", nil)
	}
	return store.MemberFilter{
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Status:   strings.TrimSpace(r.URL.Query().Get("status")),
		BranchID: strings.TrimSpace(r.URL.Query().Get("branchId")),
		SortBy:   strings.TrimSpace(r.URL.Query().Get("sortBy")),
		SortDesc: r.URL.Query().Get("sortDir") == "desc",
		Limit:    limit,
		Offset:   offset,
	}, nil
}
