package app

import (
	"net/http"
	"strings"
)

// routeAdmin dispatches everything under /api/v1/admin/. The caller has
// already been resolved to an active admin.
func (s *HTTPServer) routeAdmin(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) bool {
	if len(rest) == 0 {
		return false
	}

	switch rest[0] {
	case "me":
		if len(rest) == 1 && r.Method == http.MethodGet {
			s.respond(w, r, func() (map[string]any, error) {
				return s.service.AdminProfile(r.Context(), actor)
			})
			return true
		}

	case "password":
		if len(rest) == 1 && r.Method == http.MethodPost {
			var body struct {
				CurrentPassword string `json:"currentPassword"`
				NewPassword     string `json:"newPassword"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			if err := s.service.ChangeAdminPassword(r.Context(), actor, body.CurrentPassword, body.NewPassword); err != nil {
				s.writeServiceError(w, err)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return true
		}

	case "dashboard":
		if len(rest) == 1 && r.Method == http.MethodGet {
			s.respond(w, r, func() (map[string]any, error) {
				return s.service.Dashboard(r.Context())
			})
			return true
		}

	case "members":
		return s.routeAdminMembers(w, r, actor, rest[1:])

	case "branches":
		if len(rest) == 1 && r.Method == http.MethodPost {
			var body struct {
				Name string `json:"name"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			s.respond(w, r, func() (map[string]any, error) {
				return s.service.CreateBranch(r.Context(), actor, body.Name)
			})
			return true
		}

	case "events":
		return s.routeAdminEvents(w, r, actor, rest[1:])

	case "sermon-categories":
		return s.routeAdminCategories(w, r, actor, rest[1:])

	case "sermons":
		return s.routeAdminSermons(w, r, actor, rest[1:])

	case "blogs":
		return s.routeAdminBlogs(w, r, actor, rest[1:])

	case "prayers":
		if len(rest) == 2 && r.Method == http.MethodDelete {
			if err := s.service.DeletePrayer(r.Context(), actor, rest[1]); err != nil {
				s.writeServiceError(w, err)
				return true
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return true
		}
		if len(rest) == 3 && rest[2] == "respond" && r.Method == http.MethodPost {
			var body struct {
				Response string `json:"response"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			s.respond(w, r, func() (map[string]any, error) {
				return s.service.RespondPrayer(r.Context(), actor, rest[1], body.Response)
			})
			return true
		}
	}
	return false
}

func (s *HTTPServer) routeAdminMembers(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) bool {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		filter, err := memberFilterFromQuery(r)
		if err != nil {
			s.writeServiceError(w, err)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListMembers(r.Context(), filter)
		})
		return true

	case len(rest) == 1 && rest[0] == "pending" && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListPendingMembers(r.Context())
		})
		return true

	case len(rest) == 1 && rest[0] == "bulk" && r.Method == http.MethodPost:
		var body struct {
			MemberIDs []string `json:"memberIds"`
			Status    string   `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.BulkUpdateMembers(r.Context(), actor, body.MemberIDs, body.Status)
		})
		return true

	case len(rest) == 1 && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.GetMember(r.Context(), rest[0])
		})
		return true

	case len(rest) == 2 && rest[1] == "activity" && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.GetMemberActivity(r.Context(), rest[0])
		})
		return true

	case len(rest) == 2 && rest[1] == "approve" && r.Method == http.MethodPost:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ApproveMember(r.Context(), actor, rest[0])
		})
		return true

	case len(rest) == 2 && rest[1] == "revoke" && r.Method == http.MethodPost:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.RevokeMember(r.Context(), actor, rest[0])
		})
		return true
	}
	return false
}

func (s *HTTPServer) routeAdminEvents(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) bool {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		branchID := strings.TrimSpace(r.URL.Query().Get("branchId"))
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListAllEvents(r.Context(), branchID)
		})
		return true

	case len(rest) == 1 && rest[0] == "pending" && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListPendingCrossBranch(r.Context())
		})
		return true

	case len(rest) == 3 && rest[1] == "cross-branch" && rest[2] == "approve" && r.Method == http.MethodPost:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ApproveCrossBranch(r.Context(), actor, rest[0])
		})
		return true

	case len(rest) == 3 && rest[1] == "cross-branch" && rest[2] == "reject" && r.Method == http.MethodPost:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.RejectCrossBranch(r.Context(), actor, rest[0])
		})
		return true
	}
	return false
}

func (s *HTTPServer) routeAdminCategories(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) bool {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.CreateSermonCategory(r.Context(), actor, body.Name, body.Description)
		})
		return true

	case len(rest) == 1 && r.Method == http.MethodPut:
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.UpdateSermonCategory(r.Context(), actor, rest[0], body.Name, body.Description)
		})
		return true

	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteSermonCategory(r.Context(), actor, rest[0]); err != nil {
			s.writeServiceError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return true
	}
	return false
}

func (s *HTTPServer) routeAdminSermons(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) bool {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		var body SermonInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.CreateSermon(r.Context(), actor, body)
		})
		return true

	case len(rest) == 1 && rest[0] == "upload" && r.Method == http.MethodPost:
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Size        int64  `json:"size"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.CreateSermonUpload(r.Context(), body.Title, body.Description, body.Size)
		})
		return true

	case len(rest) == 1 && r.Method == http.MethodPut:
		var body SermonInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.UpdateSermon(r.Context(), actor, rest[0], body)
		})
		return true

	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteSermon(r.Context(), actor, rest[0]); err != nil {
			s.writeServiceError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return true

	case len(rest) == 2 && rest[1] == "analytics" && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.SermonAnalytics(r.Context(), rest[0])
		})
		return true
	}
	return false
}

func (s *HTTPServer) routeAdminBlogs(w http.ResponseWriter, r *http.Request, actor Actor, rest []string) bool {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		var body BlogInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.CreateBlog(r.Context(), actor, body)
		})
		return true

	case len(rest) == 1 && r.Method == http.MethodPut:
		var body BlogInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.UpdateBlog(r.Context(), actor, rest[0], body)
		})
		return true

	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := s.service.DeleteBlog(r.Context(), actor, rest[0]); err != nil {
			s.writeServiceError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return true

	case len(rest) == 2 && rest[1] == "readers" && r.Method == http.MethodGet:
		s.respond(w, r, func() (map[string]any, error) {
			return s.service.ListBlogReaders(r.Context(), rest[0])
		})
		return true
	}
	return false
}
