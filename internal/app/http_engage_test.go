package app

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"koinonia/api/internal/auth"
	"koinonia/api/internal/store"
)

func TestNotificationOwnership(t *testing.T) {
	fs := eventFixtureStore()
	fs.getNotificationFn = func(_ context.Context, id string) (store.Notification, error) {
		return store.Notification{ID: id, MemberID: "member-2", Message: "hello"}, nil
	}
	handler := NewHTTPServer(newTestService(fs), "*").Handler()

	token := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")

	rr := doRequest(t, handler, http.MethodPost, "/api/v1/notifications/notif-1/read", token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 marking someone else's notification, got %d", rr.Code)
	}

	rr = doRequest(t, handler, http.MethodDelete, "/api/v1/notifications/notif-1", token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting someone else's notification, got %d", rr.Code)
	}
}

func TestMarkOwnNotificationRead(t *testing.T) {
	var markedID string
	fs := eventFixtureStore()
	fs.getNotificationFn = func(_ context.Context, id string) (store.Notification, error) {
		return store.Notification{ID: id, MemberID: "member-1"}, nil
	}
	fs.markNotificationReadFn = func(_ context.Context, id string) error {
		markedID = id
		return nil
	}
	handler := NewHTTPServer(newTestService(fs), "*").Handler()

	token := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")
	rr := doRequest(t, handler, http.MethodPost, "/api/v1/notifications/notif-1/read", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if markedID != "notif-1" {
		t.Fatalf("expected notif-1 marked read, got %q", markedID)
	}
}

func TestListNotificationsIncludesUnreadCount(t *testing.T) {
	fs := eventFixtureStore()
	fs.listNotificationsFn = func(_ context.Context, memberID string, unreadOnly bool) ([]store.Notification, error) {
		return []store.Notification{{ID: "notif-1", MemberID: memberID, Message: "hello"}}, nil
	}
	fs.unreadNotificationCountFn = func(context.Context, string) (int, error) {
		return 4, nil
	}
	handler := NewHTTPServer(newTestService(fs), "*").Handler()

	token := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")
	rr := doRequest(t, handler, http.MethodGet, "/api/v1/notifications", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["unreadCount"] != float64(4) {
		t.Fatalf("expected unreadCount=4, got %v", payload["unreadCount"])
	}
}

func TestUpdatePrayerAuthorOnly(t *testing.T) {
	fs := eventFixtureStore()
	fs.getPrayerFn = func(_ context.Context, id string) (store.PrayerRequest, error) {
		return store.PrayerRequest{ID: id, Title: "Healing", MemberID: "member-1"}, nil
	}
	handler := NewHTTPServer(newTestService(fs), "*").Handler()

	body := map[string]any{"title": "Healing", "content": "updated"}

	otherToken := issueTestToken(t, auth.RoleMember, "member-2", "branch-2")
	rr := doRequest(t, handler, http.MethodPut, "/api/v1/prayers/prayer-1", otherToken, body)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author edit, got %d", rr.Code)
	}

	authorToken := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")
	rr = doRequest(t, handler, http.MethodPut, "/api/v1/prayers/prayer-1", authorToken, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for author edit, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDeletePrayerAuthorOnly(t *testing.T) {
	fs := eventFixtureStore()
	fs.getPrayerFn = func(_ context.Context, id string) (store.PrayerRequest, error) {
		return store.PrayerRequest{ID: id, MemberID: "member-1"}, nil
	}
	handler := NewHTTPServer(newTestService(fs), "*").Handler()

	otherToken := issueTestToken(t, auth.RoleMember, "member-2", "branch-2")
	rr := doRequest(t, handler, http.MethodDelete, "/api/v1/prayers/prayer-1", otherToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author delete, got %d", rr.Code)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	fs := eventFixtureStore()
	fs.getMemberByIDFn = func(_ context.Context, id string) (store.Member, error) {
		m := approvedMember(id, "branch-1")
		m.PasswordHash = mustHash(t, "current-pass1")
		return m, nil
	}
	handler := NewHTTPServer(newTestService(fs), "*").Handler()

	token := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")
	rr := doRequest(t, handler, http.MethodPost, "/api/v1/profile/password", token, map[string]any{
		"currentPassword": "wrong-pass1",
		"newPassword":     "fresh-pass1",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong current password, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestChangePasswordValidatesNew(t *testing.T) {
	fs := eventFixtureStore()
	fs.getMemberByIDFn = func(_ context.Context, id string) (store.Member, error) {
		m := approvedMember(id, "branch-1")
		m.PasswordHash = mustHash(t, "current-pass1")
		return m, nil
	}
	handler := NewHTTPServer(newTestService(fs), "*").Handler()

	token := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")
	rr := doRequest(t, handler, http.MethodPost, "/api/v1/profile/password", token, map[string]any{
		"currentPassword": "current-pass1",
		"newPassword":     "short",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for weak new password, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateProfile(t *testing.T) {
	var updatedName string
	fs := eventFixtureStore()
	fs.updateMemberProfileFn = func(_ context.Context, id, fullName string, _ *string) error {
		updatedName = fullName
		return nil
	}
	handler := NewHTTPServer(newTestService(fs), "*").Handler()

	token := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")
	rr := doRequest(t, handler, http.MethodPut, "/api/v1/profile", token, map[string]any{
		"fullName": "  Grace A. Mensah  ",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if updatedName != "Grace A. Mensah" {
		t.Fatalf("expected trimmed name, got %q", updatedName)
	}
}

func TestMediaUploadUnconfigured(t *testing.T) {
	handler := NewHTTPServer(newTestService(eventFixtureStore()), "*").Handler()

	token := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")
	rr := doRequest(t, handler, http.MethodPost, "/api/v1/media", token, nil)
	// Without a multipart body the handler rejects the request before the
	// storage check.
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart body, got %d: %s", rr.Code, rr.Body.String())
	}
}

func doMediaUpload(t *testing.T, handler http.Handler, token, mediaType string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("mediaType", mediaType); err != nil {
		t.Fatalf("write mediaType field: %v", err)
	}
	fw, err := mw.CreateFormFile("file", "photo.png")
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := fw.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestMediaUploadValidatesType(t *testing.T) {
	handler := NewHTTPServer(newTestService(eventFixtureStore()), "*").Handler()
	token := issueTestToken(t, auth.RoleMember, "member-1", "branch-1")

	rr := doMediaUpload(t, handler, token, "banner")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown media type, got %d: %s", rr.Code, rr.Body.String())
	}

	// A known kind passes validation and then hits the unconfigured storage.
	rr = doMediaUpload(t, handler, token, store.MediaProfile)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without object storage, got %d: %s", rr.Code, rr.Body.String())
	}
}
