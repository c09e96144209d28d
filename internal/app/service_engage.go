package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"koinonia/api/internal/search"
	"koinonia/api/internal/store"
)

// ── Prayer requests ──

func (s *Service) CreatePrayer(ctx context.Context, actor Actor, title, content string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required", nil)
	}
	if strings.TrimSpace(content) == "" {
		return nil, validationError("content is required", nil)
	}

	prayer := store.PrayerRequest{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  content,
		MemberID: actor.ID,
	}
	if err := s.store.CreatePrayer(ctx, prayer); err != nil {
		return nil, fmt.Errorf("create prayer: %w", err)
	}

	created, err := s.store.GetPrayer(ctx, prayer.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"prayer": prayerPayload(created)}, nil
}

func (s *Service) ListPrayers(ctx context.Context) (map[string]any, error) {
	prayers, err := s.store.ListPrayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prayers: %w", err)
	}
	payloads := make([]map[string]any, 0, len(prayers))
	for _, p := range prayers {
		payloads = append(payloads, prayerPayload(p))
	}
	return map[string]any{"prayers": payloads}, nil
}

func (s *Service) UpdatePrayer(ctx context.Context, actor Actor, prayerID, title, content string) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationError("title is required", nil)
	}

	prayer, err := s.store.GetPrayer(ctx, prayerID)
	if err != nil {
		return nil, err
	}
	if prayer.MemberID != actor.ID {
		return nil, forbiddenError("Only the author can edit a prayer request")
	}

	if err := s.store.UpdatePrayer(ctx, prayerID, title, content); err != nil {
		return nil, fmt.Errorf("update prayer: %w", err)
	}

	updated, err := s.store.GetPrayer(ctx, prayerID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"prayer": prayerPayload(updated)}, nil
}

func (s *Service) DeletePrayer(ctx context.Context, actor Actor, prayerID string) error {
	prayer, err := s.store.GetPrayer(ctx, prayerID)
	if err != nil {
		return err
	}
	if actor.Kind != "admin" && prayer.MemberID != actor.ID {
		return forbiddenError("Only the author can delete a prayer request")
	}
	return s.store.DeletePrayer(ctx, prayerID)
}

// RespondPrayer records a pastoral response and notifies the author.
func (s *Service) RespondPrayer(ctx context.Context, actor Actor, prayerID, response string) (map[string]any, error) {
	if strings.TrimSpace(response) == "" {
		return nil, validationError("response is required", nil)
	}

	prayer, err := s.store.GetPrayer(ctx, prayerID)
	if err != nil {
		return nil, err
	}

	if err := s.store.RespondPrayer(ctx, prayerID, response); err != nil {
		return nil, fmt.Errorf("respond prayer: %w", err)
	}

	s.audit(ctx, actor, "respond", "prayer", prayerID, prayer.Title)
	s.notifyMember(ctx, prayer.MemberID, store.NotifyPrayerResponse,
		fmt.Sprintf("A pastor responded to your prayer request %q", prayer.Title))

	updated, err := s.store.GetPrayer(ctx, prayerID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"prayer": prayerPayload(updated)}, nil
}

func prayerPayload(p store.PrayerRequest) map[string]any {
	return map[string]any{
		"id":             p.ID,
		"title":          p.Title,
		"content":        p.Content,
		"pastorResponse": p.PastorResponse,
		"memberId":       p.MemberID,
		"memberName":     p.MemberName,
		"createdAt":      p.CreatedAt.Format(time.RFC3339),
		"updatedAt":      p.UpdatedAt.Format(time.RFC3339),
	}
}

// ── Notifications ──

func (s *Service) ListNotifications(ctx context.Context, actor Actor, unreadOnly bool) (map[string]any, error) {
	items, err := s.store.ListNotifications(ctx, actor.ID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.store.UnreadNotificationCount(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	payloads := make([]map[string]any, 0, len(items))
	for _, n := range items {
		payloads = append(payloads, map[string]any{
			"id":        n.ID,
			"message":   n.Message,
			"type":      n.Type,
			"isRead":    n.IsRead,
			"createdAt": n.CreatedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"notifications": payloads, "unreadCount": unread}, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, actor Actor, notificationID string) error {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.MemberID != actor.ID {
		return forbiddenError("Notification belongs to another member")
	}
	return s.store.MarkNotificationRead(ctx, notificationID)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, actor Actor) (map[string]any, error) {
	updated, err := s.store.MarkAllNotificationsRead(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("mark all read: %w", err)
	}
	return map[string]any{"updated": updated}, nil
}

func (s *Service) DeleteNotification(ctx context.Context, actor Actor, notificationID string) error {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.MemberID != actor.ID {
		return forbiddenError("Notification belongs to another member")
	}
	return s.store.DeleteNotification(ctx, notificationID)
}

// ── Profile ──

func (s *Service) GetProfile(ctx context.Context, actor Actor) (map[string]any, error) {
	member, err := s.store.GetMemberByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"profile": memberPayload(member)}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, actor Actor, fullName string, profileImage *string) (map[string]any, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, validationError("fullName is required", nil)
	}
	if err := s.store.UpdateMemberProfile(ctx, actor.ID, fullName, profileImage); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	member, err := s.store.GetMemberByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"profile": memberPayload(member)}, nil
}

// ChangePassword verifies the current password before setting a new one.
func (s *Service) ChangePassword(ctx context.Context, actor Actor, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	member, err := s.store.GetMemberByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !passwordMatches(member.PasswordHash, currentPassword) {
		return authError("Current password is incorrect")
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdateMemberPassword(ctx, actor.ID, hash)
}

// ── Media upload ──

// MediaUpload is an incoming file plus the kind of image it is.
type MediaUpload struct {
	MediaType   string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func validMediaType(kind string) bool {
	switch kind {
	case store.MediaProfile, store.MediaEvent, store.MediaBlog:
		return true
	}
	return false
}

// UploadMedia stores a file in object storage and records the asset.
func (s *Service) UploadMedia(ctx context.Context, actor Actor, up MediaUpload) (map[string]any, error) {
	if !validMediaType(up.MediaType) {
		return nil, validationError("mediaType must be profile, event, or blog", nil)
	}
	if s.media == nil {
		return nil, serviceError("Media storage is not configured")
	}
	if up.Size <= 0 {
		return nil, validationError("file is empty", nil)
	}

	stored, err := s.media.Upload(ctx, up.FileName, up.ContentType, up.Size, up.Body)
	if err != nil {
		return nil, serviceError("Media storage is unavailable")
	}

	asset := store.MediaAsset{
		ID:        uuid.NewString(),
		URL:       stored.URL,
		MediaType: up.MediaType,
		FileName:  up.FileName,
		ObjectKey: stored.ObjectKey,
	}
	switch actor.Kind {
	case "admin":
		asset.AdminID = &actor.ID
	default:
		asset.MemberID = &actor.ID
	}
	if err := s.store.InsertMediaAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("record media asset: %w", err)
	}

	return map[string]any{
		"id":        asset.ID,
		"url":       asset.URL,
		"mediaType": asset.MediaType,
		"fileName":  asset.FileName,
	}, nil
}

// ── Search ──

// Search runs a full-text search. Members never see draft blog posts.
func (s *Service) Search(ctx context.Context, actor Actor, text, filterType string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return nil, serviceError("Search is not configured")
	}

	var ftype search.ResultType
	switch filterType {
	case "":
	case "sermon":
		ftype = search.ResultSermon
	case "blog":
		ftype = search.ResultBlog
	default:
		return nil, validationError("type must be sermon or blog", nil)
	}

	resp := s.search.Search(search.Query{
		Text:          text,
		FilterType:    ftype,
		PublishedOnly: actor.Kind != "admin",
		Limit:         limit,
		Offset:        offset,
	})
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
	}, nil
}
