package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"koinonia/api/internal/search"
	"koinonia/api/internal/store"
	"koinonia/api/internal/video"
)

// ── Sermon categories ──

func (s *Service) CreateSermonCategory(ctx context.Context, actor Actor, name, description string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required", nil)
	}

	if _, err := s.store.GetSermonCategoryByName(ctx, name); err == nil {
		return nil, conflictError("Category name already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check category name: %w", err)
	}

	category := store.SermonCategory{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
	}
	if err := s.store.CreateSermonCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.audit(ctx, actor, "create", "sermon_category", category.ID, name)
	return map[string]any{"category": categoryPayload(category)}, nil
}

func (s *Service) ListSermonCategories(ctx context.Context) (map[string]any, error) {
	categories, err := s.store.ListSermonCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	payloads := make([]map[string]any, 0, len(categories))
	for _, c := range categories {
		payloads = append(payloads, categoryPayload(c))
	}
	return map[string]any{"categories": payloads}, nil
}

func (s *Service) UpdateSermonCategory(ctx context.Context, actor Actor, categoryID, name, description string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required", nil)
	}

	if existing, err := s.store.GetSermonCategoryByName(ctx, name); err == nil && existing.ID != categoryID {
		return nil, conflictError("Category name already exists")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check category name: %w", err)
	}

	if err := s.store.UpdateSermonCategory(ctx, categoryID, name, description); err != nil {
		return nil, err
	}

	s.audit(ctx, actor, "update", "sermon_category", categoryID, name)
	category, err := s.store.GetSermonCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"category": categoryPayload(category)}, nil
}

func (s *Service) DeleteSermonCategory(ctx context.Context, actor Actor, categoryID string) error {
	category, err := s.store.GetSermonCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if category.SermonCount > 0 {
		return conflictError("Category still contains sermons")
	}
	if err := s.store.DeleteSermonCategory(ctx, categoryID); err != nil {
		return err
	}
	s.audit(ctx, actor, "delete", "sermon_category", categoryID, category.Name)
	return nil
}

func categoryPayload(c store.SermonCategory) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"description": c.Description,
		"sermonCount": c.SermonCount,
		"createdAt":   c.CreatedAt.Format(time.RFC3339),
	}
}

// ── Sermons ──

// SermonInput is the body for creating or updating a sermon.
type SermonInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	VideoID     string `json:"videoId"`
	CategoryID  string `json:"categoryId"`
}

// CreateSermonUpload requests a Vimeo upload ticket for a new sermon video.
// The sermon record is created once the client finishes the tus upload and
// calls CreateSermon with the returned video ID.
func (s *Service) CreateSermonUpload(ctx context.Context, title, description string, size int64) (map[string]any, error) {
	if s.video == nil || !s.video.IsConfigured() {
		return nil, serviceError("Video hosting is not configured")
	}
	if strings.TrimSpace(title) == "" {
		return nil, validationError("title is required", nil)
	}
	if size <= 0 {
		return nil, validationError("size must be positive", nil)
	}

	ticket, err := s.video.CreateUpload(ctx, title, description, size)
	if err != nil {
		if errors.Is(err, video.ErrUnavailable) {
			return nil, serviceError("Video hosting is unavailable")
		}
		return nil, fmt.Errorf("create video upload: %w", err)
	}

	return map[string]any{
		"videoId":   ticket.VideoID,
		"uploadUrl": ticket.UploadURL,
	}, nil
}

func (s *Service) CreateSermon(ctx context.Context, actor Actor, in SermonInput) (map[string]any, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationError("title is required", nil)
	}
	if strings.TrimSpace(in.VideoID) == "" {
		return nil, validationError("videoId is required", nil)
	}
	if in.CategoryID == "" {
		return nil, validationError("categoryId is required", nil)
	}

	if _, err := s.store.GetSermonCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError("unknown category", nil)
		}
		return nil, fmt.Errorf("check category: %w", err)
	}

	if _, err := s.store.GetSermonByVideoID(ctx, in.VideoID); err == nil {
		return nil, conflictError("A sermon already exists for this video")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check video id: %w", err)
	}

	sermon := store.Sermon{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		VideoID:     in.VideoID,
		CategoryID:  in.CategoryID,
		UploadedBy:  actor.ID,
	}

	// Enrich from Vimeo when the client is wired; the sermon still saves
	// if metadata is not ready yet.
	if s.video != nil && s.video.IsConfigured() {
		if meta, err := s.video.GetVideo(ctx, in.VideoID); err == nil {
			sermon.EmbedURL = meta.EmbedHTML
			sermon.ThumbnailURL = meta.ThumbnailURL
			sermon.Duration = meta.Duration
		} else {
			log.Printf("fetch video metadata for %s: %v", in.VideoID, err)
		}
	}

	if err := s.store.CreateSermon(ctx, sermon); err != nil {
		return nil, fmt.Errorf("create sermon: %w", err)
	}

	s.audit(ctx, actor, "create", "sermon", sermon.ID, sermon.Title)
	s.indexSermon(sermon)
	s.fanOutSermonNotification(ctx, sermon)

	created, err := s.store.GetSermon(ctx, sermon.ID)
	if err != nil {
		return nil, fmt.Errorf("load created sermon: %w", err)
	}
	return map[string]any{"sermon": sermonPayload(created)}, nil
}

func (s *Service) ListSermons(ctx context.Context, categoryID string) (map[string]any, error) {
	sermons, err := s.store.ListSermons(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list sermons: %w", err)
	}
	payloads := make([]map[string]any, 0, len(sermons))
	for _, sermon := range sermons {
		payloads = append(payloads, sermonPayload(sermon))
	}
	return map[string]any{"sermons": payloads}, nil
}

func (s *Service) GetSermon(ctx context.Context, sermonID string) (map[string]any, error) {
	sermon, err := s.store.GetSermon(ctx, sermonID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"sermon": sermonPayload(sermon)}, nil
}

func (s *Service) UpdateSermon(ctx context.Context, actor Actor, sermonID string, in SermonInput) (map[string]any, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationError("title is required", nil)
	}

	sermon, err := s.store.GetSermon(ctx, sermonID)
	if err != nil {
		return nil, err
	}

	if in.CategoryID != "" && in.CategoryID != sermon.CategoryID {
		if _, err := s.store.GetSermonCategory(ctx, in.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, validationError("unknown category", nil)
			}
			return nil, fmt.Errorf("check category: %w", err)
		}
		sermon.CategoryID = in.CategoryID
	}

	sermon.Title = strings.TrimSpace(in.Title)
	sermon.Description = in.Description
	if err := s.store.UpdateSermon(ctx, sermon); err != nil {
		return nil, fmt.Errorf("update sermon: %w", err)
	}

	s.audit(ctx, actor, "update", "sermon", sermonID, sermon.Title)
	s.indexSermon(sermon)

	updated, err := s.store.GetSermon(ctx, sermonID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"sermon": sermonPayload(updated)}, nil
}

func (s *Service) DeleteSermon(ctx context.Context, actor Actor, sermonID string) error {
	sermon, err := s.store.GetSermon(ctx, sermonID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSermon(ctx, sermonID); err != nil {
		return err
	}

	s.audit(ctx, actor, "delete", "sermon", sermonID, sermon.Title)
	if s.search != nil {
		s.search.DeleteSermon(sermonID)
	}
	if s.video != nil && s.video.IsConfigured() && sermon.VideoID != "" {
		if err := s.video.DeleteVideo(ctx, sermon.VideoID); err != nil {
			log.Printf("delete video %s: %v", sermon.VideoID, err)
		}
	}
	return nil
}

// MarkSermonViewed records that a member watched a sermon. Repeated views
// keep the original timestamp; the response reports whether a row was added.
func (s *Service) MarkSermonViewed(ctx context.Context, actor Actor, sermonID string) (map[string]any, error) {
	if _, err := s.store.GetSermon(ctx, sermonID); err != nil {
		return nil, err
	}
	recorded, err := s.store.MarkSermonViewed(ctx, sermonID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("mark sermon viewed: %w", err)
	}
	return map[string]any{"viewed": true, "firstView": recorded}, nil
}

// ToggleSermonLike flips the member's like on a sermon. Liking also counts
// as viewing; the single ledger row carries both facts.
func (s *Service) ToggleSermonLike(ctx context.Context, actor Actor, sermonID string) (map[string]any, error) {
	if _, err := s.store.GetSermon(ctx, sermonID); err != nil {
		return nil, err
	}
	liked, err := s.store.ToggleSermonLike(ctx, sermonID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("toggle sermon like: %w", err)
	}
	return map[string]any{"liked": liked}, nil
}

// SermonAnalytics is the admin engagement view for one sermon: who watched,
// who liked, and who has not watched yet.
func (s *Service) SermonAnalytics(ctx context.Context, sermonID string) (map[string]any, error) {
	sermon, err := s.store.GetSermon(ctx, sermonID)
	if err != nil {
		return nil, err
	}

	views, err := s.store.ListSermonViews(ctx, sermonID)
	if err != nil {
		return nil, fmt.Errorf("list sermon views: %w", err)
	}
	nonViewers, err := s.store.ListSermonNonViewers(ctx, sermonID)
	if err != nil {
		return nil, fmt.Errorf("list non-viewers: %w", err)
	}

	viewers := make([]map[string]any, 0, len(views))
	likes := 0
	for _, v := range views {
		if v.Liked {
			likes++
		}
		viewers = append(viewers, map[string]any{
			"memberId":   v.MemberID,
			"memberName": v.MemberName,
			"viewedAt":   v.ViewedAt.Format(time.RFC3339),
			"liked":      v.Liked,
		})
	}

	notViewed := make([]map[string]any, 0, len(nonViewers))
	for _, m := range nonViewers {
		notViewed = append(notViewed, map[string]any{
			"memberId":   m.ID,
			"memberName": m.FullName,
			"branchName": m.BranchName,
		})
	}

	return map[string]any{
		"sermon":     sermonPayload(sermon),
		"totalViews": len(viewers),
		"totalLikes": likes,
		"viewers":    viewers,
		"notViewed":  notViewed,
	}, nil
}

func (s *Service) indexSermon(sermon store.Sermon) {
	if s.search == nil {
		return
	}
	s.search.IndexSermon(search.SermonRecord{
		ID:          sermon.ID,
		Title:       sermon.Title,
		Description: sermon.Description,
		CategoryID:  sermon.CategoryID,
	})
}

// fanOutSermonNotification notifies every approved member about a new sermon
// and emails them when SMTP is configured.
func (s *Service) fanOutSermonNotification(ctx context.Context, sermon store.Sermon) {
	memberIDs, err := s.store.ListApprovedMemberIDs(ctx)
	if err != nil {
		log.Printf("list approved members for fan-out: %v", err)
		return
	}
	items := make([]store.Notification, 0, len(memberIDs))
	for _, id := range memberIDs {
		items = append(items, store.Notification{
			ID:       uuid.NewString(),
			MemberID: id,
			Message:  fmt.Sprintf("New sermon uploaded: %s", sermon.Title),
			Type:     store.NotifySermonUploaded,
		})
	}
	if err := s.store.InsertNotifications(ctx, items); err != nil {
		log.Printf("fan out sermon notifications: %v", err)
	}
}

func sermonPayload(sermon store.Sermon) map[string]any {
	return map[string]any{
		"id":           sermon.ID,
		"title":        sermon.Title,
		"description":  sermon.Description,
		"videoId":      sermon.VideoID,
		"embedUrl":     sermon.EmbedURL,
		"thumbnailUrl": sermon.ThumbnailURL,
		"duration":     sermon.Duration,
		"categoryId":   sermon.CategoryID,
		"categoryName": sermon.CategoryName,
		"totalViews":   sermon.TotalViews,
		"totalLikes":   sermon.TotalLikes,
		"createdAt":    sermon.CreatedAt.Format(time.RFC3339),
		"updatedAt":    sermon.UpdatedAt.Format(time.RFC3339),
	}
}

// ── Blogs ──

// BlogInput is the body for creating or updating a blog post.
type BlogInput struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Status        string  `json:"status"`
	FeaturedImage *string `json:"featuredImage"`
}

func (s *Service) CreateBlog(ctx context.Context, actor Actor, in BlogInput) (map[string]any, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationError("title is required", nil)
	}
	status := in.Status
	if status == "" {
		status = store.BlogDraft
	}
	if status != store.BlogDraft && status != store.BlogPublished {
		return nil, validationError("status must be draft or published", nil)
	}

	blog := store.Blog{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(in.Title),
		Content:       in.Content,
		Status:        status,
		FeaturedImage: in.FeaturedImage,
		CreatedBy:     actor.ID,
	}
	if err := s.store.CreateBlog(ctx, blog); err != nil {
		return nil, fmt.Errorf("create blog: %w", err)
	}

	s.audit(ctx, actor, "create", "blog", blog.ID, blog.Title)
	s.indexBlog(blog)
	if status == store.BlogPublished {
		s.fanOutBlogNotification(ctx, blog)
	}

	created, err := s.store.GetBlog(ctx, blog.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"blog": blogPayload(created)}, nil
}

// ListBlogs returns blog posts. Members only see published posts, with their
// own viewed flag; admins see everything.
func (s *Service) ListBlogs(ctx context.Context, actor Actor) (map[string]any, error) {
	publishedOnly := actor.Kind != "admin"
	viewerID := ""
	if actor.Kind == "member" {
		viewerID = actor.ID
	}
	blogs, err := s.store.ListBlogs(ctx, publishedOnly, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	payloads := make([]map[string]any, 0, len(blogs))
	for _, b := range blogs {
		payloads = append(payloads, blogPayload(b))
	}
	return map[string]any{"blogs": payloads}, nil
}

// GetBlog returns one post. A draft is invisible to members: they get 404,
// not 403, so drafts do not leak their existence.
func (s *Service) GetBlog(ctx context.Context, actor Actor, blogID string) (map[string]any, error) {
	blog, err := s.store.GetBlog(ctx, blogID)
	if err != nil {
		return nil, err
	}
	if blog.Status != store.BlogPublished && actor.Kind != "admin" {
		return nil, notFoundError("Blog post not found")
	}
	return map[string]any{"blog": blogPayload(blog)}, nil
}

func (s *Service) UpdateBlog(ctx context.Context, actor Actor, blogID string, in BlogInput) (map[string]any, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationError("title is required", nil)
	}

	blog, err := s.store.GetBlog(ctx, blogID)
	if err != nil {
		return nil, err
	}

	wasPublished := blog.Status == store.BlogPublished
	blog.Title = strings.TrimSpace(in.Title)
	blog.Content = in.Content
	if in.Status != "" {
		if in.Status != store.BlogDraft && in.Status != store.BlogPublished {
			return nil, validationError("status must be draft or published", nil)
		}
		blog.Status = in.Status
	}
	if in.FeaturedImage != nil {
		blog.FeaturedImage = in.FeaturedImage
	}

	if err := s.store.UpdateBlog(ctx, blog); err != nil {
		return nil, fmt.Errorf("update blog: %w", err)
	}

	s.audit(ctx, actor, "update", "blog", blogID, blog.Title)
	s.indexBlog(blog)
	if !wasPublished && blog.Status == store.BlogPublished {
		s.fanOutBlogNotification(ctx, blog)
	}

	updated, err := s.store.GetBlog(ctx, blogID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"blog": blogPayload(updated)}, nil
}

func (s *Service) DeleteBlog(ctx context.Context, actor Actor, blogID string) error {
	blog, err := s.store.GetBlog(ctx, blogID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBlog(ctx, blogID); err != nil {
		return err
	}
	s.audit(ctx, actor, "delete", "blog", blogID, blog.Title)
	if s.search != nil {
		s.search.DeleteBlog(blogID)
	}
	return nil
}

// MarkBlogViewed records that a member read a post. Idempotent: re-reading
// keeps the original timestamp.
func (s *Service) MarkBlogViewed(ctx context.Context, actor Actor, blogID string) (map[string]any, error) {
	blog, err := s.store.GetBlog(ctx, blogID)
	if err != nil {
		return nil, err
	}
	if blog.Status != store.BlogPublished {
		return nil, notFoundError("Blog post not found")
	}
	recorded, err := s.store.MarkBlogViewed(ctx, blogID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("mark blog viewed: %w", err)
	}
	return map[string]any{"viewed": true, "firstView": recorded}, nil
}

// ListBlogReaders is the admin view of who has read a post.
func (s *Service) ListBlogReaders(ctx context.Context, blogID string) (map[string]any, error) {
	if _, err := s.store.GetBlog(ctx, blogID); err != nil {
		return nil, err
	}
	readers, err := s.store.ListBlogReaders(ctx, blogID)
	if err != nil {
		return nil, fmt.Errorf("list blog readers: %w", err)
	}
	payloads := make([]map[string]any, 0, len(readers))
	for _, r := range readers {
		payloads = append(payloads, map[string]any{
			"memberId":   r.MemberID,
			"memberName": r.MemberName,
			"viewedAt":   r.ViewedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"readers": payloads}, nil
}

func (s *Service) indexBlog(blog store.Blog) {
	if s.search == nil {
		return
	}
	s.search.IndexBlog(search.BlogRecord{
		ID:      blog.ID,
		Title:   blog.Title,
		Content: blog.Content,
		Status:  blog.Status,
	})
}

func (s *Service) fanOutBlogNotification(ctx context.Context, blog store.Blog) {
	memberIDs, err := s.store.ListApprovedMemberIDs(ctx)
	if err != nil {
		log.Printf("list approved members for fan-out: %v", err)
		return
	}
	items := make([]store.Notification, 0, len(memberIDs))
	for _, id := range memberIDs {
		items = append(items, store.Notification{
			ID:       uuid.NewString(),
			MemberID: id,
			Message:  fmt.Sprintf("New blog post: %s", blog.Title),
			Type:     store.NotifyBlogPublished,
		})
	}
	if err := s.store.InsertNotifications(ctx, items); err != nil {
		log.Printf("fan out blog notifications: %v", err)
	}
}

func blogPayload(b store.Blog) map[string]any {
	return map[string]any{
		"id":            b.ID,
		"title":         b.Title,
		"content":       b.Content,
		"status":        b.Status,
		"featuredImage": b.FeaturedImage,
		"authorName":    b.AuthorName,
		"hasViewed":     b.HasViewed,
		"viewCount":     b.ViewCount,
		"createdAt":     b.CreatedAt.Format(time.RFC3339),
		"updatedAt":     b.UpdatedAt.Format(time.RFC3339),
	}
}
