package store

import (
	"context"
	"fmt"
	"strings"
)

// ── Sermon categories ──

func (s *PostgresStore) CreateSermonCategory(ctx context.Context, category SermonCategory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sermon_categories (id, name, description)
		VALUES ($1, $2, $3)
	`, category.ID, category.Name, category.Description)
	if err != nil {
		return fmt.Errorf("insert sermon category: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSermonCategories(ctx context.Context) ([]SermonCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, count(s.id), c.created_at
		FROM sermon_categories c
		LEFT JOIN sermons s ON s.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list sermon categories: %w", err)
	}
	defer rows.Close()

	items := make([]SermonCategory, 0)
	for rows.Next() {
		var c SermonCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.SermonCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sermon category: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sermon categories: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSermonCategory(ctx context.Context, categoryID string) (SermonCategory, error) {
	var c SermonCategory
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.description, count(s.id), c.created_at
		FROM sermon_categories c
		LEFT JOIN sermons s ON s.category_id = c.id
		WHERE c.id = $1
		GROUP BY c.id
	`, categoryID).Scan(&c.ID, &c.Name, &c.Description, &c.SermonCount, &c.CreatedAt)
	if err != nil {
		return SermonCategory{}, err
	}
	return c, nil
}

func (s *PostgresStore) GetSermonCategoryByName(ctx context.Context, name string) (SermonCategory, error) {
	var c SermonCategory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, 0, created_at
		FROM sermon_categories WHERE LOWER(name)=LOWER($1)
	`, name).Scan(&c.ID, &c.Name, &c.Description, &c.SermonCount, &c.CreatedAt)
	if err != nil {
		return SermonCategory{}, err
	}
	return c, nil
}

func (s *PostgresStore) UpdateSermonCategory(ctx context.Context, categoryID, name, description string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sermon_categories SET name=$2, description=$3 WHERE id=$1
	`, categoryID, name, description)
	if err != nil {
		return fmt.Errorf("update sermon category: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSermonCategory(ctx context.Context, categoryID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sermon_categories WHERE id=$1`, categoryID)
	if err != nil {
		return fmt.Errorf("delete sermon category: %w", err)
	}
	return nil
}

// ── Sermons ──

const sermonColumns = `
	s.id, s.title, s.description, s.video_id, s.embed_url, s.thumbnail_url, s.duration,
	s.category_id, c.name, s.uploaded_by,
	(SELECT count(*) FROM sermon_views v WHERE v.sermon_id = s.id),
	(SELECT count(*) FROM sermon_views v WHERE v.sermon_id = s.id AND v.liked),
	s.created_at, s.updated_at`

func scanSermon(row interface{ Scan(...any) error }) (Sermon, error) {
	var item Sermon
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.VideoID, &item.EmbedURL, &item.ThumbnailURL, &item.Duration,
		&item.CategoryID, &item.CategoryName, &item.UploadedBy, &item.TotalViews, &item.TotalLikes,
		&item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *PostgresStore) CreateSermon(ctx context.Context, sermon Sermon) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sermons (id, title, description, video_id, embed_url, thumbnail_url, duration, category_id, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sermon.ID, sermon.Title, sermon.Description, sermon.VideoID, sermon.EmbedURL, sermon.ThumbnailURL,
		sermon.Duration, sermon.CategoryID, sermon.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert sermon: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSermons(ctx context.Context, categoryID string) ([]Sermon, error) {
	query := `
		SELECT ` + sermonColumns + `
		FROM sermons s JOIN sermon_categories c ON c.id = s.category_id`
	args := []any{}
	if categoryID != "" {
		query += ` WHERE s.category_id = $1`
		args = append(args, categoryID)
	}
	query += ` ORDER BY s.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sermons: %w", err)
	}
	defer rows.Close()

	items := make([]Sermon, 0)
	for rows.Next() {
		item, err := scanSermon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sermon: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sermons: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSermon(ctx context.Context, sermonID string) (Sermon, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sermonColumns+`
		FROM sermons s JOIN sermon_categories c ON c.id = s.category_id
		WHERE s.id = $1
	`, sermonID)
	return scanSermon(row)
}

func (s *PostgresStore) GetSermonByVideoID(ctx context.Context, videoID string) (Sermon, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sermonColumns+`
		FROM sermons s JOIN sermon_categories c ON c.id = s.category_id
		WHERE s.video_id = $1
	`, videoID)
	return scanSermon(row)
}

func (s *PostgresStore) UpdateSermon(ctx context.Context, sermon Sermon) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sermons
		SET title=$2, description=$3, category_id=$4, thumbnail_url=$5, updated_at=NOW()
		WHERE id=$1
	`, sermon.ID, sermon.Title, sermon.Description, sermon.CategoryID, sermon.ThumbnailURL)
	if err != nil {
		return fmt.Errorf("update sermon: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSermon(ctx context.Context, sermonID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sermons WHERE id=$1`, sermonID)
	if err != nil {
		return fmt.Errorf("delete sermon: %w", err)
	}
	return nil
}

// MarkSermonViewed records a view once per member. Replays hit the unique
// key and do nothing; the first write reports true.
func (s *PostgresStore) MarkSermonViewed(ctx context.Context, sermonID, memberID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sermon_views (sermon_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT (sermon_id, member_id) DO NOTHING
	`, sermonID, memberID)
	if err != nil {
		return false, fmt.Errorf("mark sermon viewed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark sermon viewed rows: %w", err)
	}
	return affected > 0, nil
}

// ToggleSermonLike flips the like flag on the member's ledger row, creating
// the row (viewed and liked) when none exists. Returns the new flag.
func (s *PostgresStore) ToggleSermonLike(ctx context.Context, sermonID, memberID string) (bool, error) {
	var liked bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sermon_views (sermon_id, member_id, liked)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (sermon_id, member_id) DO UPDATE SET liked = NOT sermon_views.liked
		RETURNING liked
	`, sermonID, memberID).Scan(&liked)
	if err != nil {
		return false, fmt.Errorf("toggle sermon like: %w", err)
	}
	return liked, nil
}

func (s *PostgresStore) ListSermonViews(ctx context.Context, sermonID string) ([]SermonView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.sermon_id, v.member_id, m.full_name, v.viewed_at, v.liked
		FROM sermon_views v JOIN members m ON m.id = v.member_id
		WHERE v.sermon_id = $1
		ORDER BY v.viewed_at DESC
	`, sermonID)
	if err != nil {
		return nil, fmt.Errorf("list sermon views: %w", err)
	}
	defer rows.Close()

	items := make([]SermonView, 0)
	for rows.Next() {
		var v SermonView
		if err := rows.Scan(&v.SermonID, &v.MemberID, &v.MemberName, &v.ViewedAt, &v.Liked); err != nil {
			return nil, fmt.Errorf("scan sermon view: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sermon views: %w", err)
	}
	return items, nil
}

// ListSermonNonViewers returns approved members with no ledger row for the
// sermon, for the analytics not-watched list.
func (s *PostgresStore) ListSermonNonViewers(ctx context.Context, sermonID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM members m JOIN branches b ON b.id = m.branch_id
		WHERE m.status = 'approved'
			AND NOT EXISTS (SELECT 1 FROM sermon_views v WHERE v.sermon_id = $1 AND v.member_id = m.id)
		ORDER BY m.full_name
	`, sermonID)
	if err != nil {
		return nil, fmt.Errorf("list sermon non-viewers: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

// ── Blogs ──

const blogColumns = `
	bl.id, bl.title, bl.content, bl.status, bl.featured_image,
	bl.created_by, a.display_name,
	(SELECT count(*) FROM blog_views v WHERE v.blog_id = bl.id),
	bl.created_at, bl.updated_at`

func scanBlog(row interface{ Scan(...any) error }) (Blog, error) {
	var item Blog
	err := row.Scan(&item.ID, &item.Title, &item.Content, &item.Status, &item.FeaturedImage,
		&item.CreatedBy, &item.AuthorName, &item.ViewCount, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (s *PostgresStore) CreateBlog(ctx context.Context, blog Blog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blogs (id, title, content, status, featured_image, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, blog.ID, blog.Title, blog.Content, blog.Status, blog.FeaturedImage, blog.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert blog: %w", err)
	}
	return nil
}

// ListBlogs returns blog posts. publishedOnly limits to published posts and
// viewerID (when set) fills the per-member HasViewed flag.
func (s *PostgresStore) ListBlogs(ctx context.Context, publishedOnly bool, viewerID string) ([]Blog, error) {
	query := `
		SELECT ` + blogColumns + `,
			CASE WHEN $1 <> '' THEN EXISTS (SELECT 1 FROM blog_views v WHERE v.blog_id = bl.id AND v.member_id = $1) ELSE FALSE END
		FROM blogs bl JOIN admins a ON a.id = bl.created_by`
	if publishedOnly {
		query += ` WHERE bl.status = 'published'`
	}
	query += ` ORDER BY bl.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	items := make([]Blog, 0)
	for rows.Next() {
		var item Blog
		if err := rows.Scan(&item.ID, &item.Title, &item.Content, &item.Status, &item.FeaturedImage,
			&item.CreatedBy, &item.AuthorName, &item.ViewCount, &item.CreatedAt, &item.UpdatedAt, &item.HasViewed); err != nil {
			return nil, fmt.Errorf("scan blog: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blogs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBlog(ctx context.Context, blogID string) (Blog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+blogColumns+`
		FROM blogs bl JOIN admins a ON a.id = bl.created_by
		WHERE bl.id = $1
	`, blogID)
	return scanBlog(row)
}

func (s *PostgresStore) UpdateBlog(ctx context.Context, blog Blog) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE blogs
		SET title=$2, content=$3, status=$4, featured_image=$5, updated_at=NOW()
		WHERE id=$1
	`, blog.ID, blog.Title, blog.Content, blog.Status, blog.FeaturedImage)
	if err != nil {
		return fmt.Errorf("update blog: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBlog(ctx context.Context, blogID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM blogs WHERE id=$1`, blogID)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkBlogViewed(ctx context.Context, blogID, memberID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO blog_views (blog_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT (blog_id, member_id) DO NOTHING
	`, blogID, memberID)
	if err != nil {
		return false, fmt.Errorf("mark blog viewed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark blog viewed rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListBlogReaders(ctx context.Context, blogID string) ([]BlogReader, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.member_id, m.full_name, v.viewed_at
		FROM blog_views v JOIN members m ON m.id = v.member_id
		WHERE v.blog_id = $1
		ORDER BY v.viewed_at DESC
	`, blogID)
	if err != nil {
		return nil, fmt.Errorf("list blog readers: %w", err)
	}
	defer rows.Close()

	items := make([]BlogReader, 0)
	for rows.Next() {
		var r BlogReader
		if err := rows.Scan(&r.MemberID, &r.MemberName, &r.ViewedAt); err != nil {
			return nil, fmt.Errorf("scan blog reader: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blog readers: %w", err)
	}
	return items, nil
}

// ── Prayer requests ──

func (s *PostgresStore) CreatePrayer(ctx context.Context, prayer PrayerRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prayer_requests (id, title, content, member_id)
		VALUES ($1, $2, $3, $4)
	`, prayer.ID, prayer.Title, prayer.Content, prayer.MemberID)
	if err != nil {
		return fmt.Errorf("insert prayer request: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPrayers(ctx context.Context) ([]PrayerRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.content, p.pastor_response, p.member_id, m.full_name, p.created_at, p.updated_at
		FROM prayer_requests p JOIN members m ON m.id = p.member_id
		ORDER BY p.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list prayer requests: %w", err)
	}
	defer rows.Close()

	items := make([]PrayerRequest, 0)
	for rows.Next() {
		var p PrayerRequest
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.PastorResponse, &p.MemberID, &p.MemberName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan prayer request: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prayer requests: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPrayer(ctx context.Context, prayerID string) (PrayerRequest, error) {
	var p PrayerRequest
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.title, p.content, p.pastor_response, p.member_id, m.full_name, p.created_at, p.updated_at
		FROM prayer_requests p JOIN members m ON m.id = p.member_id
		WHERE p.id = $1
	`, prayerID).Scan(&p.ID, &p.Title, &p.Content, &p.PastorResponse, &p.MemberID, &p.MemberName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return PrayerRequest{}, err
	}
	return p, nil
}

func (s *PostgresStore) UpdatePrayer(ctx context.Context, prayerID, title, content string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE prayer_requests SET title=$2, content=$3, updated_at=NOW() WHERE id=$1
	`, prayerID, title, content)
	if err != nil {
		return fmt.Errorf("update prayer request: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePrayer(ctx context.Context, prayerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM prayer_requests WHERE id=$1`, prayerID)
	if err != nil {
		return fmt.Errorf("delete prayer request: %w", err)
	}
	return nil
}

func (s *PostgresStore) RespondPrayer(ctx context.Context, prayerID, response string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE prayer_requests SET pastor_response=$2, updated_at=NOW() WHERE id=$1
	`, prayerID, response)
	if err != nil {
		return fmt.Errorf("respond prayer request: %w", err)
	}
	return nil
}

// ── Notifications ──

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, member_id, message, type)
		VALUES ($1, $2, $3, $4)
	`, n.ID, n.MemberID, n.Message, n.Type)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// InsertNotifications fans a batch out in one statement.
func (s *PostgresStore) InsertNotifications(ctx context.Context, items []Notification) error {
	if len(items) == 0 {
		return nil
	}
	values := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*4)
	for i, n := range items {
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4))
		args = append(args, n.ID, n.MemberID, n.Message, n.Type)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, member_id, message, type)
		VALUES `+strings.Join(values, ", "), args...)
	if err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, memberID string, unreadOnly bool) ([]Notification, error) {
	query := `
		SELECT id, member_id, message, type, is_read, created_at
		FROM notifications
		WHERE member_id = $1`
	if unreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.MemberID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetNotification(ctx context.Context, notificationID string) (Notification, error) {
	var n Notification
	err := s.db.QueryRowContext(ctx, `
		SELECT id, member_id, message, type, is_read, created_at
		FROM notifications WHERE id=$1
	`, notificationID).Scan(&n.ID, &n.MemberID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

func (s *PostgresStore) UnreadNotificationCount(ctx context.Context, memberID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM notifications WHERE member_id=$1 AND NOT is_read
	`, memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread notification count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1`, notificationID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, memberID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE member_id=$1 AND NOT is_read
	`, memberID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read rows: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) DeleteNotification(ctx context.Context, notificationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id=$1`, notificationID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

// ── Audit log ──

func (s *PostgresStore) InsertAuditLog(ctx context.Context, entry AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, admin_id, action, resource, resource_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.AdminID, entry.Action, entry.Resource, entry.ResourceID, entry.Details)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ── Dashboard ──

func (s *PostgresStore) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM members),
			(SELECT count(*) FROM members WHERE status='pending'),
			(SELECT count(*) FROM members WHERE status='approved'),
			(SELECT count(*) FROM members WHERE status='revoked'),
			(SELECT count(*) FROM branches),
			(SELECT count(*) FROM sermons),
			(SELECT count(*) FROM blogs),
			(SELECT count(*) FROM events),
			(SELECT count(*) FROM events WHERE cross_branch_status='pending'),
			(SELECT count(*) FROM prayer_requests WHERE pastor_response IS NULL)
	`).Scan(&stats.TotalMembers, &stats.PendingMembers, &stats.ApprovedMembers, &stats.RevokedMembers,
		&stats.TotalBranches, &stats.TotalSermons, &stats.TotalBlogs, &stats.TotalEvents,
		&stats.PendingCrossBranch, &stats.OpenPrayers)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT kind, title, actor, created_at FROM (
			SELECT 'member_signup' AS kind, m.full_name AS title, m.full_name AS actor, m.created_at FROM members m
			UNION ALL
			SELECT 'event_created', e.title, m.full_name, e.created_at FROM events e JOIN members m ON m.id = e.created_by
			UNION ALL
			SELECT 'sermon_uploaded', s.title, a.display_name, s.created_at FROM sermons s JOIN admins a ON a.id = s.uploaded_by
			UNION ALL
			SELECT 'blog_created', bl.title, a.display_name, bl.created_at FROM blogs bl JOIN admins a ON a.id = bl.created_by
			UNION ALL
			SELECT 'prayer_request', p.title, m.full_name, p.created_at FROM prayer_requests p JOIN members m ON m.id = p.member_id
		) activity
		ORDER BY created_at DESC
		LIMIT %d
	`, limit))
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityEntry, 0)
	for rows.Next() {
		var entry ActivityEntry
		if err := rows.Scan(&entry.Kind, &entry.Title, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}

// ── Media assets ──

func (s *PostgresStore) InsertMediaAsset(ctx context.Context, asset MediaAsset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_assets (id, url, media_type, file_name, object_key, member_id, admin_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, asset.ID, asset.URL, asset.MediaType, asset.FileName, asset.ObjectKey, asset.MemberID, asset.AdminID)
	if err != nil {
		return fmt.Errorf("insert media asset: %w", err)
	}
	return nil
}
