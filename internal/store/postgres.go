package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Members ──

func (s *PostgresStore) CreateMember(ctx context.Context, member Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, full_name, email, password_hash, status, profile_image, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, member.ID, member.FullName, member.Email, member.PasswordHash, member.Status, member.ProfileImage, member.BranchID)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

const memberColumns = `
	m.id, m.full_name, m.email, m.password_hash, m.status, m.profile_image,
	m.branch_id, b.name, m.created_at, m.updated_at`

func scanMember(row interface{ Scan(...any) error }) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.FullName, &m.Email, &m.PasswordHash, &m.Status, &m.ProfileImage,
		&m.BranchID, &m.BranchName, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *PostgresStore) GetMemberByID(ctx context.Context, memberID string) (Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM members m JOIN branches b ON b.id = m.branch_id
		WHERE m.id = $1
	`, memberID)
	return scanMember(row)
}

func (s *PostgresStore) GetMemberByEmail(ctx context.Context, email string) (Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM members m JOIN branches b ON b.id = m.branch_id
		WHERE LOWER(m.email) = LOWER($1)
	`, email)
	return scanMember(row)
}

// ListMembers applies search, status, and branch filters with pagination and
// returns the page plus the total match count.
func (s *PostgresStore) ListMembers(ctx context.Context, filter MemberFilter) ([]Member, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(m.full_name ILIKE $%d OR m.email ILIKE $%d)", argN, argN))
		args = append(args, "%"+filter.Search+"%")
		argN++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("m.status = $%d", argN))
		args = append(args, filter.Status)
		argN++
	}
	if filter.BranchID != "" {
		where = append(where, fmt.Sprintf("m.branch_id = $%d", argN))
		args = append(args, filter.BranchID)
		argN++
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	countSQL := "SELECT count(*) FROM members m WHERE " + whereSQL
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	orderCol := "m.created_at"
	switch filter.SortBy {
	case "name":
		orderCol = "m.full_name"
	case "email":
		orderCol = "m.email"
	case "status":
		orderCol = "m.status"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM members m JOIN branches b ON b.id = m.branch_id
		WHERE %s
		ORDER BY %s %s
		LIMIT %d OFFSET %d
	`, memberColumns, whereSQL, orderCol, direction, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate members: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) ListPendingMembers(ctx context.Context) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM members m JOIN branches b ON b.id = m.branch_id
		WHERE m.status = $1
		ORDER BY m.created_at ASC
	`, MemberPending)
	if err != nil {
		return nil, fmt.Errorf("list pending members: %w", err)
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
		return nil, fmt.Errorf("iterate pending members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateMemberStatus(ctx context.Context, memberID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE members SET status=$2, updated_at=NOW() WHERE id=$1
	`, memberID, status)
	if err != nil {
		return false, fmt.Errorf("update member status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update member status rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateMembersStatus(ctx context.Context, memberIDs []string, status string) (int, error) {
	if len(memberIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(memberIDs))
	args := make([]any, 0, len(memberIDs)+1)
	args = append(args, status)
	for i, id := range memberIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE members SET status=$1, updated_at=NOW() WHERE id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk update member status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk update member status rows: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) UpdateMemberProfile(ctx context.Context, memberID, fullName string, profileImage *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET full_name = COALESCE(NULLIF($2, ''), full_name),
			profile_image = COALESCE($3, profile_image),
			updated_at = NOW()
		WHERE id=$1
	`, memberID, fullName, profileImage)
	if err != nil {
		return fmt.Errorf("update member profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMemberPassword(ctx context.Context, memberID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE members SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, memberID, passwordHash)
	if err != nil {
		return fmt.Errorf("update member password: %w", err)
	}
	return nil
}

func (s *PostgresStore) MemberActivity(ctx context.Context, memberID string) (MemberActivity, error) {
	var activity MemberActivity
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM sermon_views WHERE member_id=$1),
			(SELECT count(*) FROM sermon_views WHERE member_id=$1 AND liked),
			(SELECT count(*) FROM blog_views WHERE member_id=$1),
			(SELECT count(*) FROM events WHERE created_by=$1),
			(SELECT count(*) FROM prayer_requests WHERE member_id=$1)
	`, memberID).Scan(&activity.SermonsViewed, &activity.SermonsLiked, &activity.BlogsRead, &activity.EventsCreated, &activity.Prayers)
	if err != nil {
		return MemberActivity{}, fmt.Errorf("member activity: %w", err)
	}
	return activity, nil
}

func (s *PostgresStore) ListApprovedMemberIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM members WHERE status=$1`, MemberApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved member ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member ids: %w", err)
	}
	return ids, nil
}

// ── Admins ──

func (s *PostgresStore) CreateAdmin(ctx context.Context, admin Admin) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, email, password_hash, display_name, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, admin.ID, admin.Email, admin.PasswordHash, admin.DisplayName, admin.IsActive)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAdminByID(ctx context.Context, adminID string) (Admin, error) {
	var a Admin
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, is_active, last_login, created_at, updated_at
		FROM admins WHERE id=$1
	`, adminID).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.IsActive, &a.LastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Admin{}, err
	}
	return a, nil
}

func (s *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	var a Admin
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, is_active, last_login, created_at, updated_at
		FROM admins WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.IsActive, &a.LastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Admin{}, err
	}
	return a, nil
}

func (s *PostgresStore) AdminCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM admins`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) UpdateAdminLastLogin(ctx context.Context, adminID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE admins SET last_login=NOW(), updated_at=NOW() WHERE id=$1`, adminID)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAdminPassword(ctx context.Context, adminID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE admins SET password_hash=$2, updated_at=NOW() WHERE id=$1`, adminID, passwordHash)
	if err != nil {
		return fmt.Errorf("update admin password: %w", err)
	}
	return nil
}

// ── Branches ──

func (s *PostgresStore) ListBranches(ctx context.Context) ([]Branch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM branches ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	items := make([]Branch, 0)
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetBranch(ctx context.Context, branchID string) (Branch, error) {
	var b Branch
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM branches WHERE id=$1`, branchID).
		Scan(&b.ID, &b.Name, &b.CreatedAt)
	if err != nil {
		return Branch{}, err
	}
	return b, nil
}

func (s *PostgresStore) GetBranchByName(ctx context.Context, name string) (Branch, error) {
	var b Branch
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM branches WHERE LOWER(name)=LOWER($1)`, name).
		Scan(&b.ID, &b.Name, &b.CreatedAt)
	if err != nil {
		return Branch{}, err
	}
	return b, nil
}

func (s *PostgresStore) CreateBranch(ctx context.Context, branch Branch) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO branches (id, name) VALUES ($1, $2)`, branch.ID, branch.Name)
	if err != nil {
		return fmt.Errorf("insert branch: %w", err)
	}
	return nil
}

// ── Refresh sessions and token revocation (Postgres fallback) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, subjectID, kind string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, subject_id, subject_kind, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO UPDATE SET subject_id=EXCLUDED.subject_id, subject_kind=EXCLUDED.subject_kind, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, subjectID, kind, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, string, error) {
	var subjectID, kind string
	err := s.db.QueryRowContext(ctx, `
		SELECT subject_id, subject_kind
		FROM refresh_sessions
		WHERE token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&subjectID, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", sql.ErrNoRows
	}
	if err != nil {
		return "", "", fmt.Errorf("lookup refresh session: %w", err)
	}
	return subjectID, kind, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Events ──

const eventColumns = `
	e.id, e.title, e.description, e.event_date, e.location, e.event_image,
	e.is_cross_branch, e.cross_branch_status, e.branch_id, b.name,
	e.created_by, m.full_name, e.created_at, e.updated_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.EventDate, &e.Location, &e.EventImage,
		&e.IsCrossBranch, &e.CrossBranchStatus, &e.BranchID, &e.BranchName,
		&e.CreatedBy, &e.CreatorName, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, title, description, event_date, location, event_image, is_cross_branch, cross_branch_status, branch_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.Title, event.Description, event.EventDate, event.Location, event.EventImage,
		event.IsCrossBranch, event.CrossBranchStatus, event.BranchID, event.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		JOIN branches b ON b.id = e.branch_id
		JOIN members m ON m.id = e.created_by
		WHERE e.id = $1
	`, eventID)
	return scanEvent(row)
}

// ListEventsVisibleTo returns the member's own branch events plus approved
// cross-branch events from other branches, ordered by event date.
func (s *PostgresStore) ListEventsVisibleTo(ctx context.Context, branchID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		JOIN branches b ON b.id = e.branch_id
		JOIN members m ON m.id = e.created_by
		WHERE e.branch_id = $1
			OR (e.is_cross_branch AND e.cross_branch_status = 'approved')
		ORDER BY e.event_date ASC
	`, branchID)
	if err != nil {
		return nil, fmt.Errorf("list visible events: %w", err)
	}
	return collectEvents(rows)
}

func (s *PostgresStore) ListAllEvents(ctx context.Context, branchID string) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events e
		JOIN branches b ON b.id = e.branch_id
		JOIN members m ON m.id = e.created_by`
	args := []any{}
	if branchID != "" {
		query += ` WHERE e.branch_id = $1`
		args = append(args, branchID)
	}
	query += ` ORDER BY e.event_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list all events: %w", err)
	}
	return collectEvents(rows)
}

func (s *PostgresStore) ListPendingCrossBranchEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		JOIN branches b ON b.id = e.branch_id
		JOIN members m ON m.id = e.created_by
		WHERE e.cross_branch_status = 'pending'
		ORDER BY e.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending cross-branch events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()
	items := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET title=$2, description=$3, event_date=$4, location=$5, event_image=$6, updated_at=NOW()
		WHERE id=$1
	`, event.ID, event.Title, event.Description, event.EventDate, event.Location, event.EventImage)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id=$1`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// TransitionEventCrossBranch moves an event between workflow states with a
// guard on the current state. Two concurrent transitions cannot both win:
// the loser sees zero rows affected and reports false.
func (s *PostgresStore) TransitionEventCrossBranch(ctx context.Context, eventID, fromStatus, toStatus string, crossBranch bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET cross_branch_status=$3, is_cross_branch=$4, updated_at=NOW()
		WHERE id=$1 AND cross_branch_status=$2
	`, eventID, fromStatus, toStatus, crossBranch)
	if err != nil {
		return false, fmt.Errorf("transition event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition event rows: %w", err)
	}
	return affected > 0, nil
}
