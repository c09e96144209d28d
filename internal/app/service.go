// Package app holds the application service and HTTP surface.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"koinonia/api/internal/auth"
	"koinonia/api/internal/config"
	"koinonia/api/internal/email"
	"koinonia/api/internal/media"
	"koinonia/api/internal/rbac"
	"koinonia/api/internal/search"
	"koinonia/api/internal/store"
	"koinonia/api/internal/video"
)

// Actor is an authenticated caller. Kind is "member" or "admin"; BranchID is
// empty for admins, who are not scoped to a branch.
type Actor struct {
	Kind      string
	ID        string
	Name      string
	Email     string
	BranchID  string
	JTI       string
	ExpiresAt time.Time
}

// Session is the token pair handed out on login and refresh.
type Session struct {
	Token        string
	RefreshToken string
	Kind         string
	SubjectID    string
	Name         string
	BranchID     string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	CreateMember(ctx context.Context, member store.Member) error
	GetMemberByID(ctx context.Context, memberID string) (store.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (store.Member, error)
	ListMembers(ctx context.Context, filter store.MemberFilter) ([]store.Member, int, error)
	ListPendingMembers(ctx context.Context) ([]store.Member, error)
	UpdateMemberStatus(ctx context.Context, memberID, status string) (bool, error)
	UpdateMembersStatus(ctx context.Context, memberIDs []string, status string) (int, error)
	UpdateMemberProfile(ctx context.Context, memberID, fullName string, profileImage *string) error
	UpdateMemberPassword(ctx context.Context, memberID, passwordHash string) error
	MemberActivity(ctx context.Context, memberID string) (store.MemberActivity, error)
	ListApprovedMemberIDs(ctx context.Context) ([]string, error)

	CreateAdmin(ctx context.Context, admin store.Admin) error
	GetAdminByID(ctx context.Context, adminID string) (store.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (store.Admin, error)
	AdminCount(ctx context.Context) (int, error)
	UpdateAdminLastLogin(ctx context.Context, adminID string) error
	UpdateAdminPassword(ctx context.Context, adminID, passwordHash string) error

	ListBranches(ctx context.Context) ([]store.Branch, error)
	GetBranch(ctx context.Context, branchID string) (store.Branch, error)
	GetBranchByName(ctx context.Context, name string) (store.Branch, error)
	CreateBranch(ctx context.Context, branch store.Branch) error

	SaveRefreshSession(ctx context.Context, tokenHash, subjectID, kind string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	CreateEvent(ctx context.Context, event store.Event) error
	GetEvent(ctx context.Context, eventID string) (store.Event, error)
	ListEventsVisibleTo(ctx context.Context, branchID string) ([]store.Event, error)
	ListAllEvents(ctx context.Context, branchID string) ([]store.Event, error)
	ListPendingCrossBranchEvents(ctx context.Context) ([]store.Event, error)
	UpdateEvent(ctx context.Context, event store.Event) error
	DeleteEvent(ctx context.Context, eventID string) error
	TransitionEventCrossBranch(ctx context.Context, eventID, fromStatus, toStatus string, crossBranch bool) (bool, error)

	CreateSermonCategory(ctx context.Context, category store.SermonCategory) error
	ListSermonCategories(ctx context.Context) ([]store.SermonCategory, error)
	GetSermonCategory(ctx context.Context, categoryID string) (store.SermonCategory, error)
	GetSermonCategoryByName(ctx context.Context, name string) (store.SermonCategory, error)
	UpdateSermonCategory(ctx context.Context, categoryID, name, description string) error
	DeleteSermonCategory(ctx context.Context, categoryID string) error

	CreateSermon(ctx context.Context, sermon store.Sermon) error
	ListSermons(ctx context.Context, categoryID string) ([]store.Sermon, error)
	GetSermon(ctx context.Context, sermonID string) (store.Sermon, error)
	GetSermonByVideoID(ctx context.Context, videoID string) (store.Sermon, error)
	UpdateSermon(ctx context.Context, sermon store.Sermon) error
	DeleteSermon(ctx context.Context, sermonID string) error
	MarkSermonViewed(ctx context.Context, sermonID, memberID string) (bool, error)
	ToggleSermonLike(ctx context.Context, sermonID, memberID string) (bool, error)
	ListSermonViews(ctx context.Context, sermonID string) ([]store.SermonView, error)
	ListSermonNonViewers(ctx context.Context, sermonID string) ([]store.Member, error)

	CreateBlog(ctx context.Context, blog store.Blog) error
	ListBlogs(ctx context.Context, publishedOnly bool, viewerID string) ([]store.Blog, error)
	GetBlog(ctx context.Context, blogID string) (store.Blog, error)
	UpdateBlog(ctx context.Context, blog store.Blog) error
	DeleteBlog(ctx context.Context, blogID string) error
	MarkBlogViewed(ctx context.Context, blogID, memberID string) (bool, error)
	ListBlogReaders(ctx context.Context, blogID string) ([]store.BlogReader, error)

	CreatePrayer(ctx context.Context, prayer store.PrayerRequest) error
	ListPrayers(ctx context.Context) ([]store.PrayerRequest, error)
	GetPrayer(ctx context.Context, prayerID string) (store.PrayerRequest, error)
	UpdatePrayer(ctx context.Context, prayerID, title, content string) error
	DeletePrayer(ctx context.Context, prayerID string) error
	RespondPrayer(ctx context.Context, prayerID, response string) error

	InsertNotification(ctx context.Context, n store.Notification) error
	InsertNotifications(ctx context.Context, items []store.Notification) error
	ListNotifications(ctx context.Context, memberID string, unreadOnly bool) ([]store.Notification, error)
	GetNotification(ctx context.Context, notificationID string) (store.Notification, error)
	UnreadNotificationCount(ctx context.Context, memberID string) (int, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, memberID string) (int, error)
	DeleteNotification(ctx context.Context, notificationID string) error

	InsertAuditLog(ctx context.Context, entry store.AuditLog) error
	DashboardStats(ctx context.Context) (store.DashboardStats, error)
	RecentActivity(ctx context.Context, limit int) ([]store.ActivityEntry, error)
	InsertMediaAsset(ctx context.Context, asset store.MediaAsset) error
}

// sessionStore holds refresh sessions. Redis when configured, otherwise the
// primary Postgres store.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, subjectID, kind string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	store    dataStore
	sessions sessionStore
	search   *search.Service
	mailer   *email.Service
	media    *media.Service
	video    *video.Client

	jwtSecret     []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	adminEmail    string
	adminPassword string
	appBaseURL    string
}

func New(st dataStore, cfg config.Config) *Service {
	return &Service{
		store:         st,
		sessions:      st,
		jwtSecret:     []byte(cfg.JWTSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		adminEmail:    cfg.AdminEmail,
		adminPassword: cfg.AdminPassword,
		appBaseURL:    strings.TrimRight(cfg.AppBaseURL, "/"),
	}
}

// SetSessionStore swaps in an external refresh-session store (Redis).
func (s *Service) SetSessionStore(ss sessionStore) { s.sessions = ss }

// SetSearch wires the search facade. nil disables search.
func (s *Service) SetSearch(svc *search.Service) { s.search = svc }

// SetMailer wires outbound email. nil disables email.
func (s *Service) SetMailer(m *email.Service) { s.mailer = m }

// SetMedia wires object storage for uploads. nil disables media upload.
func (s *Service) SetMedia(m *media.Service) { s.media = m }

// SetVideo wires the Vimeo client. nil disables sermon video upload.
func (s *Service) SetVideo(v *video.Client) { s.video = v }

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds the default branch and the first admin account, and
// reindexes search if configured. Safe to run on every start.
func (s *Service) Bootstrap(ctx context.Context) error {
	if _, err := s.store.GetBranchByName(ctx, "Headquarters"); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("bootstrap branch lookup: %w", err)
		}
		if err := s.store.CreateBranch(ctx, store.Branch{
			ID:   uuid.NewString(),
			Name: "Headquarters",
		}); err != nil {
			return fmt.Errorf("bootstrap branch: %w", err)
		}
		log.Println("bootstrap: created default branch Headquarters")
	}

	count, err := s.store.AdminCount(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap admin count: %w", err)
	}
	if count == 0 && s.adminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("bootstrap admin password: %w", err)
		}
		if err := s.store.CreateAdmin(ctx, store.Admin{
			ID:           uuid.NewString(),
			Email:        strings.ToLower(s.adminEmail),
			PasswordHash: string(hash),
			DisplayName:  "Administrator",
			IsActive:     true,
		}); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		log.Printf("bootstrap: created admin account %s", s.adminEmail)
	}

	if s.search != nil {
		go s.search.ReindexAllFromPG(context.Background())
	}
	return nil
}

// ── Authentication gate ──

func (s *Service) parseAccessClaims(ctx context.Context, token string) (auth.Claims, error) {
	claims, err := auth.ParseToken(s.jwtSecret, token)
	if err != nil {
		return auth.Claims{}, err
	}
	if claims.Purpose != auth.PurposeAccess {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	return claims, nil
}

// MemberFromToken resolves a bearer token to an approved member. A token
// carrying the wrong role is treated like any other bad credential (401);
// unapproved accounts get 403 with a status-specific message.
func (s *Service) MemberFromToken(ctx context.Context, token string) (Actor, error) {
	claims, err := s.parseAccessClaims(ctx, token)
	if err != nil {
		return Actor{}, err
	}
	if !rbac.Can(rbac.Normalize(claims.Role), rbac.ActionParticipate) {
		return Actor{}, authError("Member account required")
	}

	member, err := s.store.GetMemberByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Actor{}, authError("Unauthorized")
		}
		return Actor{}, fmt.Errorf("load member: %w", err)
	}

	switch member.Status {
	case store.MemberApproved:
	case store.MemberPending:
		return Actor{}, forbiddenError("Account pending approval")
	case store.MemberRevoked:
		return Actor{}, forbiddenError("Account access revoked")
	default:
		return Actor{}, forbiddenError("Account not approved")
	}

	return Actor{
		Kind:      auth.RoleMember,
		ID:        member.ID,
		Name:      member.FullName,
		Email:     member.Email,
		BranchID:  member.BranchID,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// AdminFromToken resolves a bearer token to an active admin.
func (s *Service) AdminFromToken(ctx context.Context, token string) (Actor, error) {
	claims, err := s.parseAccessClaims(ctx, token)
	if err != nil {
		return Actor{}, err
	}
	if !rbac.Can(rbac.Normalize(claims.Role), rbac.ActionManage) {
		return Actor{}, forbiddenError("Admin account required")
	}

	admin, err := s.store.GetAdminByID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Actor{}, authError("Unauthorized")
		}
		return Actor{}, fmt.Errorf("load admin: %w", err)
	}
	if !admin.IsActive {
		return Actor{}, authError("Account disabled")
	}

	return Actor{
		Kind:      auth.RoleAdmin,
		ID:        admin.ID,
		Name:      admin.DisplayName,
		Email:     admin.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// ActorFromToken resolves either account kind, for surfaces both can read.
func (s *Service) ActorFromToken(ctx context.Context, token string) (Actor, error) {
	claims, err := auth.ParseToken(s.jwtSecret, token)
	if err != nil {
		return Actor{}, err
	}
	if rbac.Normalize(claims.Role) == rbac.RoleAdmin {
		return s.AdminFromToken(ctx, token)
	}
	return s.MemberFromToken(ctx, token)
}

// ── Auth flows ──

func (s *Service) SignUp(ctx context.Context, fullName, emailAddr, password, branchID string) (map[string]any, error) {
	fullName = strings.TrimSpace(fullName)
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	if fullName == "" {
		return nil, validationError("fullName is required", nil)
	}
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return nil, validationError("a valid email is required", nil)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if branchID == "" {
		return nil, validationError("branchId is required", nil)
	}

	if _, err := s.store.GetBranch(ctx, branchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationError("unknown branch", nil)
		}
		return nil, fmt.Errorf("check branch: %w", err)
	}

	if _, err := s.store.GetMemberByEmail(ctx, emailAddr); err == nil {
		return nil, conflictError("Email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	member := store.Member{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        emailAddr,
		PasswordHash: string(hash),
		Status:       store.MemberPending,
		BranchID:     branchID,
	}
	if err := s.store.CreateMember(ctx, member); err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}

	return map[string]any{
		"memberId": member.ID,
		"status":   member.Status,
		"message":  "Registration received. An administrator will review your account.",
	}, nil
}

// Login authenticates a member. Unlike the request gate, a pending or revoked
// account fails login with 401 so the response does not confirm whether the
// password was right.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	member, err := s.store.GetMemberByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, authError("Invalid email or password")
		}
		return Session{}, fmt.Errorf("load member: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)) != nil {
		return Session{}, authError("Invalid email or password")
	}
	switch member.Status {
	case store.MemberApproved:
	case store.MemberPending:
		return Session{}, authError("Account pending approval")
	default:
		return Session{}, authError("Account access revoked")
	}

	return s.issueSession(ctx, auth.RoleMember, member.ID, member.FullName, member.BranchID)
}

func (s *Service) AdminLogin(ctx context.Context, emailAddr, password string) (Session, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	admin, err := s.store.GetAdminByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, authError("Invalid email or password")
		}
		return Session{}, fmt.Errorf("load admin: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return Session{}, authError("Invalid email or password")
	}
	if !admin.IsActive {
		return Session{}, authError("Account disabled")
	}

	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		log.Printf("update admin last login: %v", err)
	}

	return s.issueSession(ctx, auth.RoleAdmin, admin.ID, admin.DisplayName, "")
}

// Refresh rotates a refresh token: the old one is revoked and a fresh pair is
// issued, so a replayed refresh token fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := auth.ParseToken(s.jwtSecret, refreshToken)
	if err != nil {
		return Session{}, authError("Refresh token invalid")
	}
	if claims.Purpose != auth.PurposeRefresh {
		return Session{}, authError("Refresh token invalid")
	}

	tokenHash := auth.HashToken(refreshToken)
	subjectID, kind, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, authError("Refresh token invalid")
	}
	if subjectID != claims.Sub || kind != claims.Role {
		return Session{}, authError("Refresh token invalid")
	}

	var name, branchID string
	if kind == auth.RoleAdmin {
		admin, err := s.store.GetAdminByID(ctx, subjectID)
		if err != nil {
			return Session{}, authError("Refresh token invalid")
		}
		if !admin.IsActive {
			return Session{}, authError("Account disabled")
		}
		name = admin.DisplayName
	} else {
		member, err := s.store.GetMemberByID(ctx, subjectID)
		if err != nil {
			return Session{}, authError("Refresh token invalid")
		}
		if member.Status != store.MemberApproved {
			return Session{}, authError("Account not approved")
		}
		name = member.FullName
		branchID = member.BranchID
	}

	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		log.Printf("revoke rotated refresh token: %v", err)
	}

	return s.issueSession(ctx, kind, subjectID, name, branchID)
}

// Logout revokes the refresh session and blacklists the access token's JTI
// for the remainder of its lifetime.
func (s *Service) Logout(ctx context.Context, actor Actor, refreshToken string) error {
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			log.Printf("revoke refresh session: %v", err)
		}
	}
	if actor.JTI != "" {
		if err := s.store.RevokeAccessToken(ctx, actor.JTI, actor.ExpiresAt); err != nil {
			return fmt.Errorf("revoke access token: %w", err)
		}
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, kind, subjectID, name, branchID string) (Session, error) {
	now := time.Now()
	accessExp := now.Add(s.accessTTL)
	refreshExp := now.Add(s.refreshTTL)

	accessToken, err := auth.IssueToken(s.jwtSecret, auth.Claims{
		Sub:     subjectID,
		Name:    name,
		Role:    kind,
		Purpose: auth.PurposeAccess,
		Branch:  branchID,
		JTI:     uuid.NewString(),
		Exp:     accessExp.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refreshToken, err := auth.IssueToken(s.jwtSecret, auth.Claims{
		Sub:     subjectID,
		Role:    kind,
		Purpose: auth.PurposeRefresh,
		JTI:     uuid.NewString(),
		Exp:     refreshExp.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refreshToken), subjectID, kind, refreshExp); err != nil {
		return Session{}, fmt.Errorf("save refresh session: %w", err)
	}

	return Session{
		Token:        accessToken,
		RefreshToken: refreshToken,
		Kind:         kind,
		SubjectID:    subjectID,
		Name:         name,
		BranchID:     branchID,
		ExpiresAt:    accessExp,
	}, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return validationError("password must be at least 8 characters", nil)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return validationError("password must contain at least one letter and one digit", nil)
	}
	return nil
}
