package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"koinonia/api/internal/auth"
	"koinonia/api/internal/config"
	"koinonia/api/internal/store"
)

const testSecret = "test-secret"

// fakeStore implements dataStore with overridable function fields. Lookup
// methods default to sql.ErrNoRows, everything else to a zero-value success.
type fakeStore struct {
	pingFn func(context.Context) error

	createMemberFn         func(context.Context, store.Member) error
	getMemberByIDFn        func(context.Context, string) (store.Member, error)
	getMemberByEmailFn     func(context.Context, string) (store.Member, error)
	listMembersFn          func(context.Context, store.MemberFilter) ([]store.Member, int, error)
	listPendingMembersFn   func(context.Context) ([]store.Member, error)
	updateMemberStatusFn   func(context.Context, string, string) (bool, error)
	updateMembersStatusFn  func(context.Context, []string, string) (int, error)
	updateMemberProfileFn  func(context.Context, string, string, *string) error
	updateMemberPasswordFn func(context.Context, string, string) error
	memberActivityFn       func(context.Context, string) (store.MemberActivity, error)
	listApprovedIDsFn      func(context.Context) ([]string, error)

	createAdminFn          func(context.Context, store.Admin) error
	getAdminByIDFn         func(context.Context, string) (store.Admin, error)
	getAdminByEmailFn      func(context.Context, string) (store.Admin, error)
	adminCountFn           func(context.Context) (int, error)
	updateAdminLastLoginFn func(context.Context, string) error
	updateAdminPasswordFn  func(context.Context, string, string) error

	listBranchesFn    func(context.Context) ([]store.Branch, error)
	getBranchFn       func(context.Context, string) (store.Branch, error)
	getBranchByNameFn func(context.Context, string) (store.Branch, error)
	createBranchFn    func(context.Context, store.Branch) error

	saveRefreshSessionFn   func(context.Context, string, string, string, time.Time) error
	lookupRefreshSessionFn func(context.Context, string) (string, string, error)
	revokeRefreshSessionFn func(context.Context, string) error
	revokeAccessTokenFn    func(context.Context, string, time.Time) error
	isAccessTokenRevokedFn func(context.Context, string) (bool, error)

	createEventFn                func(context.Context, store.Event) error
	getEventFn                   func(context.Context, string) (store.Event, error)
	listEventsVisibleToFn        func(context.Context, string) ([]store.Event, error)
	listAllEventsFn              func(context.Context, string) ([]store.Event, error)
	listPendingCrossBranchFn     func(context.Context) ([]store.Event, error)
	updateEventFn                func(context.Context, store.Event) error
	deleteEventFn                func(context.Context, string) error
	transitionEventCrossBranchFn func(context.Context, string, string, string, bool) (bool, error)

	createSermonCategoryFn    func(context.Context, store.SermonCategory) error
	listSermonCategoriesFn    func(context.Context) ([]store.SermonCategory, error)
	getSermonCategoryFn       func(context.Context, string) (store.SermonCategory, error)
	getSermonCategoryByNameFn func(context.Context, string) (store.SermonCategory, error)
	updateSermonCategoryFn    func(context.Context, string, string, string) error
	deleteSermonCategoryFn    func(context.Context, string) error

	createSermonFn         func(context.Context, store.Sermon) error
	listSermonsFn          func(context.Context, string) ([]store.Sermon, error)
	getSermonFn            func(context.Context, string) (store.Sermon, error)
	getSermonByVideoIDFn   func(context.Context, string) (store.Sermon, error)
	updateSermonFn         func(context.Context, store.Sermon) error
	deleteSermonFn         func(context.Context, string) error
	markSermonViewedFn     func(context.Context, string, string) (bool, error)
	toggleSermonLikeFn     func(context.Context, string, string) (bool, error)
	listSermonViewsFn      func(context.Context, string) ([]store.SermonView, error)
	listSermonNonViewersFn func(context.Context, string) ([]store.Member, error)

	createBlogFn      func(context.Context, store.Blog) error
	listBlogsFn       func(context.Context, bool, string) ([]store.Blog, error)
	getBlogFn         func(context.Context, string) (store.Blog, error)
	updateBlogFn      func(context.Context, store.Blog) error
	deleteBlogFn      func(context.Context, string) error
	markBlogViewedFn  func(context.Context, string, string) (bool, error)
	listBlogReadersFn func(context.Context, string) ([]store.BlogReader, error)

	createPrayerFn  func(context.Context, store.PrayerRequest) error
	listPrayersFn   func(context.Context) ([]store.PrayerRequest, error)
	getPrayerFn     func(context.Context, string) (store.PrayerRequest, error)
	updatePrayerFn  func(context.Context, string, string, string) error
	deletePrayerFn  func(context.Context, string) error
	respondPrayerFn func(context.Context, string, string) error

	insertNotificationFn       func(context.Context, store.Notification) error
	insertNotificationsFn      func(context.Context, []store.Notification) error
	listNotificationsFn        func(context.Context, string, bool) ([]store.Notification, error)
	getNotificationFn          func(context.Context, string) (store.Notification, error)
	unreadNotificationCountFn  func(context.Context, string) (int, error)
	markNotificationReadFn     func(context.Context, string) error
	markAllNotificationsReadFn func(context.Context, string) (int, error)
	deleteNotificationFn       func(context.Context, string) error

	insertAuditLogFn   func(context.Context, store.AuditLog) error
	dashboardStatsFn   func(context.Context) (store.DashboardStats, error)
	recentActivityFn   func(context.Context, int) ([]store.ActivityEntry, error)
	insertMediaAssetFn func(context.Context, store.MediaAsset) error
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) CreateMember(ctx context.Context, m store.Member) error {
	if f.createMemberFn != nil {
		return f.createMemberFn(ctx, m)
	}
	return nil
}

func (f *fakeStore) GetMemberByID(ctx context.Context, id string) (store.Member, error) {
	if f.getMemberByIDFn != nil {
		return f.getMemberByIDFn(ctx, id)
	}
	return store.Member{}, sql.ErrNoRows
}

func (f *fakeStore) GetMemberByEmail(ctx context.Context, email string) (store.Member, error) {
	if f.getMemberByEmailFn != nil {
		return f.getMemberByEmailFn(ctx, email)
	}
	return store.Member{}, sql.ErrNoRows
}

func (f *fakeStore) ListMembers(ctx context.Context, filter store.MemberFilter) ([]store.Member, int, error) {
	if f.listMembersFn != nil {
		return f.listMembersFn(ctx, filter)
	}
	return nil, 0, nil
}

func (f *fakeStore) ListPendingMembers(ctx context.Context) ([]store.Member, error) {
	if f.listPendingMembersFn != nil {
		return f.listPendingMembersFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) UpdateMemberStatus(ctx context.Context, id, status string) (bool, error) {
	if f.updateMemberStatusFn != nil {
		return f.updateMemberStatusFn(ctx, id, status)
	}
	return true, nil
}

func (f *fakeStore) UpdateMembersStatus(ctx context.Context, ids []string, status string) (int, error) {
	if f.updateMembersStatusFn != nil {
		return f.updateMembersStatusFn(ctx, ids, status)
	}
	return len(ids), nil
}

func (f *fakeStore) UpdateMemberProfile(ctx context.Context, id, fullName string, profileImage *string) error {
	if f.updateMemberProfileFn != nil {
		return f.updateMemberProfileFn(ctx, id, fullName, profileImage)
	}
	return nil
}

func (f *fakeStore) UpdateMemberPassword(ctx context.Context, id, hash string) error {
	if f.updateMemberPasswordFn != nil {
		return f.updateMemberPasswordFn(ctx, id, hash)
	}
	return nil
}

func (f *fakeStore) MemberActivity(ctx context.Context, id string) (store.MemberActivity, error) {
	if f.memberActivityFn != nil {
		return f.memberActivityFn(ctx, id)
	}
	return store.MemberActivity{}, nil
}

func (f *fakeStore) ListApprovedMemberIDs(ctx context.Context) ([]string, error) {
	if f.listApprovedIDsFn != nil {
		return f.listApprovedIDsFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) CreateAdmin(ctx context.Context, a store.Admin) error {
	if f.createAdminFn != nil {
		return f.createAdminFn(ctx, a)
	}
	return nil
}

func (f *fakeStore) GetAdminByID(ctx context.Context, id string) (store.Admin, error) {
	if f.getAdminByIDFn != nil {
		return f.getAdminByIDFn(ctx, id)
	}
	return store.Admin{}, sql.ErrNoRows
}

func (f *fakeStore) GetAdminByEmail(ctx context.Context, email string) (store.Admin, error) {
	if f.getAdminByEmailFn != nil {
		return f.getAdminByEmailFn(ctx, email)
	}
	return store.Admin{}, sql.ErrNoRows
}

func (f *fakeStore) AdminCount(ctx context.Context) (int, error) {
	if f.adminCountFn != nil {
		return f.adminCountFn(ctx)
	}
	return 1, nil
}

func (f *fakeStore) UpdateAdminLastLogin(ctx context.Context, id string) error {
	if f.updateAdminLastLoginFn != nil {
		return f.updateAdminLastLoginFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) UpdateAdminPassword(ctx context.Context, id, hash string) error {
	if f.updateAdminPasswordFn != nil {
		return f.updateAdminPasswordFn(ctx, id, hash)
	}
	return nil
}

func (f *fakeStore) ListBranches(ctx context.Context) ([]store.Branch, error) {
	if f.listBranchesFn != nil {
		return f.listBranchesFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) GetBranch(ctx context.Context, id string) (store.Branch, error) {
	if f.getBranchFn != nil {
		return f.getBranchFn(ctx, id)
	}
	return store.Branch{}, sql.ErrNoRows
}

func (f *fakeStore) GetBranchByName(ctx context.Context, name string) (store.Branch, error) {
	if f.getBranchByNameFn != nil {
		return f.getBranchByNameFn(ctx, name)
	}
	return store.Branch{}, sql.ErrNoRows
}

func (f *fakeStore) CreateBranch(ctx context.Context, b store.Branch) error {
	if f.createBranchFn != nil {
		return f.createBranchFn(ctx, b)
	}
	return nil
}

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, subjectID, kind string, expiresAt time.Time) error {
	if f.saveRefreshSessionFn != nil {
		return f.saveRefreshSessionFn(ctx, tokenHash, subjectID, kind, expiresAt)
	}
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, string, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return "", "", sql.ErrNoRows
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshSessionFn != nil {
		return f.revokeRefreshSessionFn(ctx, tokenHash)
	}
	return nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	if f.revokeAccessTokenFn != nil {
		return f.revokeAccessTokenFn(ctx, jti, exp)
	}
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, e store.Event) error {
	if f.createEventFn != nil {
		return f.createEventFn(ctx, e)
	}
	return nil
}

func (f *fakeStore) GetEvent(ctx context.Context, id string) (store.Event, error) {
	if f.getEventFn != nil {
		return f.getEventFn(ctx, id)
	}
	return store.Event{}, sql.ErrNoRows
}

func (f *fakeStore) ListEventsVisibleTo(ctx context.Context, branchID string) ([]store.Event, error) {
	if f.listEventsVisibleToFn != nil {
		return f.listEventsVisibleToFn(ctx, branchID)
	}
	return nil, nil
}

func (f *fakeStore) ListAllEvents(ctx context.Context, branchID string) ([]store.Event, error) {
	if f.listAllEventsFn != nil {
		return f.listAllEventsFn(ctx, branchID)
	}
	return nil, nil
}

func (f *fakeStore) ListPendingCrossBranchEvents(ctx context.Context) ([]store.Event, error) {
	if f.listPendingCrossBranchFn != nil {
		return f.listPendingCrossBranchFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) UpdateEvent(ctx context.Context, e store.Event) error {
	if f.updateEventFn != nil {
		return f.updateEventFn(ctx, e)
	}
	return nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, id string) error {
	if f.deleteEventFn != nil {
		return f.deleteEventFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) TransitionEventCrossBranch(ctx context.Context, id, from, to string, crossBranch bool) (bool, error) {
	if f.transitionEventCrossBranchFn != nil {
		return f.transitionEventCrossBranchFn(ctx, id, from, to, crossBranch)
	}
	return true, nil
}

func (f *fakeStore) CreateSermonCategory(ctx context.Context, c store.SermonCategory) error {
	if f.createSermonCategoryFn != nil {
		return f.createSermonCategoryFn(ctx, c)
	}
	return nil
}

func (f *fakeStore) ListSermonCategories(ctx context.Context) ([]store.SermonCategory, error) {
	if f.listSermonCategoriesFn != nil {
		return f.listSermonCategoriesFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) GetSermonCategory(ctx context.Context, id string) (store.SermonCategory, error) {
	if f.getSermonCategoryFn != nil {
		return f.getSermonCategoryFn(ctx, id)
	}
	return store.SermonCategory{}, sql.ErrNoRows
}

func (f *fakeStore) GetSermonCategoryByName(ctx context.Context, name string) (store.SermonCategory, error) {
	if f.getSermonCategoryByNameFn != nil {
		return f.getSermonCategoryByNameFn(ctx, name)
	}
	return store.SermonCategory{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateSermonCategory(ctx context.Context, id, name, description string) error {
	if f.updateSermonCategoryFn != nil {
		return f.updateSermonCategoryFn(ctx, id, name, description)
	}
	return nil
}

func (f *fakeStore) DeleteSermonCategory(ctx context.Context, id string) error {
	if f.deleteSermonCategoryFn != nil {
		return f.deleteSermonCategoryFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) CreateSermon(ctx context.Context, s store.Sermon) error {
	if f.createSermonFn != nil {
		return f.createSermonFn(ctx, s)
	}
	return nil
}

func (f *fakeStore) ListSermons(ctx context.Context, categoryID string) ([]store.Sermon, error) {
	if f.listSermonsFn != nil {
		return f.listSermonsFn(ctx, categoryID)
	}
	return nil, nil
}

func (f *fakeStore) GetSermon(ctx context.Context, id string) (store.Sermon, error) {
	if f.getSermonFn != nil {
		return f.getSermonFn(ctx, id)
	}
	return store.Sermon{}, sql.ErrNoRows
}

func (f *fakeStore) GetSermonByVideoID(ctx context.Context, videoID string) (store.Sermon, error) {
	if f.getSermonByVideoIDFn != nil {
		return f.getSermonByVideoIDFn(ctx, videoID)
	}
	return store.Sermon{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateSermon(ctx context.Context, s store.Sermon) error {
	if f.updateSermonFn != nil {
		return f.updateSermonFn(ctx, s)
	}
	return nil
}

func (f *fakeStore) DeleteSermon(ctx context.Context, id string) error {
	if f.deleteSermonFn != nil {
		return f.deleteSermonFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) MarkSermonViewed(ctx context.Context, sermonID, memberID string) (bool, error) {
	if f.markSermonViewedFn != nil {
		return f.markSermonViewedFn(ctx, sermonID, memberID)
	}
	return true, nil
}

func (f *fakeStore) ToggleSermonLike(ctx context.Context, sermonID, memberID string) (bool, error) {
	if f.toggleSermonLikeFn != nil {
		return f.toggleSermonLikeFn(ctx, sermonID, memberID)
	}
	return true, nil
}

func (f *fakeStore) ListSermonViews(ctx context.Context, sermonID string) ([]store.SermonView, error) {
	if f.listSermonViewsFn != nil {
		return f.listSermonViewsFn(ctx, sermonID)
	}
	return nil, nil
}

func (f *fakeStore) ListSermonNonViewers(ctx context.Context, sermonID string) ([]store.Member, error) {
	if f.listSermonNonViewersFn != nil {
		return f.listSermonNonViewersFn(ctx, sermonID)
	}
	return nil, nil
}

func (f *fakeStore) CreateBlog(ctx context.Context, b store.Blog) error {
	if f.createBlogFn != nil {
		return f.createBlogFn(ctx, b)
	}
	return nil
}

func (f *fakeStore) ListBlogs(ctx context.Context, publishedOnly bool, viewerID string) ([]store.Blog, error) {
	if f.listBlogsFn != nil {
		return f.listBlogsFn(ctx, publishedOnly, viewerID)
	}
	return nil, nil
}

func (f *fakeStore) GetBlog(ctx context.Context, id string) (store.Blog, error) {
	if f.getBlogFn != nil {
		return f.getBlogFn(ctx, id)
	}
	return store.Blog{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateBlog(ctx context.Context, b store.Blog) error {
	if f.updateBlogFn != nil {
		return f.updateBlogFn(ctx, b)
	}
	return nil
}

func (f *fakeStore) DeleteBlog(ctx context.Context, id string) error {
	if f.deleteBlogFn != nil {
		return f.deleteBlogFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) MarkBlogViewed(ctx context.Context, blogID, memberID string) (bool, error) {
	if f.markBlogViewedFn != nil {
		return f.markBlogViewedFn(ctx, blogID, memberID)
	}
	return true, nil
}

func (f *fakeStore) ListBlogReaders(ctx context.Context, blogID string) ([]store.BlogReader, error) {
	if f.listBlogReadersFn != nil {
		return f.listBlogReadersFn(ctx, blogID)
	}
	return nil, nil
}

func (f *fakeStore) CreatePrayer(ctx context.Context, p store.PrayerRequest) error {
	if f.createPrayerFn != nil {
		return f.createPrayerFn(ctx, p)
	}
	return nil
}

func (f *fakeStore) ListPrayers(ctx context.Context) ([]store.PrayerRequest, error) {
	if f.listPrayersFn != nil {
		return f.listPrayersFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) GetPrayer(ctx context.Context, id string) (store.PrayerRequest, error) {
	if f.getPrayerFn != nil {
		return f.getPrayerFn(ctx, id)
	}
	return store.PrayerRequest{}, sql.ErrNoRows
}

func (f *fakeStore) UpdatePrayer(ctx context.Context, id, title, content string) error {
	if f.updatePrayerFn != nil {
		return f.updatePrayerFn(ctx, id, title, content)
	}
	return nil
}

func (f *fakeStore) DeletePrayer(ctx context.Context, id string) error {
	if f.deletePrayerFn != nil {
		return f.deletePrayerFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) RespondPrayer(ctx context.Context, id, response string) error {
	if f.respondPrayerFn != nil {
		return f.respondPrayerFn(ctx, id, response)
	}
	return nil
}

func (f *fakeStore) InsertNotification(ctx context.Context, n store.Notification) error {
	if f.insertNotificationFn != nil {
		return f.insertNotificationFn(ctx, n)
	}
	return nil
}

func (f *fakeStore) InsertNotifications(ctx context.Context, items []store.Notification) error {
	if f.insertNotificationsFn != nil {
		return f.insertNotificationsFn(ctx, items)
	}
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, memberID string, unreadOnly bool) ([]store.Notification, error) {
	if f.listNotificationsFn != nil {
		return f.listNotificationsFn(ctx, memberID, unreadOnly)
	}
	return nil, nil
}

func (f *fakeStore) GetNotification(ctx context.Context, id string) (store.Notification, error) {
	if f.getNotificationFn != nil {
		return f.getNotificationFn(ctx, id)
	}
	return store.Notification{}, sql.ErrNoRows
}

func (f *fakeStore) UnreadNotificationCount(ctx context.Context, memberID string) (int, error) {
	if f.unreadNotificationCountFn != nil {
		return f.unreadNotificationCountFn(ctx, memberID)
	}
	return 0, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, id string) error {
	if f.markNotificationReadFn != nil {
		return f.markNotificationReadFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, memberID string) (int, error) {
	if f.markAllNotificationsReadFn != nil {
		return f.markAllNotificationsReadFn(ctx, memberID)
	}
	return 0, nil
}

func (f *fakeStore) DeleteNotification(ctx context.Context, id string) error {
	if f.deleteNotificationFn != nil {
		return f.deleteNotificationFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) InsertAuditLog(ctx context.Context, entry store.AuditLog) error {
	if f.insertAuditLogFn != nil {
		return f.insertAuditLogFn(ctx, entry)
	}
	return nil
}

func (f *fakeStore) DashboardStats(ctx context.Context) (store.DashboardStats, error) {
	if f.dashboardStatsFn != nil {
		return f.dashboardStatsFn(ctx)
	}
	return store.DashboardStats{}, nil
}

func (f *fakeStore) RecentActivity(ctx context.Context, limit int) ([]store.ActivityEntry, error) {
	if f.recentActivityFn != nil {
		return f.recentActivityFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeStore) InsertMediaAsset(ctx context.Context, asset store.MediaAsset) error {
	if f.insertMediaAssetFn != nil {
		return f.insertMediaAssetFn(ctx, asset)
	}
	return nil
}

// ── test helpers ──

func newTestService(fs *fakeStore) *Service {
	return New(fs, config.Config{
		JWTSecret:  testSecret,
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
}

func issueTestToken(t *testing.T, role, sub, branchID string) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), auth.Claims{
		Sub:     sub,
		Name:    "Test Account",
		Role:    role,
		Purpose: auth.PurposeAccess,
		Branch:  branchID,
		JTI:     "jti-" + sub,
		Exp:     time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func wantDomainError(t *testing.T, err error, status int) *DomainError {
	t.Helper()
	var derr *DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("expected domain error, got %v", err)
	}
	if derr.Status != status {
		t.Fatalf("expected status %d, got %d (%s)", status, derr.Status, derr.Message)
	}
	return derr
}

func approvedMember(id, branchID string) store.Member {
	return store.Member{
		ID:       id,
		FullName: "Grace Mensah",
		Email:    "grace@example.com",
		Status:   store.MemberApproved,
		BranchID: branchID,
	}
}

// ── gate tests ──

func TestMemberFromTokenApproved(t *testing.T) {
	fs := &fakeStore{
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return approvedMember(id, "branch-1"), nil
		},
	}
	svc := newTestService(fs)

	actor, err := svc.MemberFromToken(context.Background(), issueTestToken(t, auth.RoleMember, "member-1", "branch-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor.Kind != "member" || actor.ID != "member-1" || actor.BranchID != "branch-1" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestMemberFromTokenStatusGate(t *testing.T) {
	tests := []struct {
		status      string
		wantMessage string
	}{
		{store.MemberPending, "Account pending approval"},
		{store.MemberRevoked, "Account access revoked"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			fs := &fakeStore{
				getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
					m := approvedMember(id, "branch-1")
					m.Status = tt.status
					return m, nil
				},
			}
			svc := newTestService(fs)

			_, err := svc.MemberFromToken(context.Background(), issueTestToken(t, auth.RoleMember, "member-1", "branch-1"))
			derr := wantDomainError(t, err, 403)
			if derr.Message != tt.wantMessage {
				t.Fatalf("expected %q, got %q", tt.wantMessage, derr.Message)
			}
		})
	}
}

func TestMemberFromTokenRejectsAdminToken(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.MemberFromToken(context.Background(), issueTestToken(t, auth.RoleAdmin, "admin-1", ""))
	derr := wantDomainError(t, err, 401)
	if derr.Message != "Member account required" {
		t.Fatalf("unexpected message: %q", derr.Message)
	}
}

func TestAdminFromTokenRejectsMemberToken(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.AdminFromToken(context.Background(), issueTestToken(t, auth.RoleMember, "member-1", "branch-1"))
	wantDomainError(t, err, 403)
}

func TestAdminFromTokenInactive(t *testing.T) {
	fs := &fakeStore{
		getAdminByIDFn: func(_ context.Context, id string) (store.Admin, error) {
			return store.Admin{ID: id, Email: "admin@example.com", IsActive: false}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.AdminFromToken(context.Background(), issueTestToken(t, auth.RoleAdmin, "admin-1", ""))
	wantDomainError(t, err, 401)
}

func TestMemberFromTokenUnknownSubject(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.MemberFromToken(context.Background(), issueTestToken(t, auth.RoleMember, "ghost", "branch-1"))
	wantDomainError(t, err, 401)
}

func TestRevokedAccessTokenRejected(t *testing.T) {
	fs := &fakeStore{
		isAccessTokenRevokedFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.MemberFromToken(context.Background(), issueTestToken(t, auth.RoleMember, "member-1", "branch-1"))
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestActorFromTokenRoutesByRole(t *testing.T) {
	fs := &fakeStore{
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return approvedMember(id, "branch-1"), nil
		},
		getAdminByIDFn: func(_ context.Context, id string) (store.Admin, error) {
			return store.Admin{ID: id, DisplayName: "Pastor John", IsActive: true}, nil
		},
	}
	svc := newTestService(fs)

	member, err := svc.ActorFromToken(context.Background(), issueTestToken(t, auth.RoleMember, "member-1", "branch-1"))
	if err != nil || member.Kind != "member" {
		t.Fatalf("member resolution failed: %+v, %v", member, err)
	}

	admin, err := svc.ActorFromToken(context.Background(), issueTestToken(t, auth.RoleAdmin, "admin-1", ""))
	if err != nil || admin.Kind != "admin" {
		t.Fatalf("admin resolution failed: %+v, %v", admin, err)
	}
}

// ── auth flow tests ──

func TestLoginWrongPassword(t *testing.T) {
	fs := &fakeStore{
		getMemberByEmailFn: func(_ context.Context, email string) (store.Member, error) {
			m := approvedMember("member-1", "branch-1")
			m.PasswordHash = mustHash(t, "correct-pass1")
			return m, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.Login(context.Background(), "grace@example.com", "wrong-pass1")
	derr := wantDomainError(t, err, 401)
	if derr.Message != "Invalid email or password" {
		t.Fatalf("unexpected message: %q", derr.Message)
	}
}

func TestLoginPendingMember(t *testing.T) {
	fs := &fakeStore{
		getMemberByEmailFn: func(_ context.Context, email string) (store.Member, error) {
			m := approvedMember("member-1", "branch-1")
			m.Status = store.MemberPending
			m.PasswordHash = mustHash(t, "secret-pass1")
			return m, nil
		},
	}
	svc := newTestService(fs)

	// Pending accounts fail with 401, not 403, so the response does not leak
	// whether the password was right.
	_, err := svc.Login(context.Background(), "grace@example.com", "secret-pass1")
	derr := wantDomainError(t, err, 401)
	if derr.Message != "Account pending approval" {
		t.Fatalf("unexpected message: %q", derr.Message)
	}
}

func TestLoginIssuesSession(t *testing.T) {
	var savedHash string
	fs := &fakeStore{
		getMemberByEmailFn: func(_ context.Context, email string) (store.Member, error) {
			m := approvedMember("member-1", "branch-1")
			m.PasswordHash = mustHash(t, "secret-pass1")
			return m, nil
		},
		saveRefreshSessionFn: func(_ context.Context, tokenHash, subjectID, kind string, _ time.Time) error {
			savedHash = tokenHash
			if subjectID != "member-1" || kind != "member" {
				t.Fatalf("unexpected session subject %s/%s", subjectID, kind)
			}
			return nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.Login(context.Background(), "grace@example.com", "secret-pass1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if session.BranchID != "branch-1" {
		t.Fatalf("expected branch on session, got %q", session.BranchID)
	}
	if savedHash != auth.HashToken(session.RefreshToken) {
		t.Fatal("refresh session saved with wrong hash")
	}

	claims, err := auth.ParseToken([]byte(testSecret), session.Token)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Role != auth.RoleMember || claims.Purpose != auth.PurposeAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshRotation(t *testing.T) {
	sessions := map[string][2]string{}
	fs := &fakeStore{
		getMemberByIDFn: func(_ context.Context, id string) (store.Member, error) {
			return approvedMember(id, "branch-1"), nil
		},
		getMemberByEmailFn: func(_ context.Context, email string) (store.Member, error) {
			m := approvedMember("member-1", "branch-1")
			m.PasswordHash = mustHash(t, "secret-pass1")
			return m, nil
		},
		saveRefreshSessionFn: func(_ context.Context, tokenHash, subjectID, kind string, _ time.Time) error {
			sessions[tokenHash] = [2]string{subjectID, kind}
			return nil
		},
		lookupRefreshSessionFn: func(_ context.Context, tokenHash string) (string, string, error) {
			entry, ok := sessions[tokenHash]
			if !ok {
				return "", "", sql.ErrNoRows
			}
			return entry[0], entry[1], nil
		},
		revokeRefreshSessionFn: func(_ context.Context, tokenHash string) error {
			delete(sessions, tokenHash)
			return nil
		},
	}
	svc := newTestService(fs)

	first, err := svc.Login(context.Background(), "grace@example.com", "secret-pass1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if second.SubjectID != "member-1" || second.Kind != "member" {
		t.Fatalf("unexpected session: %+v", second)
	}

	// The old refresh token was revoked on rotation; replaying it fails.
	if _, err := svc.Refresh(context.Background(), first.RefreshToken); err == nil {
		t.Fatal("expected replayed refresh token to be rejected")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Refresh(context.Background(), issueTestToken(t, auth.RoleMember, "member-1", "branch-1"))
	wantDomainError(t, err, 401)
}

func TestLogoutRevokesTokens(t *testing.T) {
	var revokedSession, revokedJTI string
	fs := &fakeStore{
		revokeRefreshSessionFn: func(_ context.Context, tokenHash string) error {
			revokedSession = tokenHash
			return nil
		},
		revokeAccessTokenFn: func(_ context.Context, jti string, _ time.Time) error {
			revokedJTI = jti
			return nil
		},
	}
	svc := newTestService(fs)

	actor := Actor{Kind: "member", ID: "member-1", JTI: "jti-member-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := svc.Logout(context.Background(), actor, "some-refresh-token"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if revokedSession != auth.HashToken("some-refresh-token") {
		t.Fatal("refresh session not revoked")
	}
	if revokedJTI != "jti-member-1" {
		t.Fatal("access token JTI not blacklisted")
	}
}

// ── signup tests ──

func TestSignUpValidation(t *testing.T) {
	fs := &fakeStore{
		getBranchFn: func(_ context.Context, id string) (store.Branch, error) {
			if id == "branch-1" {
				return store.Branch{ID: id, Name: "Headquarters"}, nil
			}
			return store.Branch{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	tests := []struct {
		name     string
		fullName string
		email    string
		password string
		branchID string
	}{
		{"missing name", "", "a@example.com", "secret-pass1", "branch-1"},
		{"bad email", "Grace", "not-an-email", "secret-pass1", "branch-1"},
		{"short password", "Grace", "a@example.com", "ab1", "branch-1"},
		{"password without digit", "Grace", "a@example.com", "onlyletters", "branch-1"},
		{"password without letter", "Grace", "a@example.com", "12345678", "branch-1"},
		{"missing branch", "Grace", "a@example.com", "secret-pass1", ""},
		{"unknown branch", "Grace", "a@example.com", "secret-pass1", "branch-404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tt.fullName, tt.email, tt.password, tt.branchID)
			wantDomainError(t, err, 422)
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	fs := &fakeStore{
		getBranchFn: func(_ context.Context, id string) (store.Branch, error) {
			return store.Branch{ID: id}, nil
		},
		getMemberByEmailFn: func(_ context.Context, email string) (store.Member, error) {
			return approvedMember("member-1", "branch-1"), nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SignUp(context.Background(), "Grace", "grace@example.com", "secret-pass1", "branch-1")
	wantDomainError(t, err, 409)
}

func TestSignUpCreatesPendingMember(t *testing.T) {
	var created store.Member
	fs := &fakeStore{
		getBranchFn: func(_ context.Context, id string) (store.Branch, error) {
			return store.Branch{ID: id}, nil
		},
		createMemberFn: func(_ context.Context, m store.Member) error {
			created = m
			return nil
		},
	}
	svc := newTestService(fs)

	out, err := svc.SignUp(context.Background(), "Grace Mensah", "Grace@Example.com", "secret-pass1", "branch-1")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if created.Status != store.MemberPending {
		t.Fatalf("expected pending member, got %q", created.Status)
	}
	if created.Email != "grace@example.com" {
		t.Fatalf("expected lowercased email, got %q", created.Email)
	}
	if out["status"] != store.MemberPending {
		t.Fatalf("unexpected response: %+v", out)
	}
}

// ── bootstrap ──

func TestBootstrapSeedsBranchAndAdmin(t *testing.T) {
	var createdBranch store.Branch
	var createdAdmin store.Admin
	fs := &fakeStore{
		adminCountFn: func(context.Context) (int, error) { return 0, nil },
		createBranchFn: func(_ context.Context, b store.Branch) error {
			createdBranch = b
			return nil
		},
		createAdminFn: func(_ context.Context, a store.Admin) error {
			createdAdmin = a
			return nil
		},
	}
	svc := New(fs, config.Config{
		JWTSecret:     testSecret,
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		AdminEmail:    "Admin@Example.com",
		AdminPassword: "bootstrap-pass1",
	})

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if createdBranch.Name != "Headquarters" {
		t.Fatalf("expected default branch, got %+v", createdBranch)
	}
	if createdAdmin.Email != "admin@example.com" || !createdAdmin.IsActive {
		t.Fatalf("unexpected admin: %+v", createdAdmin)
	}
	if bcrypt.CompareHashAndPassword([]byte(createdAdmin.PasswordHash), []byte("bootstrap-pass1")) != nil {
		t.Fatal("admin password hash does not verify")
	}
}

func TestBootstrapSkipsExistingAdmin(t *testing.T) {
	fs := &fakeStore{
		getBranchByNameFn: func(_ context.Context, name string) (store.Branch, error) {
			return store.Branch{ID: "branch-1", Name: name}, nil
		},
		adminCountFn: func(context.Context) (int, error) { return 1, nil },
		createAdminFn: func(context.Context, store.Admin) error {
			t.Fatal("admin should not be recreated")
			return nil
		},
	}
	svc := New(fs, config.Config{
		JWTSecret:     testSecret,
		AdminEmail:    "admin@example.com",
		AdminPassword: "bootstrap-pass1",
	})

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
}
