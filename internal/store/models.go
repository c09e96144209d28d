package store

import "time"

// Member statuses. New signups start pending and only approved members may
// use member endpoints.
const (
	MemberPending  = "pending"
	MemberApproved = "approved"
	MemberRevoked  = "revoked"
)

// Blog statuses.
const (
	BlogDraft     = "draft"
	BlogPublished = "published"
)

// Media asset kinds.
const (
	MediaProfile = "profile"
	MediaEvent   = "event"
	MediaBlog    = "blog"
)

// Notification types.
const (
	NotifySermonUploaded     = "sermon_uploaded"
	NotifyBlogPublished      = "blog_published"
	NotifyEventApproved      = "event_approved"
	NotifyUserApproved       = "user_approved"
	NotifyPrayerResponse     = "prayer_response"
	NotifyCrossBranchRequest = "cross_branch_request"
)

type Member struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Status       string
	ProfileImage *string
	BranchID     string
	BranchName   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Branch struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Event struct {
	ID                string
	Title             string
	Description       string
	EventDate         time.Time
	Location          string
	EventImage        *string
	IsCrossBranch     bool
	CrossBranchStatus string
	BranchID          string
	BranchName        string
	CreatedBy         string
	CreatorName       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type SermonCategory struct {
	ID          string
	Name        string
	Description string
	SermonCount int
	CreatedAt   time.Time
}

type Sermon struct {
	ID           string
	Title        string
	Description  string
	VideoID      string
	EmbedURL     string
	ThumbnailURL string
	Duration     int
	CategoryID   string
	CategoryName string
	UploadedBy   string
	TotalViews   int
	TotalLikes   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SermonView is one row of the view/like ledger. At most one row exists per
// (sermon, member); the like toggle reuses the row.
type SermonView struct {
	SermonID   string
	MemberID   string
	MemberName string
	ViewedAt   time.Time
	Liked      bool
}

type Blog struct {
	ID            string
	Title         string
	Content       string
	Status        string
	FeaturedImage *string
	CreatedBy     string
	AuthorName    string
	HasViewed     bool
	ViewCount     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type BlogReader struct {
	MemberID   string
	MemberName string
	ViewedAt   time.Time
}

type PrayerRequest struct {
	ID             string
	Title          string
	Content        string
	PastorResponse *string
	MemberID       string
	MemberName     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Notification struct {
	ID        string
	MemberID  string
	Message   string
	Type      string
	IsRead    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID         string
	AdminID    string
	Action     string
	Resource   string
	ResourceID string
	Details    string
	CreatedAt  time.Time
}

type MediaAsset struct {
	ID        string
	URL       string
	MediaType string
	FileName  string
	ObjectKey string
	MemberID  *string
	AdminID   *string
	CreatedAt time.Time
}

// MemberFilter narrows and pages the admin member listing.
type MemberFilter struct {
	Search   string
	Status   string
	BranchID string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// MemberActivity summarizes one member's engagement for the admin detail view.
type MemberActivity struct {
	SermonsViewed int
	SermonsLiked  int
	BlogsRead     int
	EventsCreated int
	Prayers       int
}

// DashboardStats is the admin dashboard counters payload.
type DashboardStats struct {
	TotalMembers       int
	PendingMembers     int
	ApprovedMembers    int
	RevokedMembers     int
	TotalBranches      int
	TotalSermons       int
	TotalBlogs         int
	TotalEvents        int
	PendingCrossBranch int
	OpenPrayers        int
}

// ActivityEntry is one row of the recent-activity feed.
type ActivityEntry struct {
	Kind      string
	Title     string
	Actor     string
	CreatedAt time.Time
}
