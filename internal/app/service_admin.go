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
	"golang.org/x/crypto/bcrypt"

	"koinonia/api/internal/store"
)

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ── Admin account ──

func (s *Service) AdminProfile(ctx context.Context, actor Actor) (map[string]any, error) {
	admin, err := s.store.GetAdminByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"id":          admin.ID,
		"email":       admin.Email,
		"displayName": admin.DisplayName,
		"createdAt":   admin.CreatedAt.Format(time.RFC3339),
	}
	if admin.LastLogin != nil {
		payload["lastLogin"] = admin.LastLogin.Format(time.RFC3339)
	}
	return map[string]any{"admin": payload}, nil
}

// ChangeAdminPassword verifies the current password before setting a new one.
func (s *Service) ChangeAdminPassword(ctx context.Context, actor Actor, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	admin, err := s.store.GetAdminByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !passwordMatches(admin.PasswordHash, currentPassword) {
		return authError("Current password is incorrect")
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdateAdminPassword(ctx, actor.ID, hash)
}

// ── Branches ──

func (s *Service) ListBranches(ctx context.Context) (map[string]any, error) {
	branches, err := s.store.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	payloads := make([]map[string]any, 0, len(branches))
	for _, b := range branches {
		payloads = append(payloads, map[string]any{
			"id":        b.ID,
			"name":      b.Name,
			"createdAt": b.CreatedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"branches": payloads}, nil
}

func (s *Service) CreateBranch(ctx context.Context, actor Actor, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required", nil)
	}

	if _, err := s.store.GetBranchByName(ctx, name); err == nil {
		return nil, conflictError("Branch name already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check branch name: %w", err)
	}

	branch := store.Branch{ID: uuid.NewString(), Name: name}
	if err := s.store.CreateBranch(ctx, branch); err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}

	s.audit(ctx, actor, "create", "branch", branch.ID, name)
	return map[string]any{"branch": map[string]any{"id": branch.ID, "name": branch.Name}}, nil
}

// ── Member administration ──

func (s *Service) ListMembers(ctx context.Context, filter store.MemberFilter) (map[string]any, error) {
	members, total, err := s.store.ListMembers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	payloads := make([]map[string]any, 0, len(members))
	for _, m := range members {
		payloads = append(payloads, memberPayload(m))
	}
	return map[string]any{"members": payloads, "total": total}, nil
}

func (s *Service) ListPendingMembers(ctx context.Context) (map[string]any, error) {
	members, err := s.store.ListPendingMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending members: %w", err)
	}
	payloads := make([]map[string]any, 0, len(members))
	for _, m := range members {
		payloads = append(payloads, memberPayload(m))
	}
	return map[string]any{"members": payloads}, nil
}

func (s *Service) GetMember(ctx context.Context, memberID string) (map[string]any, error) {
	member, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"member": memberPayload(member)}, nil
}

// GetMemberActivity is the admin engagement summary for one member.
func (s *Service) GetMemberActivity(ctx context.Context, memberID string) (map[string]any, error) {
	member, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	activity, err := s.store.MemberActivity(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("member activity: %w", err)
	}
	return map[string]any{
		"member": memberPayload(member),
		"activity": map[string]any{
			"sermonsViewed": activity.SermonsViewed,
			"sermonsLiked":  activity.SermonsLiked,
			"blogsRead":     activity.BlogsRead,
			"eventsCreated": activity.EventsCreated,
			"prayers":       activity.Prayers,
		},
	}, nil
}

// ApproveMember moves a member to approved. Approving an already-approved
// member succeeds without side effects.
func (s *Service) ApproveMember(ctx context.Context, actor Actor, memberID string) (map[string]any, error) {
	member, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.Status == store.MemberApproved {
		return map[string]any{"member": memberPayload(member)}, nil
	}

	if _, err := s.store.UpdateMemberStatus(ctx, memberID, store.MemberApproved); err != nil {
		return nil, fmt.Errorf("approve member: %w", err)
	}

	s.audit(ctx, actor, "approve", "member", memberID, member.Email)
	s.notifyMember(ctx, memberID, store.NotifyUserApproved, "Your account has been approved. Welcome!")
	s.sendApprovalEmail(member)

	updated, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"member": memberPayload(updated)}, nil
}

// RevokeMember removes a member's access. Idempotent.
func (s *Service) RevokeMember(ctx context.Context, actor Actor, memberID string) (map[string]any, error) {
	member, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if member.Status != store.MemberRevoked {
		if _, err := s.store.UpdateMemberStatus(ctx, memberID, store.MemberRevoked); err != nil {
			return nil, fmt.Errorf("revoke member: %w", err)
		}
		s.audit(ctx, actor, "revoke", "member", memberID, member.Email)
	}

	updated, err := s.store.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"member": memberPayload(updated)}, nil
}

// BulkUpdateMembers approves or revokes a batch of members in one call.
func (s *Service) BulkUpdateMembers(ctx context.Context, actor Actor, memberIDs []string, status string) (map[string]any, error) {
	if len(memberIDs) == 0 {
		return nil, validationError("memberIds is required", nil)
	}
	if status != store.MemberApproved && status != store.MemberRevoked {
		return nil, validationError("status must be approved or revoked", nil)
	}

	updated, err := s.store.UpdateMembersStatus(ctx, memberIDs, status)
	if err != nil {
		return nil, fmt.Errorf("bulk update members: %w", err)
	}

	s.audit(ctx, actor, "bulk_"+status, "member", "", fmt.Sprintf("%d members", updated))
	if status == store.MemberApproved {
		for _, id := range memberIDs {
			s.notifyMember(ctx, id, store.NotifyUserApproved, "Your account has been approved. Welcome!")
		}
	}
	return map[string]any{"updated": updated}, nil
}

func (s *Service) sendApprovalEmail(member store.Member) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	go func() {
		loginURL := s.appBaseURL + "/login"
		if err := s.mailer.SendAccountApprovedEmail(member.Email, member.FullName, member.BranchName, loginURL); err != nil {
			log.Printf("send approval email to %s: %v", member.Email, err)
		}
	}()
}

// ── Dashboard ──

func (s *Service) Dashboard(ctx context.Context) (map[string]any, error) {
	stats, err := s.store.DashboardStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	recent, err := s.store.RecentActivity(ctx, 15)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}

	activity := make([]map[string]any, 0, len(recent))
	for _, entry := range recent {
		activity = append(activity, map[string]any{
			"kind":      entry.Kind,
			"title":     entry.Title,
			"actor":     entry.Actor,
			"createdAt": entry.CreatedAt.Format(time.RFC3339),
		})
	}

	return map[string]any{
		"stats": map[string]any{
			"totalMembers":       stats.TotalMembers,
			"pendingMembers":     stats.PendingMembers,
			"approvedMembers":    stats.ApprovedMembers,
			"revokedMembers":     stats.RevokedMembers,
			"totalBranches":      stats.TotalBranches,
			"totalSermons":       stats.TotalSermons,
			"totalBlogs":         stats.TotalBlogs,
			"totalEvents":        stats.TotalEvents,
			"pendingCrossBranch": stats.PendingCrossBranch,
			"openPrayers":        stats.OpenPrayers,
		},
		"recentActivity": activity,
	}, nil
}

func memberPayload(m store.Member) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"fullName":     m.FullName,
		"email":        m.Email,
		"status":       m.Status,
		"profileImage": m.ProfileImage,
		"branchId":     m.BranchID,
		"branchName":   m.BranchName,
		"createdAt":    m.CreatedAt.Format(time.RFC3339),
	}
}
