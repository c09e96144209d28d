package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"koinonia/api/internal/store"
	"koinonia/api/internal/workflow"
)

// EventInput is the body for creating or updating an event.
type EventInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	EventDate   string  `json:"eventDate"`
	Location    string  `json:"location"`
	EventImage  *string `json:"eventImage"`
}

func (in EventInput) validate() (time.Time, error) {
	if strings.TrimSpace(in.Title) == "" {
		return time.Time{}, validationError("title is required", nil)
	}
	if strings.TrimSpace(in.EventDate) == "" {
		return time.Time{}, validationError("eventDate is required", nil)
	}
	eventDate, err := time.Parse(time.RFC3339, in.EventDate)
	if err != nil {
		return time.Time{}, validationError("eventDate must be RFC 3339", nil)
	}
	return eventDate, nil
}

// CreateEvent creates an event in the creator's own branch. Events always
// start outside the cross-branch workflow.
func (s *Service) CreateEvent(ctx context.Context, actor Actor, in EventInput) (map[string]any, error) {
	eventDate, err := in.validate()
	if err != nil {
		return nil, err
	}

	event := store.Event{
		ID:                uuid.NewString(),
		Title:             strings.TrimSpace(in.Title),
		Description:       in.Description,
		EventDate:         eventDate,
		Location:          strings.TrimSpace(in.Location),
		EventImage:        in.EventImage,
		IsCrossBranch:     false,
		CrossBranchStatus: string(workflow.StatusNone),
		BranchID:          actor.BranchID,
		CreatedBy:         actor.ID,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	created, err := s.store.GetEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load created event: %w", err)
	}
	return map[string]any{"event": eventPayload(created)}, nil
}

// ListEvents returns the events a member can see: their own branch plus
// approved cross-branch events from everywhere.
func (s *Service) ListEvents(ctx context.Context, actor Actor) (map[string]any, error) {
	events, err := s.store.ListEventsVisibleTo(ctx, actor.BranchID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return map[string]any{"events": eventPayloads(events)}, nil
}

// GetEvent returns a single event, enforcing the same visibility rule as the
// listing: outside its branch an event is only visible once approved.
func (s *Service) GetEvent(ctx context.Context, actor Actor, eventID string) (map[string]any, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !s.eventVisibleTo(actor, event) {
		return nil, forbiddenError("Event is not visible to your branch")
	}
	return map[string]any{"event": eventPayload(event)}, nil
}

func (s *Service) eventVisibleTo(actor Actor, event store.Event) bool {
	if actor.Kind == "admin" {
		return true
	}
	if event.BranchID == actor.BranchID {
		return true
	}
	return workflow.Visible(workflow.Normalize(event.CrossBranchStatus))
}

// UpdateEvent edits an event. Only the creator may edit, and only basic
// fields change; the workflow status is untouched.
func (s *Service) UpdateEvent(ctx context.Context, actor Actor, eventID string, in EventInput) (map[string]any, error) {
	eventDate, err := in.validate()
	if err != nil {
		return nil, err
	}

	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != actor.ID {
		return nil, forbiddenError("Only the event creator can edit it")
	}

	event.Title = strings.TrimSpace(in.Title)
	event.Description = in.Description
	event.EventDate = eventDate
	event.Location = strings.TrimSpace(in.Location)
	if in.EventImage != nil {
		event.EventImage = in.EventImage
	}
	if err := s.store.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	updated, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load updated event: %w", err)
	}
	return map[string]any{"event": eventPayload(updated)}, nil
}

// DeleteEvent removes an event. Only the creator may delete it.
func (s *Service) DeleteEvent(ctx context.Context, actor Actor, eventID string) error {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.CreatedBy != actor.ID {
		return forbiddenError("Only the event creator can delete it")
	}
	return s.store.DeleteEvent(ctx, eventID)
}

// RequestCrossBranch submits an event for cross-branch review. Only the
// creator may request, and only from the initial state.
func (s *Service) RequestCrossBranch(ctx context.Context, actor Actor, eventID string) (map[string]any, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != actor.ID {
		return nil, forbiddenError("Only the event creator can request cross-branch visibility")
	}

	current := workflow.Normalize(event.CrossBranchStatus)
	transition, err := workflow.Request(current)
	if err != nil {
		return nil, validationError(fmt.Sprintf("cannot request cross-branch visibility from status %q", current), nil)
	}

	applied, err := s.store.TransitionEventCrossBranch(ctx, eventID,
		string(transition.From), string(transition.To), transition.CrossBranch)
	if err != nil {
		return nil, fmt.Errorf("transition event: %w", err)
	}
	if !applied {
		// Someone else changed the status between our read and the
		// guarded update.
		return nil, validationError("event status changed, reload and retry", nil)
	}

	s.notifyRequestSubmitted(ctx, event)

	updated, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load updated event: %w", err)
	}
	return map[string]any{"event": eventPayload(updated)}, nil
}

// ApproveCrossBranch grants an event cross-branch visibility. Legal only
// while the request is pending; approved and rejected are terminal.
func (s *Service) ApproveCrossBranch(ctx context.Context, actor Actor, eventID string) (map[string]any, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	current := workflow.Normalize(event.CrossBranchStatus)
	transition, err := workflow.Approve(current)
	if err != nil {
		return nil, validationError(fmt.Sprintf("cannot approve from status %q", current), nil)
	}

	applied, err := s.store.TransitionEventCrossBranch(ctx, eventID,
		string(transition.From), string(transition.To), transition.CrossBranch)
	if err != nil {
		return nil, fmt.Errorf("transition event: %w", err)
	}
	if !applied {
		return nil, validationError("event status changed, reload and retry", nil)
	}

	s.audit(ctx, actor, "approve_cross_branch", "event", eventID, event.Title)
	s.notifyMember(ctx, event.CreatedBy, store.NotifyEventApproved,
		fmt.Sprintf("Your event %q is now visible to all branches", event.Title))

	updated, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load updated event: %w", err)
	}
	return map[string]any{"event": eventPayload(updated)}, nil
}

// RejectCrossBranch denies cross-branch visibility and clears the flag.
func (s *Service) RejectCrossBranch(ctx context.Context, actor Actor, eventID string) (map[string]any, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	current := workflow.Normalize(event.CrossBranchStatus)
	transition, err := workflow.Reject(current)
	if err != nil {
		return nil, validationError(fmt.Sprintf("cannot reject from status %q", current), nil)
	}

	applied, err := s.store.TransitionEventCrossBranch(ctx, eventID,
		string(transition.From), string(transition.To), transition.CrossBranch)
	if err != nil {
		return nil, fmt.Errorf("transition event: %w", err)
	}
	if !applied {
		return nil, validationError("event status changed, reload and retry", nil)
	}

	s.audit(ctx, actor, "reject_cross_branch", "event", eventID, event.Title)

	updated, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load updated event: %w", err)
	}
	return map[string]any{"event": eventPayload(updated)}, nil
}

// ListAllEvents is the admin listing across branches, optionally filtered.
func (s *Service) ListAllEvents(ctx context.Context, branchID string) (map[string]any, error) {
	events, err := s.store.ListAllEvents(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list all events: %w", err)
	}
	return map[string]any{"events": eventPayloads(events)}, nil
}

// ListPendingCrossBranch lists events awaiting a cross-branch decision.
func (s *Service) ListPendingCrossBranch(ctx context.Context) (map[string]any, error) {
	events, err := s.store.ListPendingCrossBranchEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending cross-branch events: %w", err)
	}
	return map[string]any{"events": eventPayloads(events)}, nil
}

// notifyRequestSubmitted records the submission in the creator's feed.
// Admins pick requests up from the pending queue, not from notifications.
func (s *Service) notifyRequestSubmitted(ctx context.Context, event store.Event) {
	s.notifyMember(ctx, event.CreatedBy, store.NotifyCrossBranchRequest,
		fmt.Sprintf("Cross-branch visibility requested for %q", event.Title))
}

func (s *Service) notifyMember(ctx context.Context, memberID, notifyType, message string) {
	err := s.store.InsertNotification(ctx, store.Notification{
		ID:       uuid.NewString(),
		MemberID: memberID,
		Message:  message,
		Type:     notifyType,
	})
	if err != nil {
		log.Printf("insert notification: %v", err)
	}
}

func (s *Service) audit(ctx context.Context, actor Actor, action, resource, resourceID, details string) {
	if actor.Kind != "admin" {
		return
	}
	err := s.store.InsertAuditLog(ctx, store.AuditLog{
		ID:         uuid.NewString(),
		AdminID:    actor.ID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
	})
	if err != nil {
		log.Printf("insert audit log: %v", err)
	}
}

func eventPayload(e store.Event) map[string]any {
	return map[string]any{
		"id":                e.ID,
		"title":             e.Title,
		"description":       e.Description,
		"eventDate":         e.EventDate.Format(time.RFC3339),
		"location":          e.Location,
		"eventImage":        e.EventImage,
		"isCrossBranch":     e.IsCrossBranch,
		"crossBranchStatus": e.CrossBranchStatus,
		"branchId":          e.BranchID,
		"branchName":        e.BranchName,
		"createdBy":         e.CreatedBy,
		"creatorName":       e.CreatorName,
		"createdAt":         e.CreatedAt.Format(time.RFC3339),
		"updatedAt":         e.UpdatedAt.Format(time.RFC3339),
	}
}

func eventPayloads(events []store.Event) []map[string]any {
	payloads := make([]map[string]any, 0, len(events))
	for _, e := range events {
		payloads = append(payloads, eventPayload(e))
	}
	return payloads
}
