package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.temporal.io/api/serviceerror"
	tc "go.temporal.io/sdk/client"

	tmp "github.com/daybook-app/daybook-api/internal/temporal"
)

// TemporalScheduler runs one workflow per alert: the workflow sleeps until
// the fire time and then reports delivery. Cancel maps to workflow
// cancellation; a workflow that already completed or never existed is
// treated as a stale handle and swallowed.
//
// The per-user handle index is process-local: CancelAll after a restart only
// covers alerts scheduled since. The settings sweep cancels per handle from
// persisted state as well, so restarts do not orphan UI state.
type TemporalScheduler struct {
	client tc.Client
	perms  PermissionSource
	logger zerolog.Logger

	mu     sync.Mutex
	byUser map[string]map[string]struct{}
}

func NewTemporalScheduler(client tc.Client, perms PermissionSource, logger zerolog.Logger) *TemporalScheduler {
	return &TemporalScheduler{
		client: client,
		perms:  perms,
		logger: logger.With().Str("component", "temporal_scheduler").Logger(),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (s *TemporalScheduler) Schedule(ctx context.Context, req AlertRequest) (string, error) {
	granted, err := s.perms.PermissionGranted(ctx, req.UserID)
	if err != nil {
		return "", ErrSchedulerUnavailable
	}
	if !granted {
		return "", ErrPermissionDenied
	}
	if !req.FireAt.After(time.Now()) {
		return "", ErrInvalidTime
	}

	handle := uuid.NewString()
	opts := tc.StartWorkflowOptions{
		ID:        tmp.AlertWorkflowIDPrefix + handle,
		TaskQueue: tmp.TaskQueueName,
	}
	params := tmp.AlertParams{
		Handle:   handle,
		UserID:   req.UserID,
		Category: string(req.Category),
		Title:    req.Title,
		Body:     req.Body,
		FireAt:   req.FireAt,
	}
	if _, err := s.client.ExecuteWorkflow(ctx, opts, tmp.AlertWorkflowName, params); err != nil {
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("failed to start alert workflow")
		return "", ErrSchedulerUnavailable
	}

	s.mu.Lock()
	if s.byUser[req.UserID] == nil {
		s.byUser[req.UserID] = make(map[string]struct{})
	}
	s.byUser[req.UserID][handle] = struct{}{}
	s.mu.Unlock()

	return handle, nil
}

func (s *TemporalScheduler) Cancel(ctx context.Context, handle string) error {
	s.mu.Lock()
	for userID, handles := range s.byUser {
		if _, ok := handles[handle]; ok {
			delete(handles, handle)
			if len(handles) == 0 {
				delete(s.byUser, userID)
			}
			break
		}
	}
	s.mu.Unlock()

	err := s.client.CancelWorkflow(ctx, tmp.AlertWorkflowIDPrefix+handle, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil
		}
		// Cancellation is fire-and-forget for callers; log and move on.
		s.logger.Warn().Err(err).Str("handle", handle).Msg("failed to cancel alert workflow")
	}
	return nil
}

func (s *TemporalScheduler) CancelAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	handles := make([]string, 0, len(s.byUser[userID]))
	for handle := range s.byUser[userID] {
		handles = append(handles, handle)
	}
	s.mu.Unlock()

	for _, handle := range handles {
		if err := s.Cancel(ctx, handle); err != nil {
			return err
		}
	}
	return nil
}
