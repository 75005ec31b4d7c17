package service

import (
	"context"
	"errors"
	"fmt"

	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/pkg/apperror"
	"vision-assistant-be/internal/repository/specification"
	"vision-assistant-be/pkg/assistant"
	"vision-assistant-be/pkg/events"
	"vision-assistant-be/pkg/poll"

	"github.com/google/uuid"
)

const replyLookupLimit = 10

// TurnRequest is one user message submitted to the assistant.
type TurnRequest struct {
	ThreadID  string
	OwnerID   uuid.UUID
	Text      string
	MessageID string
	Metadata  map[string]interface{}

	// ReplyMetadata is merged into the persisted assistant message.
	ReplyMetadata map[string]interface{}

	// OnStatus receives every run status fetched while waiting.
	OnStatus func(status assistant.RunStatus)
}

type TurnResult struct {
	ThreadID       string
	RunID          string
	Content        string
	UserMessage    dto.MessageDTO
	ReplyMessageID string
	History        []dto.MessageDTO
}

func (s *threadService) SubmitTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.Text == "" {
		return nil, apperror.Validation("Message is required")
	}

	thread, err := s.ValidateOwnership(ctx, req.ThreadID, req.OwnerID)
	if err != nil {
		return nil, err
	}

	// A rejected turn must leave an ended thread ended, so the lock comes first.
	token, ok := s.runLock.Acquire(thread.ThreadId)
	if !ok {
		s.metrics.TurnRejectedBusy()
		return nil, apperror.Conflict("A reply is already being generated for this thread")
	}
	defer s.runLock.Release(thread.ThreadId, token)

	thread, err = s.ReactivateIfNeeded(ctx, thread)
	if err != nil {
		return nil, err
	}

	started := s.clock.Now()
	s.metrics.TurnStarted()

	result, err := s.runTurn(ctx, thread, req)

	s.metrics.TurnFinished(turnOutcome(err), s.clock.Since(started))
	s.reportTurn(ctx, thread, req.OwnerID, result, err)
	return result, err
}

func (s *threadService) runTurn(ctx context.Context, thread *entity.Thread, req TurnRequest) (*TurnResult, error) {
	threadID := thread.ThreadId

	userMsg, isExisting, err := s.SaveMessage(ctx, threadID, entity.RoleUser, req.Text, req.MessageID, req.Metadata)
	if err != nil {
		return nil, err
	}
	if isExisting {
		replayed, err := s.replayTurn(ctx, threadID, userMsg)
		if err != nil || replayed != nil {
			return replayed, err
		}
		// The earlier attempt never got a reply, so answer it now.
	}

	if _, err := s.assistant.AppendMessage(ctx, threadID, entity.RoleUser, req.Text); err != nil {
		return nil, apperror.Upstream("Failed to send message to assistant", err)
	}

	run, err := s.assistant.CreateRun(ctx, threadID, s.cfg.AssistantID)
	if err != nil {
		return nil, apperror.Upstream("Failed to start processing", err)
	}

	final, err := s.awaitRun(ctx, threadID, run, req.OnStatus)
	if err != nil {
		return nil, err
	}
	if final.Status != assistant.RunStatusCompleted {
		s.logger.Warn(threadModule, "Run ended without completing", map[string]interface{}{
			"thread_id":  threadID,
			"run_id":     run.ID,
			"status":     string(final.Status),
			"last_error": final.LastError,
		})
		return nil, apperror.RunFailed(string(final.Status))
	}

	msgs, err := s.assistant.ListMessages(ctx, threadID, assistant.ListOptions{
		Order: assistant.OrderDesc,
		Limit: replyLookupLimit,
	})
	if err != nil {
		return nil, apperror.Upstream("Failed to fetch assistant response", err)
	}
	reply, ok := assistant.FindRunReply(msgs, run.ID)
	if !ok {
		return nil, apperror.Upstream("No assistant response found", nil)
	}

	replyMeta := map[string]interface{}{
		entity.MetaRunID:       run.ID,
		entity.MetaAssistantID: s.cfg.AssistantID,
		entity.MetaReplyTo:     userMsg.MessageId,
	}
	for k, v := range req.ReplyMetadata {
		replyMeta[k] = v
	}
	if _, _, err := s.SaveMessage(ctx, threadID, entity.RoleAssistant, reply.Text, reply.ID, replyMeta); err != nil {
		return nil, err
	}

	history, err := s.loadMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	return &TurnResult{
		ThreadID:       threadID,
		RunID:          run.ID,
		Content:        reply.Text,
		UserMessage:    toMessageDTO(userMsg),
		ReplyMessageID: reply.ID,
		History:        toMessageDTOs(history),
	}, nil
}

// replayTurn returns the stored answer to a resubmitted user message, or nil
// when that message was never answered.
func (s *threadService) replayTurn(ctx context.Context, threadID string, userMsg *entity.Message) (*TurnResult, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	reply, err := uow.MessageRepository().FindOne(ctx,
		specification.ByThreadID{ThreadID: threadID},
		specification.ByRole{Role: entity.RoleAssistant},
		specification.MetadataEquals{Key: entity.MetaReplyTo, Value: userMsg.MessageId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("find reply to %s: %w", userMsg.MessageId, err))
	}
	if reply == nil {
		return nil, nil
	}

	history, err := s.loadMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(threadModule, "Turn replayed from store", map[string]interface{}{
		"thread_id":  threadID,
		"message_id": userMsg.MessageId,
	})
	return &TurnResult{
		ThreadID:       threadID,
		RunID:          reply.MetaString(entity.MetaRunID),
		Content:        reply.Content,
		UserMessage:    toMessageDTO(userMsg),
		ReplyMessageID: reply.MessageId,
		History:        toMessageDTOs(history),
	}, nil
}

// awaitRun polls until the run leaves queued/in_progress.
func (s *threadService) awaitRun(ctx context.Context, threadID string, run *assistant.Run, onStatus func(assistant.RunStatus)) (*assistant.Run, error) {
	pollCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	final, err := poll.Until(pollCtx, s.clock, s.cfg.PollInterval, run,
		func(ctx context.Context) (*assistant.Run, error) {
			return s.assistant.GetRun(ctx, threadID, run.ID)
		},
		func(r *assistant.Run) bool {
			return !r.Status.InFlight()
		},
		func(r *assistant.Run) {
			if onStatus != nil {
				onStatus(r.Status)
			}
		},
	)
	if err == nil {
		return final, nil
	}

	var fetchErr *poll.FetchError
	switch {
	case errors.As(err, &fetchErr):
		return nil, apperror.Upstream("Failed to get processing status", fetchErr.Err)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, apperror.Upstream("Assistant run timed out", err)
	default:
		return nil, apperror.Internal(fmt.Errorf("await run %s: %w", run.ID, err))
	}
}

func turnOutcome(err error) string {
	if err == nil {
		return "completed"
	}
	if status, ok := apperror.RunStatusOf(err); ok {
		return status
	}
	return apperror.KindOf(err).String()
}

func (s *threadService) reportTurn(ctx context.Context, thread *entity.Thread, ownerID uuid.UUID, result *TurnResult, err error) {
	if err != nil {
		s.logger.Error(threadModule, "Turn failed", map[string]interface{}{
			"thread_id": thread.ThreadId,
			"kind":      apperror.KindOf(err).String(),
			"error":     err.Error(),
		})
		publishQuietly(ctx, s.publisher, s.logger, events.TurnFailed, map[string]interface{}{
			"threadId": thread.ThreadId,
			"ownerId":  ownerID.String(),
			"outcome":  turnOutcome(err),
		})
		return
	}

	s.logger.Info(threadModule, "Turn completed", map[string]interface{}{
		"thread_id": thread.ThreadId,
		"run_id":    result.RunID,
	})
	publishQuietly(ctx, s.publisher, s.logger, events.TurnCompleted, map[string]interface{}{
		"threadId":  thread.ThreadId,
		"ownerId":   ownerID.String(),
		"runId":     result.RunID,
		"messageId": result.ReplyMessageID,
	})
}
