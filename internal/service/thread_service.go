package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/model"
	"vision-assistant-be/internal/pkg/apperror"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/pkg/metrics"
	"vision-assistant-be/internal/repository/specification"
	"vision-assistant-be/internal/repository/unitofwork"
	"vision-assistant-be/pkg/assistant"
	"vision-assistant-be/pkg/events"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	threadModule = "THREAD"

	titleMaxRunes   = 50
	previewMaxRunes = 100
	previewLimit    = 5
)

type IThreadService interface {
	ValidateOwnership(ctx context.Context, threadID string, ownerID uuid.UUID) (*entity.Thread, error)
	CreateSession(ctx context.Context, ownerID uuid.UUID) (*dto.StartSessionResponse, error)
	EndSession(ctx context.Context, threadID string, ownerID uuid.UUID) error
	ReactivateIfNeeded(ctx context.Context, thread *entity.Thread) (*entity.Thread, error)
	SubmitTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
	SaveMessage(ctx context.Context, threadID, role, content, messageID string, metadata map[string]interface{}) (*entity.Message, bool, error)
	GetHistory(ctx context.Context, threadID string, ownerID uuid.UUID) ([]dto.MessageDTO, error)
	GetSessionMessages(ctx context.Context, threadID string, ownerID uuid.UUID) (*dto.SessionMessagesResponse, error)
	ListSessions(ctx context.Context, ownerID uuid.UUID) ([]dto.SessionSummary, error)
	DeleteSession(ctx context.Context, threadID string, ownerID uuid.UUID) error
	SaveDetection(ctx context.Context, threadID string, ownerID uuid.UUID, payload map[string]interface{}) (*dto.SaveDetectionResponse, error)
	GetSessionDetails(ctx context.Context, threadID string, ownerID uuid.UUID) (*dto.SessionDetailsResponse, error)
	GetTimeline(ctx context.Context, threadID string, ownerID uuid.UUID) (*dto.SessionTimeline, error)
	GetAnalysisResults(ctx context.Context, threadID string, ownerID uuid.UUID) (*dto.AnalysisResultsResponse, error)
}

// RunLocker guards a thread while one of its runs is in flight.
type RunLocker interface {
	// Acquire returns the token Release needs, or false when the thread is busy.
	Acquire(threadID string) (string, bool)
	Release(threadID, token string) bool
}

type ThreadServiceConfig struct {
	AssistantID  string
	PollInterval time.Duration
	// RunTimeout of zero waits for as long as the provider keeps the run in flight.
	RunTimeout        time.Duration
	DeleteThreadOnEnd bool
	Clock             clockwork.Clock
}

type threadService struct {
	uowFactory unitofwork.RepositoryFactory
	assistant  assistant.Client
	runLock    RunLocker
	publisher  IPublisherService
	metrics    *metrics.Metrics
	logger     logger.ILogger
	cfg        ThreadServiceConfig
	clock      clockwork.Clock
}

func NewThreadService(
	uowFactory unitofwork.RepositoryFactory,
	assistantClient assistant.Client,
	runLock RunLocker,
	publisher IPublisherService,
	m *metrics.Metrics,
	log logger.ILogger,
	cfg ThreadServiceConfig,
) IThreadService {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &threadService{
		uowFactory: uowFactory,
		assistant:  assistantClient,
		runLock:    runLock,
		publisher:  publisher,
		metrics:    m,
		logger:     log,
		cfg:        cfg,
		clock:      clock,
	}
}

// NormalizeThreadID strips whitespace and the quotes some clients wrap ids in.
func NormalizeThreadID(raw string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
}

// DeriveTitle names a session after its first user message, or after its creation time.
func DeriveTitle(firstUserMessage string, createdAt time.Time) string {
	if firstUserMessage != "" {
		return truncate(firstUserMessage, titleMaxRunes)
	}
	return "Session " + createdAt.Format(time.RFC1123)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

func (s *threadService) ValidateOwnership(ctx context.Context, threadID string, ownerID uuid.UUID) (*entity.Thread, error) {
	threadID = NormalizeThreadID(threadID)
	if threadID == "" {
		return nil, apperror.Validation("Thread ID is required")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	thread, err := uow.ThreadRepository().FindOne(ctx,
		specification.ByThreadID{ThreadID: threadID},
		specification.OwnedBy{OwnerID: ownerID},
	)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("find thread %s: %w", threadID, err))
	}
	if thread == nil {
		return nil, apperror.NotFound("Thread not found or not authorized")
	}
	return thread, nil
}

func (s *threadService) CreateSession(ctx context.Context, ownerID uuid.UUID) (*dto.StartSessionResponse, error) {
	if ownerID == uuid.Nil {
		return nil, apperror.Validation("User ID is required")
	}

	remote, err := s.assistant.CreateThread(ctx)
	if err != nil {
		return nil, apperror.Upstream("Failed to create assistant thread", err)
	}

	thread := &entity.Thread{
		ThreadId:  remote.ID,
		OwnerId:   ownerID,
		Title:     model.DefaultThreadTitle,
		IsActive:  true,
		CreatedAt: s.clock.Now().UTC(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ThreadRepository().Create(ctx, thread); err != nil {
		s.deleteRemoteThread(ctx, remote.ID)
		return nil, apperror.Internal(fmt.Errorf("persist thread %s: %w", remote.ID, err))
	}

	s.logger.Info(threadModule, "Session started", map[string]interface{}{
		"thread_id": thread.ThreadId,
		"owner_id":  ownerID.String(),
	})
	publishQuietly(ctx, s.publisher, s.logger, events.SessionStarted, map[string]interface{}{
		"threadId": thread.ThreadId,
		"ownerId":  ownerID.String(),
	})

	return &dto.StartSessionResponse{
		Success:   true,
		ThreadId:  thread.ThreadId,
		CreatedAt: thread.CreatedAt,
	}, nil
}

func (s *threadService) EndSession(ctx context.Context, threadID string, ownerID uuid.UUID) error {
	threadID = NormalizeThreadID(threadID)
	if threadID == "" {
		return apperror.Validation("Thread ID is required")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	ended, err := uow.ThreadRepository().End(ctx, threadID, ownerID, s.clock.Now().UTC())
	if err != nil {
		return apperror.Internal(fmt.Errorf("end thread %s: %w", threadID, err))
	}
	if ended == nil {
		return apperror.NotFound("Thread not found or not authorized")
	}

	if s.cfg.DeleteThreadOnEnd {
		s.deleteRemoteThread(ctx, threadID)
	}

	publishQuietly(ctx, s.publisher, s.logger, events.SessionEnded, map[string]interface{}{
		"threadId": threadID,
		"ownerId":  ownerID.String(),
	})
	return nil
}

// deleteRemoteThread is best effort; the local record is the source of truth.
func (s *threadService) deleteRemoteThread(ctx context.Context, threadID string) {
	if err := s.assistant.DeleteThread(ctx, threadID); err != nil {
		s.logger.Warn(threadModule, "Failed to delete assistant thread", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
	}
}

func (s *threadService) ReactivateIfNeeded(ctx context.Context, thread *entity.Thread) (*entity.Thread, error) {
	if thread.IsActive {
		return thread, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	reactivated, err := uow.ThreadRepository().Reactivate(ctx, thread.ThreadId, thread.OwnerId)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("reactivate thread %s: %w", thread.ThreadId, err))
	}
	if reactivated != nil {
		s.logger.Info(threadModule, "Session reactivated", map[string]interface{}{"thread_id": thread.ThreadId})
		return reactivated, nil
	}

	// Another request reactivated it first.
	current, err := uow.ThreadRepository().FindOne(ctx,
		specification.ByThreadID{ThreadID: thread.ThreadId},
		specification.OwnedBy{OwnerID: thread.OwnerId},
	)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if current == nil {
		return nil, apperror.NotFound("Thread not found or not authorized")
	}
	return current, nil
}

func (s *threadService) SaveMessage(ctx context.Context, threadID, role, content, messageID string, metadata map[string]interface{}) (*entity.Message, bool, error) {
	if !entity.IsValidRole(role) {
		return nil, false, apperror.Validation(fmt.Sprintf("Invalid role: %s", role))
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	msg := &entity.Message{
		MessageId: messageID,
		ThreadId:  threadID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: s.clock.Now().UTC(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	isExisting, err := uow.MessageRepository().Save(ctx, msg)
	if err != nil {
		return nil, false, apperror.Internal(fmt.Errorf("save message %s: %w", messageID, err))
	}
	return msg, isExisting, nil
}

func (s *threadService) loadMessages(ctx context.Context, threadID string, specs ...specification.Specification) ([]*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	all := append([]specification.Specification{
		specification.ByThreadID{ThreadID: threadID},
	}, specs...)
	all = append(all, specification.OrderBy{Field: "created_at"})

	msgs, err := uow.MessageRepository().FindAll(ctx, all...)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load messages of %s: %w", threadID, err))
	}
	return msgs, nil
}

func (s *threadService) loadDetections(ctx context.Context, threadID string) ([]*entity.Detection, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	detections, err := uow.DetectionRepository().FindAll(ctx,
		specification.ByThreadID{ThreadID: threadID},
		specification.OrderBy{Field: "recorded_at"},
	)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load detections of %s: %w", threadID, err))
	}
	return detections, nil
}

func (s *threadService) GetHistory(ctx context.Context, threadID string, ownerID uuid.UUID) ([]dto.MessageDTO, error) {
	thread, err := s.ValidateOwnership(ctx, threadID, ownerID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.loadMessages(ctx, thread.ThreadId)
	if err != nil {
		return nil, err
	}
	return toMessageDTOs(msgs), nil
}

func (s *threadService) GetSessionMessages(ctx context.Context, threadID string, ownerID uuid.UUID) (*dto.SessionMessagesResponse, error) {
	thread, err := s.ValidateOwnership(ctx, threadID, ownerID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.loadMessages(ctx, thread.ThreadId)
	if err != nil {
		return nil, err
	}
	detections, err := s.loadDetections(ctx, thread.ThreadId)
	if err != nil {
		return nil, err
	}
	return &dto.SessionMessagesResponse{
		ThreadId:   thread.ThreadId,
		Messages:   toMessageDTOs(msgs),
		Detections: detectionPayloads(detections),
	}, nil
}

func (s *threadService) ListSessions(ctx context.Context, ownerID uuid.UUID) ([]dto.SessionSummary, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	threads, err := uow.ThreadRepository().FindAll(ctx,
		specification.OwnedBy{OwnerID: ownerID},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list threads: %w", err))
	}

	untitled := make([]string, 0, len(threads))
	for _, t := range threads {
		if t.Title == "" || t.Title == model.DefaultThreadTitle {
			untitled = append(untitled, t.ThreadId)
		}
	}
	firsts, err := uow.MessageRepository().FirstContentByRole(ctx, untitled, entity.RoleUser)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("first user messages: %w", err))
	}

	sessions := make([]dto.SessionSummary, 0, len(threads))
	for _, t := range threads {
		title := t.Title
		if title == "" || title == model.DefaultThreadTitle {
			title = DeriveTitle(firsts[t.ThreadId], t.CreatedAt)
		}
		sessions = append(sessions, dto.SessionSummary{
			ThreadId:  t.ThreadId,
			Title:     title,
			CreatedAt: t.CreatedAt,
			EndedAt:   t.EndedAt,
			IsActive:  t.IsActive,
		})
	}
	return sessions, nil
}

// currentTitle prefers a persisted title and derives one while the default is still stored.
func (s *threadService) currentTitle(ctx context.Context, thread *entity.Thread) (string, error) {
	if thread.Title != "" && thread.Title != model.DefaultThreadTitle {
		return thread.Title, nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	firsts, err := uow.MessageRepository().FirstContentByRole(ctx, []string{thread.ThreadId}, entity.RoleUser)
	if err != nil {
		return "", apperror.Internal(fmt.Errorf("first user message of %s: %w", thread.ThreadId, err))
	}
	return DeriveTitle(firsts[thread.ThreadId], thread.CreatedAt), nil
}

func (s *threadService) DeleteSession(ctx context.Context, threadID string, ownerID uuid.UUID) error {
	thread, err := s.ValidateOwnership(ctx, threadID, ownerID)
	if err != nil {
		return err
	}

	err = unitofwork.InTransaction(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		if err := uow.MessageRepository().DeleteByThreadId(ctx, thread.ThreadId); err != nil {
			return err
		}
		if err := uow.DetectionRepository().DeleteByThreadId(ctx, thread.ThreadId); err != nil {
			return err
		}
		return uow.ThreadRepository().Delete(ctx, thread.ThreadId)
	})
	if err != nil {
		return apperror.Internal(fmt.Errorf("delete thread %s: %w", thread.ThreadId, err))
	}

	// An ended thread was already removed remotely.
	if thread.IsActive || !s.cfg.DeleteThreadOnEnd {
		s.deleteRemoteThread(ctx, thread.ThreadId)
	}

	publishQuietly(ctx, s.publisher, s.logger, events.SessionDeleted, map[string]interface{}{
		"threadId": thread.ThreadId,
		"ownerId":  ownerID.String(),
	})
	return nil
}

func (s *threadService) SaveDetection(ctx context.Context, threadID string, ownerID uuid.UUID, payload map[string]interface{}) (*dto.SaveDetectionResponse, error) {
	if len(payload) == 0 {
		return nil, apperror.Validation("Detection data is required")
	}
	thread, err := s.ValidateOwnership(ctx, threadID, ownerID)
	if err != nil {
		return nil, err
	}

	data := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}

	recordedAt := s.clock.Now().UTC()
	if raw, ok := data["timestamp"].(string); ok {
		if parsed, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			recordedAt = parsed.UTC()
		}
	} else {
		data["timestamp"] = recordedAt.Format(isoMillis)
	}

	detection := &entity.Detection{
		ThreadId:   thread.ThreadId,
		RecordedAt: recordedAt,
		Payload:    data,
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DetectionRepository().Append(ctx, detection); err != nil {
		return nil, apperror.Internal(fmt.Errorf("append detection to %s: %w", thread.ThreadId, err))
	}

	detectionID := detection.Id.String()
	if id, ok := data["id"].(string); ok && id != "" {
		detectionID = id
	}

	publishQuietly(ctx, s.publisher, s.logger, events.DetectionSaved, map[string]interface{}{
		"threadId":    thread.ThreadId,
		"detectionId": detectionID,
	})

	return &dto.SaveDetectionResponse{
		DetectionId: detectionID,
		Timestamp:   detection.RecordedAt.UTC().Format(isoMillis),
	}, nil
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func (s *threadService) GetSessionDetails(ctx context.Context, threadID string, ownerID uuid.UUID) (*dto.SessionDetailsResponse, error) {
	thread, err := s.ValidateOwnership(ctx, threadID, ownerID)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	byThread := specification.ByThreadID{ThreadID: thread.ThreadId}

	messageCount, err := uow.MessageRepository().Count(ctx, byThread)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	detectionCount, err := uow.DetectionRepository().Count(ctx, byThread)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	firstMessages, err := s.loadMessages(ctx, thread.ThreadId, specification.Pagination{Limit: previewLimit})
	if err != nil {
		return nil, err
	}
	title, err := s.currentTitle(ctx, thread)
	if err != nil {
		return nil, err
	}

	preview := make([]dto.MessagePreview, 0, len(firstMessages))
	for _, m := range firstMessages {
		preview = append(preview, dto.MessagePreview{
			Role:      m.Role,
			Content:   truncate(m.Content, previewMaxRunes),
			CreatedAt: m.CreatedAt,
			MessageId: m.MessageId,
		})
	}

	return &dto.SessionDetailsResponse{
		Session: dto.SessionDetails{
			ThreadId:       thread.ThreadId,
			CreatedAt:      thread.CreatedAt,
			EndedAt:        thread.EndedAt,
			IsActive:       thread.IsActive,
			UserId:         thread.OwnerId,
			Title:          title,
			MessageCount:   messageCount,
			DetectionCount: detectionCount,
		},
		Preview: preview,
	}, nil
}

func (s *threadService) GetTimeline(ctx context.Context, threadID string, ownerID uuid.UUID) (*dto.SessionTimeline, error) {
	thread, err := s.ValidateOwnership(ctx, threadID, ownerID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.loadMessages(ctx, thread.ThreadId)
	if err != nil {
		return nil, err
	}
	detections, err := s.loadDetections(ctx, thread.ThreadId)
	if err != nil {
		return nil, err
	}
	title, err := s.currentTitle(ctx, thread)
	if err != nil {
		return nil, err
	}

	messageDTOs := toMessageDTOs(msgs)
	payloads := detectionPayloads(detections)

	timeline := make([]dto.TimelineEntry, 0, len(msgs)+len(detections))
	for i, m := range msgs {
		timeline = append(timeline, dto.TimelineEntry{
			Type:      "message",
			Data:      messageDTOs[i],
			Timestamp: m.CreatedAt.UnixMilli(),
		})
	}
	for i, d := range detections {
		timeline = append(timeline, dto.TimelineEntry{
			Type:      "detection",
			Data:      payloads[i],
			Timestamp: d.RecordedAt.UnixMilli(),
		})
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp < timeline[j].Timestamp
	})

	return &dto.SessionTimeline{
		ThreadId:   thread.ThreadId,
		CreatedAt:  thread.CreatedAt,
		EndedAt:    thread.EndedAt,
		IsActive:   thread.IsActive,
		Title:      title,
		ImageUrl:   findImageURL(msgs, detections),
		Timeline:   timeline,
		Messages:   messageDTOs,
		Detections: payloads,
	}, nil
}

// findImageURL looks at message metadata first and falls back to detection payloads.
func findImageURL(msgs []*entity.Message, detections []*entity.Detection) *string {
	for _, m := range msgs {
		if url := m.MetaString(entity.MetaImageURL); url != "" {
			return &url
		}
	}
	for _, d := range detections {
		if url, ok := d.Payload[entity.MetaImageURL].(string); ok && url != "" {
			return &url
		}
	}
	return nil
}

func (s *threadService) GetAnalysisResults(ctx context.Context, threadID string, ownerID uuid.UUID) (*dto.AnalysisResultsResponse, error) {
	thread, err := s.ValidateOwnership(ctx, threadID, ownerID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.loadMessages(ctx, thread.ThreadId,
		specification.ByRole{Role: entity.RoleAssistant},
		specification.HasMetadataKey{Key: entity.MetaAnalysisType},
	)
	if err != nil {
		return nil, err
	}

	resp := &dto.AnalysisResultsResponse{
		ThreadId: thread.ThreadId,
		Results:  make([]dto.AnalysisResult, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Results = append(resp.Results, dto.AnalysisResult{
			MessageId: m.MessageId,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			Metadata:  m.Metadata,
		})
	}
	if len(resp.Results) == 0 {
		resp.Message = "No analysis results found for this session"
	}
	return resp, nil
}

func toMessageDTO(m *entity.Message) dto.MessageDTO {
	return dto.MessageDTO{
		MessageId: m.MessageId,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Metadata:  m.Metadata,
	}
}

func toMessageDTOs(msgs []*entity.Message) []dto.MessageDTO {
	out := make([]dto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	return out
}

func detectionPayloads(detections []*entity.Detection) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(detections))
	for _, d := range detections {
		out = append(out, d.Payload)
	}
	return out
}
