package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/pkg/apperror"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/pkg/assistant"
	"vision-assistant-be/pkg/llm"
	"vision-assistant-be/pkg/storage"

	"github.com/google/uuid"
)

const analysisModule = "ANALYSIS"

type IAnalysisService interface {
	AnalyzeImage(ctx context.Context, ownerID uuid.UUID, threadID string, file *multipart.FileHeader, onStatus func(assistant.RunStatus)) (*dto.AnalyzeImageResponse, error)
	Ask(ctx context.Context, ownerID uuid.UUID, req *dto.ChatRequest, onStatus func(assistant.RunStatus)) (*dto.TurnResponse, error)
}

type analysisService struct {
	threadService IThreadService
	imageStore    storage.ImageStore
	vision        llm.VisionProvider
	prompt        string
	logger        logger.ILogger
}

func NewAnalysisService(
	threadService IThreadService,
	imageStore storage.ImageStore,
	vision llm.VisionProvider,
	prompt string,
	log logger.ILogger,
) IAnalysisService {
	return &analysisService{
		threadService: threadService,
		imageStore:    imageStore,
		vision:        vision,
		prompt:        prompt,
		logger:        log,
	}
}

// AnalyzeImage stores the upload, describes it and submits the description as a turn.
// Nothing is persisted and no run is started until the description exists.
func (s *analysisService) AnalyzeImage(ctx context.Context, ownerID uuid.UUID, threadID string, file *multipart.FileHeader, onStatus func(assistant.RunStatus)) (*dto.AnalyzeImageResponse, error) {
	thread, err := s.threadService.ValidateOwnership(ctx, threadID, ownerID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, apperror.NotFound("Image not found")
	}

	stored, err := s.imageStore.Save(ctx, ownerID.String(), file)
	switch {
	case errors.Is(err, storage.ErrNoFile):
		return nil, apperror.NotFound("Image not found")
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrTooLarge):
		return nil, apperror.Validation(err.Error())
	case err != nil:
		return nil, apperror.Internal(err)
	}
	if stored == nil || stored.URL == "" {
		return nil, apperror.NotFound("Image upload failed")
	}

	description, err := s.vision.DescribeImage(ctx, llm.Image{
		URL:      stored.URL,
		Data:     stored.Data,
		MimeType: stored.MimeType,
	}, s.prompt)
	if err != nil {
		return nil, apperror.Upstream("Failed to analyze image", err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperror.Upstream("Image analysis returned no content", nil)
	}

	s.logger.Info(analysisModule, "Image described", map[string]interface{}{
		"thread_id": thread.ThreadId,
		"image_url": stored.URL,
	})

	result, err := s.threadService.SubmitTurn(ctx, TurnRequest{
		ThreadID: thread.ThreadId,
		OwnerID:  ownerID,
		Text:     description,
		Metadata: map[string]interface{}{
			entity.MetaImageURL:     stored.URL,
			entity.MetaMessageType:  "image_upload",
			entity.MetaAnalysisType: "image",
		},
		ReplyMetadata: map[string]interface{}{
			entity.MetaImageURL:     stored.URL,
			entity.MetaAnalysisType: "image",
		},
		OnStatus: onStatus,
	})
	if err != nil {
		return nil, err
	}

	// Newest first, the order the assistant lists its thread in.
	data := make([]dto.AnalysisMessage, 0, len(result.History))
	for i := len(result.History) - 1; i >= 0; i-- {
		m := result.History[i]
		data = append(data, dto.AnalysisMessage{
			Id:        m.MessageId,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	return &dto.AnalyzeImageResponse{
		Success:  true,
		Data:     data,
		ThreadId: result.ThreadID,
		Url:      stored.URL,
	}, nil
}

func (s *analysisService) Ask(ctx context.Context, ownerID uuid.UUID, req *dto.ChatRequest, onStatus func(assistant.RunStatus)) (*dto.TurnResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperror.Validation("Message is required")
	}

	result, err := s.threadService.SubmitTurn(ctx, TurnRequest{
		ThreadID:  req.ThreadId,
		OwnerID:   ownerID,
		Text:      req.Message,
		MessageID: req.MessageId,
		Metadata:  req.Metadata,
		OnStatus:  onStatus,
	})
	if err != nil {
		return nil, err
	}
	return &dto.TurnResponse{
		Content:  result.Content,
		History:  result.History,
		ThreadId: result.ThreadID,
	}, nil
}
