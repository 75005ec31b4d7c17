package websocket

import (
	"context"
	"encoding/json"

	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/pkg/apperror"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/service"
	"vision-assistant-be/pkg/assistant"

	"github.com/google/uuid"
)

const dispatchModule = "Dispatcher"

// Peer is the connection side a handler talks to.
type Peer interface {
	OwnerID() uuid.UUID
	Session() *SessionContext
	Emit(frameType string, content interface{})
	Follow(threadID string)
}

type HandlerFunc func(ctx context.Context, peer Peer, frame InboundFrame)

// Dispatcher routes inbound frames by type. Frames without a known type go to
// legacyDefault, which answers them as questions for older clients.
type Dispatcher struct {
	handlers      map[string]HandlerFunc
	legacyDefault HandlerFunc

	threads  service.IThreadService
	analysis service.IAnalysisService
	logger   logger.ILogger
}

func NewDispatcher(threads service.IThreadService, analysis service.IAnalysisService, log logger.ILogger) *Dispatcher {
	d := &Dispatcher{
		threads:  threads,
		analysis: analysis,
		logger:   log,
	}
	d.handlers = map[string]HandlerFunc{
		TypeQuestion:        d.handleQuestion,
		TypeLoadSession:     d.handleLoadSession,
		TypeLoadAnalysis:    d.handleLoadAnalysis,
		TypeObjectDetection: d.handleObjectDetection,
	}
	d.legacyDefault = d.handleQuestion
	return d
}

// Dispatch handles one raw frame. It never returns an error: failures become error frames.
func (d *Dispatcher) Dispatch(ctx context.Context, peer Peer, raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		peer.Emit(FrameError, "Invalid message format")
		return
	}

	if threadID := service.NormalizeThreadID(frame.ThreadID()); threadID != "" {
		// Only owners follow a thread; everyone else gets the handler's own error.
		if _, err := d.threads.ValidateOwnership(ctx, threadID, peer.OwnerID()); err == nil {
			peer.Session().BindThread(threadID)
			peer.Follow(threadID)
		}
	}

	handler, ok := d.handlers[frame.Type]
	if !ok {
		handler = d.legacyDefault
	}
	handler(ctx, peer, frame)
}

func (d *Dispatcher) emitError(peer Peer, err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		d.logger.Error(dispatchModule, "Frame handling failed", map[string]interface{}{"error": err.Error()})
	}
	peer.Emit(FrameError, apperror.PublicMessage(err))
}

// threadFor falls back to the thread this connection last used.
func threadFor(peer Peer, frame InboundFrame) string {
	if id := frame.ThreadID(); id != "" {
		return id
	}
	return peer.Session().ThreadID
}

func (d *Dispatcher) handleQuestion(ctx context.Context, peer Peer, frame InboundFrame) {
	threadID := threadFor(peer, frame)
	if threadID == "" {
		peer.Emit(FrameError, "thread not found")
		return
	}
	if frame.Message == "" {
		peer.Emit(FrameError, "Message is required")
		return
	}

	// The reply is persisted even if this connection goes away mid-run.
	turnCtx := context.WithoutCancel(ctx)

	res, err := d.analysis.Ask(turnCtx, peer.OwnerID(), &dto.ChatRequest{
		ThreadId:  threadID,
		Message:   frame.Message,
		MessageId: frame.MessageId,
		Metadata:  frame.Metadata,
	}, func(status assistant.RunStatus) {
		peer.Emit(FrameStatus, string(status))
	})
	if err != nil {
		d.emitError(peer, err)
		return
	}

	peer.Session().SetHistory(res.History)
	peer.Emit(FrameResponse, res)
}

func (d *Dispatcher) handleLoadSession(ctx context.Context, peer Peer, frame InboundFrame) {
	threadID := frame.ThreadID()
	if threadID == "" {
		peer.Emit(FrameError, "Thread ID is required")
		return
	}

	timeline, err := d.threads.GetTimeline(ctx, threadID, peer.OwnerID())
	if err != nil {
		d.emitError(peer, err)
		return
	}

	peer.Session().SetHistory(timeline.Messages)
	peer.Emit(FrameSessionData, timeline)
}

func (d *Dispatcher) handleLoadAnalysis(ctx context.Context, peer Peer, frame InboundFrame) {
	threadID := frame.ThreadID()
	if threadID == "" {
		peer.Emit(FrameError, "Thread ID is required")
		return
	}

	results, err := d.threads.GetAnalysisResults(ctx, threadID, peer.OwnerID())
	if err != nil {
		d.emitError(peer, err)
		return
	}
	peer.Emit(FrameAnalysisResults, results)
}

func (d *Dispatcher) handleObjectDetection(ctx context.Context, peer Peer, frame InboundFrame) {
	threadID := frame.ThreadID()
	if threadID == "" {
		peer.Emit(FrameError, "Thread ID is required")
		return
	}
	if len(frame.DetectionData) == 0 {
		peer.Emit(FrameError, "Detection data is required")
		return
	}

	saved, err := d.threads.SaveDetection(ctx, threadID, peer.OwnerID(), frame.DetectionData)
	if err != nil {
		d.emitError(peer, err)
		return
	}

	detection := make(map[string]interface{}, len(frame.DetectionData)+1)
	for k, v := range frame.DetectionData {
		detection[k] = v
	}
	if _, ok := detection["timestamp"]; !ok {
		detection["timestamp"] = saved.Timestamp
	}
	peer.Session().AddDetection(detection)
	peer.Emit(FrameDetectionSaved, saved)
}
