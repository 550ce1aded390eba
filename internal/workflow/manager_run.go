package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"easel/internal/logging"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/services/comfy"
)

// User-facing worker messages.
const (
	MessageProcessing    = "Processing your request... this usually takes about 2 minutes."
	MessageFailurePrefix = "Processing failed: "
)

const noticeTimeout = 15 * time.Second

type jobState struct {
	req           *queue.Request
	correlationID string
	promptID      string
	finalText     string
	status        queue.Status
	startedAt     time.Time
	outputs       int
	logger        *slog.Logger
}

func (m *Manager) process(ctx context.Context, req *queue.Request) {
	job := &jobState{
		req:           req,
		correlationID: uuid.NewString(),
		status:        queue.StatusQueued,
		startedAt:     time.Now(),
	}
	ctx = services.WithRequestID(ctx, req.ID)
	ctx = services.WithCorrelationID(ctx, job.correlationID)
	ctx = services.WithProfile(ctx, req.Profile.Alias)
	if req.Session != nil {
		ctx = services.WithRequester(ctx, req.Session.RequesterID(), req.Session.ChannelID())
	}
	job.logger = logging.WithContext(ctx, m.logger)
	m.setCurrent(job)

	job.logger.Info("request started",
		logging.String("mode", req.Mode.String()),
		logging.Int("assets", len(req.Assets)),
		logging.Duration("waited", job.startedAt.Sub(req.EnqueuedAt)),
	)
	m.reply(ctx, job, MessageProcessing)

	err := m.execute(ctx, job)
	m.finish(ctx, job, err)
}

// execute drives one request from template load to delivered images.
func (m *Manager) execute(ctx context.Context, job *jobState) error {
	req := job.req
	profile := req.Profile

	ctx = services.WithStage(ctx, "template")
	wf, err := m.templates.Load(m.cfg.TemplatePath(profile))
	if err != nil {
		return err
	}
	wf = wf.Clone()
	for _, slot := range profile.LoadImageNodeIDs[:len(req.Assets)] {
		if _, ok := wf.Node(slot); !ok {
			return services.Wrap(services.ErrAssetMissingSlot, "template", "validate", fmt.Sprintf("image node %q not found", slot), nil)
		}
	}
	m.setStage(job, queue.StatusTemplateLoaded)

	ctx = services.WithStage(ctx, "upload")
	for i, asset := range req.Assets {
		slot := profile.LoadImageNodeIDs[i]
		data, err := m.fetcher.Fetch(ctx, asset)
		if err != nil {
			return services.Wrap(services.ErrUpload, "upload", "download asset", fmt.Sprintf("image %d", i+1), err)
		}
		stored, err := m.backend.UploadImage(ctx, uuid.NewString()+".png", data)
		if err != nil {
			return err
		}
		if err := wf.SetImage(slot, stored); err != nil {
			return err
		}
		job.logger.Debug("asset uploaded",
			logging.Int("index", i+1),
			logging.String("node", slot),
			logging.String("stored_name", stored),
			logging.Int("bytes", len(data)),
		)
	}
	m.setStage(job, queue.StatusAssetsUploaded)

	ctx = services.WithStage(ctx, "prompt")
	job.finalText = m.prompt.Transform(ctx, req.Text, req.Mode, req.Session)
	if err := wf.SetPrompt(profile.PositivePromptNodeID, job.finalText); err != nil {
		return err
	}
	m.setStage(job, queue.StatusPromptTransformed)

	ctx = services.WithStage(ctx, "submit")
	if rerolled := wf.RerollSeed(nil); rerolled == 0 {
		job.logger.Debug("no sampler seed to reroll")
	}
	outputNode, ok := wf.OutputNode(profile.OutputNodeID)
	if !ok {
		if profile.OutputNodeID != "" {
			return services.Wrap(services.ErrConfiguration, "submit", "output node", fmt.Sprintf("output node %q not found in template", profile.OutputNodeID), nil)
		}
		return services.Wrap(services.ErrNoOutput, "submit", "output node", "template has no SaveImage node", nil)
	}
	encoded, err := wf.Encode()
	if err != nil {
		return services.Wrap(services.ErrSubmission, "submit", "encode workflow", "", err)
	}

	stream, err := m.backend.Subscribe(ctx, job.correlationID)
	if err != nil {
		return err
	}
	defer stream.Close()

	promptID, err := m.backend.QueuePrompt(ctx, encoded, job.correlationID)
	if err != nil {
		return err
	}
	job.promptID = promptID
	ctx = services.WithPromptID(ctx, promptID)
	job.logger = job.logger.With(logging.String(logging.FieldPromptID, promptID))
	m.setStage(job, queue.StatusSubmitted)

	ctx = services.WithStage(ctx, "monitor")
	m.setStage(job, queue.StatusMonitoring)
	images, err := comfy.Await(ctx, stream.Events(), promptID, outputNode, m.cfg.RequestTimeout())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return services.Wrap(nil, "monitor", "await", "canceled", err)
		}
		return err
	}
	if len(images) == 0 {
		return services.Wrap(services.ErrNoOutput, "monitor", "await", fmt.Sprintf("node %s produced no images", outputNode), nil)
	}

	for _, img := range images {
		url := m.backend.ImageURL(img)
		if err := req.Session.SendImage(noticeContext(ctx), url); err != nil {
			logging.WarnWithContext(job.logger, "image delivery failed", "image_delivery_failed",
				logging.String("url", url),
				logging.Error(err),
				logging.String(logging.FieldImpact, "requester did not receive one output image"),
				logging.String(logging.FieldErrorHint, "check the chat bridge reply endpoint"),
			)
		}
	}
	job.outputs = len(images)
	return nil
}

func (m *Manager) reply(ctx context.Context, job *jobState, text string) {
	if job.req.Session == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(noticeContext(ctx), noticeTimeout)
	defer cancel()
	if err := job.req.Session.Send(sendCtx, text); err != nil {
		job.logger.Warn("reply delivery failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reply_delivery_failed"),
			logging.String(logging.FieldErrorHint, "check the chat bridge reply endpoint"),
			logging.String(logging.FieldImpact, "requester missed a status message"),
		)
	}
}

// noticeContext keeps request values but survives cancellation so terminal
// messages still reach the requester during shutdown.
func noticeContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
