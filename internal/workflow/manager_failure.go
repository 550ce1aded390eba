package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"easel/internal/history"
	"easel/internal/logging"
	"easel/internal/notifications"
	"easel/internal/queue"
	"easel/internal/services"
)

// finish moves the job to its terminal status and fans the outcome out to the
// requester, history, metrics, and operator notifications.
func (m *Manager) finish(ctx context.Context, job *jobState, err error) {
	finished := time.Now()
	duration := finished.Sub(job.startedAt)
	status := queue.StatusCompleted
	kind := ""
	if err != nil {
		status = queue.StatusFailed
		if errors.Is(err, services.ErrTimeout) {
			status = queue.StatusTimedOut
		}
		kind = services.Kind(err)
	}
	m.setStage(job, status)

	if err != nil {
		attrs := append(logging.JobOutcome(string(status), kind, duration),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(kind)),
		)
		logging.ErrorWithContext(job.logger, "request failed", "request_failed", attrs...)
		m.reply(ctx, job, MessageFailurePrefix+services.UserMessage(err))
	} else {
		job.logger.Info("request completed", logging.Args(append(
			logging.JobOutcome(string(status), "", duration),
			logging.Int("outputs", job.outputs),
		)...)...)
	}

	result := Result{
		RequestID:  job.req.ID,
		Profile:    job.req.Profile.Alias,
		Status:     status,
		ErrorKind:  kind,
		Outputs:    job.outputs,
		Duration:   duration,
		FinishedAt: finished,
	}
	if err != nil {
		result.Error = err.Error()
	}
	m.recordResult(result, err)
	m.metrics.JobFinished(job.req.Profile.Alias, string(status), duration)
	m.recordHistory(ctx, job, result, err)
	m.notifyOutcome(ctx, job, result, err)
}

func (m *Manager) recordHistory(ctx context.Context, job *jobState, result Result, err error) {
	if m.history == nil {
		return
	}
	started := job.startedAt
	entry := history.Entry{
		RequestID:     job.req.ID,
		CorrelationID: job.correlationID,
		PromptID:      job.promptID,
		Profile:       job.req.Profile.Alias,
		Mode:          job.req.Mode.String(),
		OriginalText:  job.req.Text,
		FinalText:     job.finalText,
		Status:        result.Status,
		ErrorKind:     result.ErrorKind,
		OutputCount:   result.Outputs,
		StartedAt:     &started,
		FinishedAt:    result.FinishedAt,
	}
	if !job.req.EnqueuedAt.IsZero() {
		enqueued := job.req.EnqueuedAt
		entry.EnqueuedAt = &enqueued
	}
	if job.req.Session != nil {
		entry.Requester = job.req.Session.RequesterID()
		entry.Channel = job.req.Session.ChannelID()
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	if _, recErr := m.history.Record(noticeContext(ctx), entry); recErr != nil {
		logging.WarnWithContext(job.logger, "history record failed", "history_record_failed",
			logging.Error(recErr),
			logging.String(logging.FieldImpact, "request missing from job history"),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
		)
	}
}

func (m *Manager) notifyOutcome(ctx context.Context, job *jobState, result Result, err error) {
	summary := notifications.Job{
		RequestID: result.RequestID,
		Profile:   result.Profile,
		Outputs:   result.Outputs,
		Duration:  result.Duration,
	}
	if job.req.Session != nil {
		summary.Requester = job.req.Session.RequesterID()
	}
	notifyCtx, cancel := context.WithTimeout(noticeContext(ctx), noticeTimeout)
	defer cancel()
	var notifyErr error
	if err != nil {
		notifyErr = m.notifier.NotifyJobFailed(notifyCtx, summary, result.ErrorKind, err)
	} else {
		notifyErr = m.notifier.NotifyJobCompleted(notifyCtx, summary)
	}
	if notifyErr != nil {
		logging.WarnWithContext(job.logger, "operator notification failed", "notification_failed",
			logging.Error(notifyErr),
			logging.String(logging.FieldImpact, "operator not alerted about this request"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic reachability"),
		)
	}
}

// recoverJob turns a panic inside a job into an ordinary failure.
func (m *Manager) recoverJob(req *queue.Request, recovered any) {
	err := fmt.Errorf("%w: %v", errPanic, recovered)
	m.mu.RLock()
	job := m.current
	m.mu.RUnlock()
	if job == nil || job.req != req {
		job = &jobState{req: req, startedAt: time.Now(), logger: m.logger}
	}
	job.logger.Error("worker panic recovered",
		logging.Any("panic", recovered),
		logging.String("stack", string(debug.Stack())),
		logging.String(logging.FieldEventType, "worker_panic"),
		logging.String(logging.FieldErrorHint, "report this as a bug"),
	)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic while reporting worker panic", logging.Any("panic", r))
		}
	}()
	m.finish(m.ctx, job, err)
	_ = m.notifier.NotifyError(noticeContext(m.ctx), err, "worker")
}

func hintFor(kind string) string {
	switch kind {
	case "template_load":
		return "check the workflow file_path and that the template is valid JSON"
	case "asset_missing_slot", "prompt_slot_missing", "configuration":
		return "check the workflow profile node ids against the template"
	case "upload":
		return "check the image URL and backend reachability"
	case "submission":
		return "check comfyui.server_address and the backend logs"
	case "backend_execution", "no_output":
		return "check the backend logs for the failing node"
	case "timeout":
		return "raise comfyui.request_timeout or check backend load"
	case "canceled":
		return "daemon shut down while the request was running"
	default:
		return "check logs for details"
	}
}
