package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Markers for every request-terminal failure. A failed job wraps exactly one of
// them so callers can classify it with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrTemplateLoad      = errors.New("template load error")
	ErrAssetMissingSlot  = errors.New("asset slot missing")
	ErrPromptSlotMissing = errors.New("prompt slot missing")
	ErrUpload            = errors.New("upload error")
	ErrSubmission        = errors.New("submission error")
	ErrBackendExecution  = errors.New("backend execution error")
	ErrNoOutput          = errors.New("no output produced")
	ErrTimeout           = errors.New("request timeout")
)

var kinds = []struct {
	marker error
	kind   string
}{
	{ErrConfiguration, "configuration"},
	{ErrTemplateLoad, "template_load"},
	{ErrAssetMissingSlot, "asset_missing_slot"},
	{ErrPromptSlotMissing, "prompt_slot_missing"},
	{ErrUpload, "upload"},
	{ErrSubmission, "submission"},
	{ErrBackendExecution, "backend_execution"},
	{ErrNoOutput, "no_output"},
	{ErrTimeout, "timeout"},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a stable label for err suitable for metrics and history rows.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	// Cancellation outranks the marker of the stage that observed it.
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.kind
		}
	}
	return "unknown"
}

// UserMessage renders err as the reason shown to the requester. Only the
// stage-free message part is kept so internal operation names stay in the logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "the service is shutting down"
	case errors.Is(err, ErrTimeout):
		return "the request timed out"
	case errors.Is(err, ErrBackendExecution):
		return "the backend reported an error while running the workflow"
	case errors.Is(err, ErrNoOutput):
		return "no image was produced, check the backend logs"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown error"
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
