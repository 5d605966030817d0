package mona

import (
	"context"
	"encoding/json"
	"fmt"
)

// ExportResult summarizes an ExportBatch call.
type ExportResult struct {
	// Total is the number of messages in the batch.
	Total int `json:"total"`

	// Sent is the number of messages the backend accepted.
	Sent int `json:"sent"`

	// Failed is the number of messages that failed validation or delivery.
	Failed int `json:"failed"`

	// FailureReasons maps failed messages to the reason each one failed, as
	// reported by the backend, or holds a single string when the whole
	// batch was rejected.
	FailureReasons any `json:"failure_reasons,omitempty"`
}

// exportEnvelope is the rest-api request body.
type exportEnvelope struct {
	UserID   string        `json:"userId"`
	Messages []wireMessage `json:"messages"`
}

// exportRejection is the rest-api response body for a partially or fully
// rejected batch.
type exportRejection struct {
	Failed         int `json:"failed"`
	FailureReasons any `json:"failure_reasons"`
}

// Export sends a single message. It returns an ExportError when the message
// was rejected, with the backend's reason when one was reported.
func (c *Client) Export(ctx context.Context, message SingleMessage) error {
	result, err := c.ExportBatch(ctx, []SingleMessage{message})
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return &ExportError{Message: fmt.Sprintf("message rejected: %v", result.FailureReasons)}
	}
	return nil
}

// ExportBatch sends a batch of messages in one request and reports how many
// were accepted. A non-nil error means the batch never reached the backend;
// per-message rejections are reported through the result instead.
func (c *Client) ExportBatch(ctx context.Context, messages []SingleMessage) (*ExportResult, error) {
	if len(messages) == 0 {
		return &ExportResult{}, nil
	}
	for i, m := range messages {
		if m.ContextClass == "" {
			return nil, &ExportError{Message: fmt.Sprintf("message %d has no context class", i)}
		}
		if err := validateInnerMessage(m.Message); err != nil {
			return nil, &ExportError{Message: fmt.Sprintf("message %d: %v", i, err)}
		}
	}

	if err := c.auth.Guard(ctx); err != nil {
		return nil, err
	}
	tenant, err := c.tenantID()
	if err != nil {
		return nil, &ExportError{Message: fmt.Sprintf("resolving tenant id: %v", err)}
	}

	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, m.wire())
	}

	status, body, err := c.postJSON(ctx, c.exportURL(tenant), exportEnvelope{
		UserID:   tenant,
		Messages: wire,
	})
	if err != nil {
		return nil, &ExportError{Message: fmt.Sprintf("cannot connect to rest-api: %v", err)}
	}

	result := buildExportResult(status, body, len(messages))
	if result.Failed > 0 {
		c.logger.Warn("some messages did not pass validation",
			"total", result.Total, "failed", result.Failed)
	} else {
		c.logger.Info("batch sent", "total", result.Total)
	}
	return result, nil
}

// buildExportResult folds the rest-api response into per-batch counters. An
// unparseable rejection counts the whole batch as failed.
func buildExportResult(status int, body []byte, total int) *ExportResult {
	result := &ExportResult{Total: total, Sent: total}
	if status >= 200 && status < 300 {
		return result
	}

	var rejection exportRejection
	if err := json.Unmarshal(body, &rejection); err != nil || rejection.Failed == 0 {
		result.Failed = total
		result.Sent = 0
		result.FailureReasons = "failed to send the batch to Mona's servers"
		return result
	}
	// A failure count beyond the batch size would drive Sent negative.
	result.Failed = min(rejection.Failed, total)
	result.Sent = total - result.Failed
	result.FailureReasons = rejection.FailureReasons
	return result
}

// validateInnerMessage rejects field payloads that cannot be serialized to a
// JSON object before any network round trip.
func validateInnerMessage(fields map[string]any) error {
	if fields == nil {
		return nil
	}
	if _, err := json.Marshal(fields); err != nil {
		return fmt.Errorf("message fields are not JSON serializable: %w", err)
	}
	return nil
}
