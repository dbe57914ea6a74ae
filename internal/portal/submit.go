package portal

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const applyPathFormat = "/api/jobs/%s/apply"

type submitResponse struct {
	Success       bool   `json:"success"`
	ReceiptID     string `json:"receipt_id"`
	ApplicationID string `json:"application_id"`
	Error         string `json:"error"`
}

// SubmitResult is the resolved verdict of one submission attempt.
type SubmitResult struct {
	Outcome Outcome
	Receipt *Receipt
	// Reason explains rejected and error outcomes.
	Reason string
}

// Submit sends one application to the portal and maps the response onto the
// submission contract: accepted and rejected are terminal, everything else is
// a transient error. The attempt itself is never retried here.
func (c *Client) Submit(ctx context.Context, jobID string, app *Application) (*SubmitResult, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	url := fmt.Sprintf("%s"+applyPathFormat, c.APIURL, jobID)

	var parsed submitResponse
	code, err := c.postJSON(ctx, url, app, &parsed)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &SubmitResult{Outcome: OutcomeError, Reason: err.Error()}, nil
	}

	switch {
	case (code == http.StatusOK || code == http.StatusCreated) && parsed.Success:
		c.logger.Debug("application accepted",
			zap.String("job_id", jobID),
			zap.String("receipt_id", parsed.ReceiptID),
		)
		return &SubmitResult{
			Outcome: OutcomeAccepted,
			Receipt: &Receipt{ID: parsed.ReceiptID, ApplicationID: parsed.ApplicationID},
		}, nil
	case code == http.StatusUnprocessableEntity || code == http.StatusConflict:
		// The portal explicitly refused this application; treating it as
		// terminal prevents re-submitting it forever.
		reason := parsed.Error
		if reason == "" {
			reason = fmt.Sprintf("portal rejected the application (status %d)", code)
		}
		return &SubmitResult{Outcome: OutcomeRejected, Reason: reason}, nil
	default:
		reason := parsed.Error
		if reason == "" {
			reason = fmt.Sprintf("unexpected portal status %d", code)
		}
		return &SubmitResult{Outcome: OutcomeError, Reason: reason}, nil
	}
}
