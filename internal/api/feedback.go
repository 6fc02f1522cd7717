package api

import (
	"context"
	"fmt"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/models"
)

// FeedbackRequest is the body of POST and PATCH /feedback
type FeedbackRequest struct {
	Score      int    `json:"score"`
	RunID      string `json:"run_id"`
	Key        string `json:"key"`
	FeedbackID string `json:"feedback_id"`
	Comment    string `json:"comment"`
}

// NewFeedbackRequest builds a request from a stored feedback record
func NewFeedbackRequest(fb models.Feedback) FeedbackRequest {
	key := fb.Key
	if key == "" {
		key = models.DefaultFeedbackKey
	}
	return FeedbackRequest{
		Score:      fb.Score,
		RunID:      fb.RunID,
		Key:        key,
		FeedbackID: fb.FeedbackID,
		Comment:    fb.Comment,
	}
}

// SubmitFeedback records a new score for a run
func (c *Client) SubmitFeedback(ctx context.Context, fb FeedbackRequest) error {
	return c.sendFeedback(ctx, http.MethodPost, fb)
}

// UpdateFeedback amends a record created earlier with the same feedback id
func (c *Client) UpdateFeedback(ctx context.Context, fb FeedbackRequest) error {
	return c.sendFeedback(ctx, http.MethodPatch, fb)
}

func (c *Client) sendFeedback(ctx context.Context, method string, fb FeedbackRequest) error {
	if fb.RunID == "" {
		return apierrors.ErrNoRunID
	}
	if fb.FeedbackID == "" {
		return fmt.Errorf("feedback id cannot be empty")
	}
	if fb.Key == "" {
		fb.Key = models.DefaultFeedbackKey
	}

	resp, err := c.do(ctx, method, EndpointFeedback, fb)
	if err != nil {
		return err
	}
	body, err := readAll(resp, EndpointFeedback)
	if err != nil {
		return err
	}

	// The service reports the outcome in the body; a non-2xx status without
	// a code field is a transport-level failure.
	code := gjson.GetBytes(body, PathCode)
	if !code.Exists() {
		if !isSuccess(resp.StatusCode) {
			return apierrors.NewAPIErrorWithBody(resp.StatusCode, EndpointFeedback, "feedback request failed", string(body))
		}
		return apierrors.NewParseError("feedback response has no code", string(body))
	}

	if int(code.Int()) != CodeOK {
		result := strings.TrimSpace(gjson.GetBytes(body, PathResult).String())
		return apierrors.NewFeedbackError(int(code.Int()), result)
	}

	c.logger.Debug("feedback recorded",
		"method", method,
		"run_id", fb.RunID,
		"feedback_id", fb.FeedbackID,
		"score", fb.Score,
	)
	return nil
}
