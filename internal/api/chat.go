package api

import (
	"context"
	"strings"

	http "github.com/bogdanfinn/fhttp"

	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/models"
	"github.com/diogo/streamchat/internal/stream"
)

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message        string        `json:"message"`
	History        []models.Turn `json:"history"`
	ConversationID string        `json:"conversation_id"`
}

// Chat submits a message and returns a reader over the streamed answer.
// The reader owns the response body.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*stream.Reader, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apierrors.ErrEmptyMessage
	}
	if req.History == nil {
		req.History = []models.Turn{}
	}

	resp, err := c.do(ctx, http.MethodPost, EndpointChat, req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp, EndpointChat, "chat request failed")
	}
	if resp.Body == nil {
		return nil, apierrors.NewAPIError(resp.StatusCode, EndpointChat, "empty response body")
	}

	c.logger.Debug("chat stream opened",
		"conversation_id", req.ConversationID,
		"history", len(req.History),
		"status", resp.StatusCode,
	)

	return stream.NewReader(resp.Body, c.formatter, stream.WithEndpoint(EndpointChat)), nil
}
