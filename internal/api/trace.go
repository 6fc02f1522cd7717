package api

import (
	"context"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/streamchat/internal/errors"
)

type traceRequest struct {
	RunID string `json:"run_id"`
}

// Trace returns the URL of the run trace for runID
func (c *Client) Trace(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		return "", apierrors.ErrNoRunID
	}

	resp, err := c.do(ctx, http.MethodPost, EndpointTrace, traceRequest{RunID: runID})
	if err != nil {
		return "", err
	}
	body, err := readAll(resp, EndpointTrace)
	if err != nil {
		return "", err
	}

	return parseTraceResponse(resp.StatusCode, body)
}

// parseTraceResponse accepts either a JSON string (the URL) or an object
// carrying code and result
func parseTraceResponse(status int, body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", apierrors.NewParseError("empty trace response", "")
	}

	if !gjson.Valid(trimmed) {
		if isSuccess(status) && looksLikeURL(trimmed) {
			return trimmed, nil
		}
		return "", apierrors.NewAPIErrorWithBody(status, EndpointTrace, "invalid trace response", trimmed)
	}

	parsed := gjson.Parse(trimmed)
	switch {
	case parsed.Type == gjson.String:
		if url := strings.TrimSpace(parsed.Str); url != "" {
			return url, nil
		}
		return "", apierrors.NewParseError("trace url is empty", trimmed)

	case parsed.IsObject():
		code := int(parsed.Get(PathCode).Int())
		result := parsed.Get(PathResult)
		if code == CodeNoSession {
			return "", apierrors.ErrNoChatSession
		}
		if code == CodeOK && result.Type == gjson.String && result.Str != "" {
			return result.Str, nil
		}
		message := result.String()
		if message == "" {
			message = "trace request failed"
		}
		return "", apierrors.NewAPIErrorWithBody(code, EndpointTrace, message, trimmed)
	}

	return "", apierrors.NewParseError("unexpected trace response", trimmed)
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
