// Package api provides the chat service client.
package api

// Service endpoints, relative to the base URL.
const (
	DefaultBaseURL = "http://localhost:8080"

	EndpointChat     = "/chat"
	EndpointFeedback = "/feedback"
	EndpointTrace    = "/get_trace"
)

// GJSON paths for fields in service responses.
const (
	PathCode   = "code"
	PathResult = "result"
)

// CodeOK marks a successful feedback or trace response
const CodeOK = 200

// CodeNoSession is returned by get_trace when the run is unknown
const CodeNoSession = 400

// DefaultHeaders returns the headers sent with every request
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/x-ndjson, application/json",
		"User-Agent":   "streamchat",
	}
}
