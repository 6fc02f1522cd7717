// Package models contains the data types exchanged with the chat service.
package models

import "fmt"

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultFeedbackKey is the feedback key used when none is configured
const DefaultFeedbackKey = "user_score"

// Feedback scores
const (
	ScoreNegative = 0
	ScorePositive = 1
)

// ParseRole validates a role name
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Label returns the display label for the role
func (r Role) Label() string {
	if r == RoleAssistant {
		return "Assistant"
	}
	return "You"
}
