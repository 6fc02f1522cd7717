package models

import (
	"encoding/json"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"assistant", RoleAssistant, false},
		{"system", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewMessage(t *testing.T) {
	a := NewMessage(RoleUser, "hello")
	b := NewMessage(RoleUser, "hello")

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.IsAssistant() {
		t.Error("user message reported as assistant")
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestSourceLabel(t *testing.T) {
	if got := (Source{URL: "https://a"}).Label(); got != "https://a" {
		t.Errorf("Label() = %q", got)
	}
	if got := (Source{URL: "https://a", Title: "A"}).Label(); got != "A" {
		t.Errorf("Label() = %q", got)
	}
}

func TestTurnWireFormat(t *testing.T) {
	data, err := json.Marshal(Turn{Human: "q", AI: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"human":"q","ai":"a"}` {
		t.Errorf("unexpected wire format: %s", data)
	}
}
