package history

import (
	"strings"
	"testing"
	"time"

	"github.com/diogo/streamchat/internal/models"
)

// seedStore creates conversations titled in order; the last one is newest
func seedStore(t *testing.T, titles ...string) (*Store, []*Conversation) {
	t.Helper()
	store := newTestStore(t)
	var convs []*Conversation
	for _, title := range titles {
		conv, err := store.CreateConversation("", "")
		if err != nil {
			t.Fatalf("CreateConversation failed: %v", err)
		}
		if err := store.UpdateTitle(conv.ID, title); err != nil {
			t.Fatalf("UpdateTitle failed: %v", err)
		}
		convs = append(convs, conv)
		time.Sleep(10 * time.Millisecond)
	}
	return store, convs
}

func TestResolver_Resolve(t *testing.T) {
	store, convs := seedStore(t, "Go generics", "Python typing", "Go modules")
	resolver := NewResolver(store)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr string
	}{
		{name: "@last", ref: "@last", want: convs[2].ID},
		{name: "@LAST case-insensitive", ref: "@LAST", want: convs[2].ID},
		{name: "@first", ref: "@first", want: convs[0].ID},
		{name: "index 1 is newest", ref: "1", want: convs[2].ID},
		{name: "index 3", ref: "3", want: convs[0].ID},
		{name: "index out of range", ref: "4", wantErr: "out of range"},
		{name: "index zero", ref: "0", wantErr: "out of range"},
		{name: "full id", ref: convs[1].ID, want: convs[1].ID},
		{name: "id prefix", ref: ShortID(convs[1].ID), want: convs[1].ID},
		{name: "unknown id", ref: "6f1c2a9e-0000-4000-8000-000000000000", wantErr: "not found"},
		{name: "title substring", ref: "python", want: convs[1].ID},
		{name: "ambiguous substring", ref: "go", wantErr: "multiple conversations"},
		{name: "no match", ref: "rust", wantErr: "no conversation matching"},
		{name: "empty", ref: "  ", wantErr: "empty reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(tt.ref)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Resolve(%q) error = %v, want containing %q", tt.ref, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.ref, got, tt.want)
			}
		})
	}
}

func TestResolver_PinnedIsIndexOne(t *testing.T) {
	store, convs := seedStore(t, "old", "new")
	_ = store.SetPinned(convs[0].ID, true)

	id, err := NewResolver(store).Resolve("1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id != convs[0].ID {
		t.Errorf("index 1 = %s, want pinned %s", id, convs[0].ID)
	}
}

func TestResolver_AliasesIgnorePins(t *testing.T) {
	store, convs := seedStore(t, "old", "middle", "new")
	if err := store.SetPinned(convs[0].ID, true); err != nil {
		t.Fatalf("SetPinned failed: %v", err)
	}
	resolver := NewResolver(store)

	last, err := resolver.Resolve("@last")
	if err != nil {
		t.Fatalf("Resolve(@last) failed: %v", err)
	}
	if last != convs[2].ID {
		t.Errorf("@last = %s, want most recent %s", ShortID(last), ShortID(convs[2].ID))
	}

	first, err := resolver.Resolve("@first")
	if err != nil {
		t.Fatalf("Resolve(@first) failed: %v", err)
	}
	if first != convs[0].ID {
		t.Errorf("@first = %s, want oldest %s", ShortID(first), ShortID(convs[0].ID))
	}
}

func TestResolver_NoConversations(t *testing.T) {
	resolver := NewResolver(newTestStore(t))
	if _, err := resolver.Resolve("@last"); err == nil {
		t.Error("expected error with no conversations")
	}
}

func TestResolver_ResolveWithInfo(t *testing.T) {
	store, convs := seedStore(t, "only")
	_ = store.SaveMessages(convs[0].ID, "", []models.Message{models.NewMessage(models.RoleUser, "hello")})

	conv, err := NewResolver(store).ResolveWithInfo("@last")
	if err != nil {
		t.Fatalf("ResolveWithInfo failed: %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(conv.Messages))
	}
	if err := NewResolver(store).ValidateRef("nope"); err == nil {
		t.Error("ValidateRef should reject an unknown title")
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("ShortID = %s", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("ShortID = %s", got)
	}
}

func TestListAliases(t *testing.T) {
	aliases := ListAliases()
	for _, want := range []string{"@last", "@first", "<id>"} {
		if !strings.Contains(aliases, want) {
			t.Errorf("ListAliases() missing %q", want)
		}
	}
}
