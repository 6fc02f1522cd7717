// Package stream turns the newline-delimited JSON body of a chat response
// into progressively rendered message snapshots.
package stream

import (
	"bytes"

	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/streamchat/internal/errors"
	"github.com/diogo/streamchat/internal/models"
)

// Wire keys; each line carries exactly one of them
const (
	KeyToken   = "tok"
	KeyRunID   = "run_id"
	KeySources = "sources"
)

// EventKind identifies the shape of a stream line
type EventKind int

const (
	EventUnknown EventKind = iota
	EventToken
	EventRunID
	EventSources
)

func (k EventKind) String() string {
	switch k {
	case EventToken:
		return "token"
	case EventRunID:
		return "run_id"
	case EventSources:
		return "sources"
	default:
		return "unknown"
	}
}

// Event is one decoded stream line
type Event struct {
	Kind    EventKind
	Token   string
	RunID   string
	Sources []models.Source
}

// ParseLine decodes a single JSON line. Lines with none of the known keys
// decode to EventUnknown without error.
func ParseLine(line []byte) (Event, error) {
	line = bytes.TrimSpace(line)
	if !gjson.ValidBytes(line) {
		return Event{}, apierrors.NewParseError("invalid JSON line", string(line))
	}

	obj := gjson.ParseBytes(line)
	if !obj.IsObject() {
		return Event{}, apierrors.NewParseError("stream line is not an object", string(line))
	}

	if tok := obj.Get(KeyToken); tok.Exists() {
		return Event{Kind: EventToken, Token: tok.String()}, nil
	}
	if runID := obj.Get(KeyRunID); runID.Exists() {
		return Event{Kind: EventRunID, RunID: runID.String()}, nil
	}
	if sources := obj.Get(KeySources); sources.Exists() {
		if sources.Type != gjson.Null && !sources.IsArray() {
			return Event{}, apierrors.NewParseError("sources is not a list", string(line))
		}
		return Event{Kind: EventSources, Sources: parseSources(sources)}, nil
	}

	return Event{Kind: EventUnknown}, nil
}

// parseSources reads a list of source objects; bare strings are taken as URLs
func parseSources(list gjson.Result) []models.Source {
	sources := []models.Source{}
	list.ForEach(func(_, item gjson.Result) bool {
		switch {
		case item.Type == gjson.String:
			sources = append(sources, models.Source{URL: item.String()})
		case item.IsObject():
			src := models.Source{
				URL:   item.Get("url").String(),
				Title: item.Get("title").String(),
			}
			item.ForEach(func(key, value gjson.Result) bool {
				k := key.String()
				if k == "url" || k == "title" {
					return true
				}
				if src.Metadata == nil {
					src.Metadata = make(map[string]any)
				}
				src.Metadata[k] = value.Value()
				return true
			})
			sources = append(sources, src)
		}
		return true
	})
	return sources
}
