package stream

import (
	"bytes"
	"html"
	"log/slog"
	"strings"

	"github.com/diogo/streamchat/internal/logging"
	"github.com/diogo/streamchat/internal/models"
)

// Formatter renders the accumulated markdown text
type Formatter interface {
	HTML(text string) (string, error)
}

// Snapshot is the state of a streamed response after a chunk
type Snapshot struct {
	Text    string
	HTML    string
	RunID   string
	Sources []models.Source
	Chunks  int
	Done    bool
}

// Accumulator concatenates token fragments and re-renders the whole
// buffer after every chunk. It is not safe for concurrent use.
type Accumulator struct {
	formatter Formatter
	logger    *slog.Logger

	text      strings.Builder
	html      string
	runID     string
	sources   []models.Source
	pending   []byte // partial line carried to the next chunk
	chunks    int
	malformed int
	done      bool
}

// NewAccumulator creates an accumulator that renders through f
func NewAccumulator(f Formatter) *Accumulator {
	return &Accumulator{
		formatter: f,
		logger:    logging.With("stream"),
	}
}

// Write consumes one raw chunk of the body. Complete lines are applied in
// order; a trailing partial line waits for the next chunk.
func (a *Accumulator) Write(chunk []byte) Snapshot {
	a.chunks++

	data := chunk
	if len(a.pending) > 0 {
		data = append(a.pending, chunk...)
		a.pending = nil
	}

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		a.applyLine(data[:idx])
		data = data[idx+1:]
	}
	if len(bytes.TrimSpace(data)) > 0 {
		a.pending = append([]byte(nil), data...)
	}

	a.render()
	return a.Snapshot()
}

// Flush applies any unterminated final line and marks the stream done
func (a *Accumulator) Flush() Snapshot {
	if len(a.pending) > 0 {
		a.applyLine(a.pending)
		a.pending = nil
		a.render()
	}
	a.done = true
	if a.malformed > 0 {
		a.logger.Warn("stream finished with malformed lines", "count", a.malformed)
	}
	return a.Snapshot()
}

// Snapshot returns the current state without consuming input
func (a *Accumulator) Snapshot() Snapshot {
	var sources []models.Source
	if a.sources != nil {
		sources = make([]models.Source, len(a.sources))
		copy(sources, a.sources)
	}
	return Snapshot{
		Text:    a.text.String(),
		HTML:    a.html,
		RunID:   a.runID,
		Sources: sources,
		Chunks:  a.chunks,
		Done:    a.done,
	}
}

// Malformed returns how many lines could not be decoded
func (a *Accumulator) Malformed() int {
	return a.malformed
}

func (a *Accumulator) applyLine(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	ev, err := ParseLine(line)
	if err != nil {
		a.malformed++
		a.logger.Debug("skipping malformed line", "error", err)
		return
	}

	switch ev.Kind {
	case EventToken:
		a.text.WriteString(ev.Token)
	case EventRunID:
		a.runID = ev.RunID
	case EventSources:
		a.sources = ev.Sources
	default:
		a.logger.Debug("ignoring line with unknown shape")
	}
}

// render reparses the full buffer; markdown is not rendered incrementally
func (a *Accumulator) render() {
	text := a.text.String()
	if a.formatter == nil {
		a.html = html.EscapeString(text)
		return
	}
	out, err := a.formatter.HTML(text)
	if err != nil {
		a.logger.Warn("markdown render failed, falling back to escaped text", "error", err)
		out = html.EscapeString(text)
	}
	a.html = out
}
