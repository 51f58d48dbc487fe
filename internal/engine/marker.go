package engine

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"modeld/pkg/types"
)

const (
	toolCallOpen  = "<tool_call>"
	toolCallClose = "</tool_call>"
)

// delimScanner finds a literal delimiter across a stream of text pieces
// that may split it at any byte boundary (a BPE tokenizer is not obliged to
// emit a marker as a single piece). It forwards text as soon as it can no
// longer be part of a pending match, holding back at most len(delim)-1
// bytes between calls.
type delimScanner struct {
	delim string
	buf   strings.Builder
}

func newDelimScanner(delim string) *delimScanner {
	return &delimScanner{delim: delim}
}

// Feed appends piece and returns (forward, matched). forward is text that is
// now confirmed not to participate in the delimiter and should be emitted;
// matched reports whether the delimiter was just completed, in which case
// the scanner's internal buffer has been reset to whatever followed it.
func (d *delimScanner) Feed(piece string) (forward string, matched bool) {
	d.buf.WriteString(piece)
	s := d.buf.String()
	if idx := strings.Index(s, d.delim); idx >= 0 {
		forward = s[:idx]
		rest := s[idx+len(d.delim):]
		d.buf.Reset()
		d.buf.WriteString(rest)
		return forward, true
	}
	keep := len(d.delim) - 1
	if len(s) > keep {
		forward = s[:len(s)-keep]
		d.buf.Reset()
		d.buf.WriteString(s[len(s)-keep:])
	}
	return forward, false
}

// Flush returns and clears whatever text remains buffered, unmatched.
func (d *delimScanner) Flush() string {
	s := d.buf.String()
	d.buf.Reset()
	return s
}

// toolCallDetector implements §4.4's non-overlapping marker invariant: an
// open marker must be closed before another opens, text outside markers is
// forwarded verbatim, text inside is buffered until the closing marker.
type toolCallDetector struct {
	open    bool
	outside *delimScanner
	inside  *delimScanner
	payload strings.Builder
}

func newToolCallDetector() *toolCallDetector {
	return &toolCallDetector{outside: newDelimScanner(toolCallOpen)}
}

// toolCallResult is what Feed reports for one incoming piece.
type toolCallResult struct {
	forwardText string     // text to emit as a token event, if any
	closedCall  *types.ToolCall // non-nil if a tool call was just parsed
}

func (d *toolCallDetector) Feed(piece string) toolCallResult {
	if !d.open {
		forward, matched := d.outside.Feed(piece)
		if matched {
			d.open = true
			d.inside = newDelimScanner(toolCallClose)
		}
		return toolCallResult{forwardText: forward}
	}
	forward, matched := d.inside.Feed(piece)
	d.payload.WriteString(forward)
	if !matched {
		return toolCallResult{}
	}
	d.open = false
	payload := d.payload.String()
	d.payload.Reset()
	tc, ok := parseToolCall(payload)
	if !ok {
		return toolCallResult{}
	}
	return toolCallResult{closedCall: &tc}
}

// FlushAtEndOfGeneration is called only on the EOG decode branch: any
// pending tool-call buffer (open marker never closed) is flushed as a
// tool_call event if it parses.
func (d *toolCallDetector) FlushAtEndOfGeneration() (*types.ToolCall, bool) {
	if !d.open {
		return nil, false
	}
	d.payload.WriteString(d.inside.Flush())
	payload := d.payload.String()
	d.payload.Reset()
	d.open = false
	tc, ok := parseToolCall(payload)
	if !ok {
		return nil, false
	}
	return &tc, true
}

// FlushTrailingText returns any text held back outside a marker (a false
// start that never matched) so it is not silently dropped at stream end.
func (d *toolCallDetector) FlushTrailingText() string {
	if d.open {
		return ""
	}
	return d.outside.Flush()
}

// parseToolCall parses the buffered payload per §6's wire format:
// {"name":"<tool_name>","arguments":"<json_string_or_object>"}. name is
// required; arguments may be a JSON object (re-serialized as a string) or a
// string literal (used as-is), defaulting to "{}". Unparseable payloads are
// silently discarded.
func parseToolCall(payload string) (types.ToolCall, bool) {
	var raw struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return types.ToolCall{}, false
	}
	if strings.TrimSpace(raw.Name) == "" {
		return types.ToolCall{}, false
	}
	args := "{}"
	if len(raw.Arguments) > 0 {
		var asString string
		if err := json.Unmarshal(raw.Arguments, &asString); err == nil {
			args = asString
		} else {
			var asObject map[string]any
			if err := json.Unmarshal(raw.Arguments, &asObject); err == nil {
				if b, err := json.Marshal(asObject); err == nil {
					args = string(b)
				}
			}
		}
	}
	return types.ToolCall{ID: uuid.NewString(), Name: raw.Name, Arguments: args}, true
}
