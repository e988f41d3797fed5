package runner

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/subspace-cli/subspace/internal/logging"
)

// agentMessageQuery selects the text of completed assistant messages.
const agentMessageQuery = `select(.type == "item.completed" and .item.type == "agent_message") | .item.text | strings`

var agentMessages = mustCompile(agentMessageQuery)

func mustCompile(src string) *gojq.Code {
	query, err := gojq.Parse(src)
	if err != nil {
		panic(err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		panic(err)
	}
	return code
}

// ExtractMessages joins the text of every assistant message in lines with
// blank lines. Lines that are not JSON or not messages are ignored.
func ExtractMessages(lines [][]byte) string {
	var messages []string
	for _, line := range lines {
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			continue
		}
		iter := agentMessages.Run(v)
		for {
			out, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := out.(error); ok {
				logging.Debug().Err(err).Msg("skipping event")
				break
			}
			if text, ok := out.(string); ok && text != "" {
				messages = append(messages, text)
			}
		}
	}
	return strings.Join(messages, "\n\n")
}

// Event converts one stdout line to a JSON value. Non-JSON lines become a
// JSON string so consumers always receive valid JSON.
func Event(line []byte) json.RawMessage {
	if json.Valid(line) {
		return json.RawMessage(append([]byte(nil), line...))
	}
	quoted, _ := json.Marshal(string(line))
	return quoted
}

// lineWriter splits a byte stream into trimmed, non-empty lines. Lines may be
// any length.
type lineWriter struct {
	buf  []byte
	emit func([]byte)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.line(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing line that had no newline.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.line(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) line(b []byte) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return
	}
	w.emit(append([]byte(nil), b...))
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
