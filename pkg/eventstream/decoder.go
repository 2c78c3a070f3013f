package eventstream

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
)

const (
	preludeSize = 12
	crcSize     = 4

	// MinFrameSize is the smallest well-formed frame (empty headers and payload).
	MinFrameSize = preludeSize + crcSize

	// MaxFrameSize bounds the declared frame length. Larger values are treated
	// as corruption and trigger resynchronization.
	MaxFrameSize = 16 * 1024 * 1024

	// NestedContentType marks a frame whose payload is another frame.
	NestedContentType = "application/vnd.amazon.eventstream"

	maxNesting = 4
)

// Upstream event type names.
const (
	EventAssistantResponse = "assistantResponseEvent"
	EventReasoningContent  = "reasoningContentEvent"
	EventToolUse           = "toolUseEvent"
	EventMessageMetadata   = "messageMetadataEvent"
	EventMetering          = "meteringEvent"
	EventContextUsage      = "contextUsageEvent"
)

// Header value type tags.
const (
	headerBoolTrue  = 0
	headerBoolFalse = 1
	headerByte      = 2
	headerInt16     = 3
	headerInt32     = 4
	headerInt64     = 5
	headerBytes     = 6
	headerString    = 7
	headerTimestamp = 8
	headerUUID      = 9
)

// Handler receives decoded events.
type Handler func(Event)

// Decoder is a stateful frame parser. Feed may be called with arbitrary chunk
// boundaries; events are emitted as soon as a frame is complete. A Decoder is
// not safe for concurrent use.
type Decoder struct {
	buf     []byte
	emit    Handler
	logger  *slog.Logger
	toolID  string
	skipped int
}

// NewDecoder returns a Decoder that delivers events to h.
func NewDecoder(h Handler) *Decoder {
	return &Decoder{
		emit:   h,
		logger: slog.Default().With("component", "eventstream"),
	}
}

// Feed appends p to the internal buffer and emits every complete frame.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)

	off := 0
	for len(d.buf)-off >= MinFrameSize {
		total := int(binary.BigEndian.Uint32(d.buf[off:]))
		headersLen := int(binary.BigEndian.Uint32(d.buf[off+4:]))

		if total < MinFrameSize || total > MaxFrameSize || headersLen > total-MinFrameSize {
			off++
			d.skipped++
			continue
		}
		if len(d.buf)-off < total {
			break
		}

		if d.skipped > 0 {
			d.logger.Debug("resynchronized event stream", "skipped_bytes", d.skipped)
			d.skipped = 0
		}
		d.handleFrame(d.buf[off:off+total], 0)
		off += total
	}

	// Retain only the unconsumed tail.
	n := copy(d.buf, d.buf[off:])
	d.buf = d.buf[:n]
}

// Finish closes an open tool call and emits KindComplete. Bytes of an
// incomplete trailing frame are discarded.
func (d *Decoder) Finish() {
	if len(d.buf) > 0 {
		d.logger.Debug("discarding incomplete frame", "bytes", len(d.buf))
		d.buf = d.buf[:0]
	}
	d.endTool()
	d.emit(Complete())
}

// Buffered returns the number of bytes held waiting for a complete frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) handleFrame(frame []byte, depth int) {
	total := len(frame)
	headersLen := int(binary.BigEndian.Uint32(frame[4:]))
	headers := parseHeaders(frame[preludeSize : preludeSize+headersLen])
	payload := frame[preludeSize+headersLen : total-crcSize]

	if headers[":content-type"] == NestedContentType && len(payload) > 0 {
		if depth >= maxNesting {
			return
		}
		if inner, ok := oneFrame(payload); ok {
			d.handleFrame(inner, depth+1)
		}
		return
	}

	payload = inflate(payload)

	switch headers[":message-type"] {
	case "exception", "error":
		msg := gjson.GetBytes(payload, "message").String()
		if msg == "" {
			msg = string(payload)
		}
		if t := headers[":exception-type"]; t != "" {
			msg = t + ": " + msg
		}
		d.emit(Error(msg))
		return
	}

	eventType := headers[":event-type"]
	if eventType == "" || len(payload) == 0 {
		return
	}
	d.dispatch(eventType, payload)
}

// oneFrame validates that p starts with a complete frame and returns it.
func oneFrame(p []byte) ([]byte, bool) {
	if len(p) < MinFrameSize {
		return nil, false
	}
	total := int(binary.BigEndian.Uint32(p))
	headersLen := int(binary.BigEndian.Uint32(p[4:]))
	if total < MinFrameSize || total > len(p) || headersLen > total-MinFrameSize {
		return nil, false
	}
	return p[:total], true
}

func (d *Decoder) dispatch(eventType string, payload []byte) {
	if !gjson.ValidBytes(payload) {
		d.logger.Warn("invalid event payload", "event_type", eventType, "bytes", len(payload))
		return
	}
	doc := gjson.ParseBytes(payload)

	switch eventType {
	case EventAssistantResponse:
		if s := doc.Get("content").String(); s != "" {
			d.emit(Text(s))
		}

	case EventReasoningContent:
		s := doc.Get("content").String()
		if s == "" {
			s = doc.Get("text").String()
		}
		if s != "" {
			d.emit(Reasoning(s))
		}

	case EventToolUse:
		d.handleToolUse(doc)

	case EventMessageMetadata:
		usage := doc.Get("usage")
		if usage.Exists() {
			d.emit(Usage(int(usage.Get("inputTokens").Int()), int(usage.Get("outputTokens").Int())))
		}

	case EventMetering:
		if c := doc.Get("credits").Float(); c > 0 {
			d.emit(Credits(c))
		}

	case EventContextUsage:
		if p := doc.Get("contextUsagePercentage"); p.Exists() {
			d.emit(ContextUsage(p.Float()))
		}

	default:
		d.logger.Debug("ignoring unknown event type", "event_type", eventType)
	}
}

func (d *Decoder) handleToolUse(doc gjson.Result) {
	id := doc.Get("toolUseId").String()
	name := doc.Get("name").String()

	if id != "" && id != d.toolID {
		d.endTool()
		d.toolID = id
		d.emit(ToolStart(id, name))
	}

	if d.toolID == "" {
		return
	}

	if input := doc.Get("input"); input.Exists() {
		fragment := input.String()
		if input.IsObject() || input.IsArray() {
			fragment = input.Raw
		}
		if fragment != "" {
			d.emit(ToolInput(d.toolID, fragment))
		}
	}

	if doc.Get("stop").Bool() {
		d.endTool()
	}
}

func (d *Decoder) endTool() {
	if d.toolID == "" {
		return
	}
	id := d.toolID
	d.toolID = ""
	d.emit(ToolEnd(id))
}

// parseHeaders decodes the header block. Non-string values are skipped. An
// unknown type tag or a truncated value stops parsing.
func parseHeaders(b []byte) map[string]string {
	headers := make(map[string]string, 4)
	off := 0
	for off < len(b) {
		nameLen := int(b[off])
		off++
		if off+nameLen+1 > len(b) {
			return headers
		}
		name := string(b[off : off+nameLen])
		off += nameLen
		typ := b[off]
		off++

		var skip int
		switch typ {
		case headerBoolTrue:
			headers[name] = "true"
			continue
		case headerBoolFalse:
			headers[name] = "false"
			continue
		case headerByte:
			skip = 1
		case headerInt16:
			skip = 2
		case headerInt32:
			skip = 4
		case headerInt64, headerTimestamp:
			skip = 8
		case headerUUID:
			skip = 16
		case headerBytes, headerString:
			if off+2 > len(b) {
				return headers
			}
			n := int(binary.BigEndian.Uint16(b[off:]))
			off += 2
			if off+n > len(b) {
				return headers
			}
			if typ == headerString {
				headers[name] = string(b[off : off+n])
			}
			off += n
			continue
		default:
			return headers
		}
		off += skip
	}
	return headers
}

// inflate returns the decompressed payload when it carries the gzip magic
// bytes, or p unchanged otherwise (including when decompression fails).
func inflate(p []byte) []byte {
	if len(p) < 2 || p[0] != 0x1f || p[1] != 0x8b {
		return p
	}
	zr, err := gzip.NewReader(bytes.NewReader(p))
	if err != nil {
		return p
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return p
	}
	return out
}
