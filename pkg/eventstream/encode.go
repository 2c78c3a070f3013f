package eventstream

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sort"
)

// Header is a string-typed frame header.
type Header struct {
	Name  string
	Value string
}

// EncodeFrame builds a single frame with string headers and the given
// payload, including both CRC fields. It is used by the mock upstream and in
// tests to produce byte-exact input for the Decoder.
func EncodeFrame(headers []Header, payload []byte) []byte {
	var hb bytes.Buffer
	for _, h := range headers {
		hb.WriteByte(byte(len(h.Name)))
		hb.WriteString(h.Name)
		hb.WriteByte(headerString)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(h.Value)))
		hb.Write(l[:])
		hb.WriteString(h.Value)
	}

	total := preludeSize + hb.Len() + len(payload) + crcSize
	out := make([]byte, 0, total)
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	out = binary.BigEndian.AppendUint32(out, uint32(hb.Len()))
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[:8]))
	out = append(out, hb.Bytes()...)
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
	return out
}

// EncodeEvent builds an event frame for the given event type and JSON payload.
func EncodeEvent(eventType string, payload []byte) []byte {
	return EncodeFrame([]Header{
		{Name: ":event-type", Value: eventType},
		{Name: ":content-type", Value: "application/json"},
		{Name: ":message-type", Value: "event"},
	}, payload)
}

// EncodeHeaders is like EncodeFrame but takes a map, emitted in name order.
func EncodeHeaders(headers map[string]string, payload []byte) []byte {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	hs := make([]Header, 0, len(names))
	for _, n := range names {
		hs = append(hs, Header{Name: n, Value: headers[n]})
	}
	return EncodeFrame(hs, payload)
}
