// Package chat turns inbound stream events into the room transcript and
// tracks whether an assistant reply is pending.
package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Shape records where the message body sat in the inbound payload.
type Shape int

const (
	// ShapeFlat carries the message fields at the top level.
	ShapeFlat Shape = iota
	// ShapeMessage nests the fields in an object under "message".
	ShapeMessage
	// ShapeData nests the fields in an object under "data".
	ShapeData
)

func (s Shape) String() string {
	switch s {
	case ShapeMessage:
		return "message"
	case ShapeData:
		return "data"
	default:
		return "flat"
	}
}

// Envelope is an inbound event resolved once at the transport boundary.
type Envelope struct {
	Shape Shape

	ID         string // empty when the payload had no usable id
	IsAI       bool
	Text       string
	Timestamp  time.Time // zero when absent or unparseable
	SenderName string
	Avatar     string
}

var errNotObject = errors.New("payload is not a JSON object")

// Decode resolves the payload shape and extracts the message fields.
func Decode(raw []byte) (Envelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return Envelope{}, errNotObject
	}

	env := Envelope{Shape: ShapeFlat}
	fields := top
	if inner, ok := objectField(top, "message"); ok {
		env.Shape, fields = ShapeMessage, inner
	} else if inner, ok := objectField(top, "data"); ok {
		env.Shape, fields = ShapeData, inner
	}

	env.ID = scalar(fields["id"])
	env.IsAI = flag(fields, "is_ai", "is_assistant")
	env.Text = firstString(fields, "text", "message", "content")
	env.Timestamp = timestamp(fields, "timestamp", "created_at")
	env.SenderName = firstString(fields, "sender_name", "display_name")
	env.Avatar = firstString(fields, "avatar")
	return env, nil
}

func objectField(m map[string]json.RawMessage, key string) (map[string]json.RawMessage, bool) {
	raw, ok := m[key]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, false
	}
	return inner, true
}

// scalar renders a JSON string or number as a string.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		var s string
		if raw, ok := m[k]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func flag(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		var b bool
		if raw, ok := m[k]; ok && json.Unmarshal(raw, &b) == nil {
			return b
		}
	}
	return false
}

func timestamp(m map[string]json.RawMessage, keys ...string) time.Time {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return unixTime(n)
			}
			continue
		}
		var f float64
		if json.Unmarshal(raw, &f) == nil {
			return unixTime(int64(f))
		}
	}
	return time.Time{}
}

// unixTime accepts seconds or milliseconds.
func unixTime(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
