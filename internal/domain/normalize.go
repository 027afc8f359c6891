package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// UnknownID stands in for records that arrive without a usable identifier.
const UnknownID = "unknown-id"

// NormalizeID turns the identifier shapes the backend emits (plain string,
// number, or {"$oid": "..."}) into a plain string. Anything else yields
// UnknownID.
func NormalizeID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return UnknownID
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return UnknownID
		}
		return strings.TrimSpace(s)
	case '{':
		var wrapper struct {
			OID json.RawMessage `json:"$oid"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.OID == nil {
			return UnknownID
		}
		return NormalizeID(wrapper.OID)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return UnknownID
		}
		return n.String()
	}
}

// NormalizeTime accepts RFC 3339 strings, epoch milliseconds and
// {"$date": ...} wrappers (whose value may itself be {"$numberLong": "..."}).
func NormalizeTime(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), true
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return time.Time{}, false
	case '{':
		var wrapper struct {
			Date       json.RawMessage `json:"$date"`
			NumberLong json.RawMessage `json:"$numberLong"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return time.Time{}, false
		}
		if wrapper.Date != nil {
			return NormalizeTime(wrapper.Date)
		}
		if wrapper.NumberLong != nil {
			return NormalizeTime(wrapper.NumberLong)
		}
		return time.Time{}, false
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return time.Time{}, false
		}
		ms, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return time.Time{}, false
			}
			ms = int64(f)
		}
		return time.UnixMilli(ms).UTC(), true
	}
}
