package orders

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dineqr/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrInvalidPayload = errors.New("order payload must be an object or an array of objects")

// Record is an order as received on the wire, keyed by JSON field name. Field
// presence matters: a partial update only carries the fields it changes.
type Record map[string]json.RawMessage

// idFields are tried in order when looking for a record's identifier.
var idFields = []string{"_id", "id", "orderId"}

var timeFields = []string{"createdAt", "updatedAt"}

var (
	flagFields   = []string{"orderCancelled", "orderAccepted", "orderDelivered"}
	stringFields = []string{"hotelKey", "orderType", "paymentStatus"}
)

// ParseRecords decodes a single order or a batch and normalizes every record.
func ParseRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrInvalidPayload
	}

	switch data[0] {
	case '{':
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		return []Record{Normalize(rec)}, nil
	case '[':
		var batch []Record
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("decode order batch: %w", err)
		}
		records := make([]Record, 0, len(batch))
		for _, rec := range batch {
			if rec == nil {
				continue
			}
			records = append(records, Normalize(rec))
		}
		return records, nil
	default:
		return nil, ErrInvalidPayload
	}
}

// Normalize returns a copy of rec with a plain-string "_id", timestamps
// rewritten as RFC 3339 and a string table number. Numeric strings in
// portions and "true"/"false" strings in the status flags are coerced.
// Fields that cannot be normalized are dropped so they never overwrite good
// data in a merge.
func Normalize(rec Record) Record {
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}

	id := domain.UnknownID
	for _, field := range idFields {
		if raw, ok := rec[field]; ok {
			if candidate := domain.NormalizeID(raw); candidate != domain.UnknownID {
				id = candidate
				break
			}
		}
	}
	delete(out, "id")
	delete(out, "orderId")
	out["_id"] = quote(id)

	for _, field := range timeFields {
		raw, ok := out[field]
		if !ok {
			continue
		}
		if t, ok := domain.NormalizeTime(raw); ok {
			out[field] = quote(t.Format(time.RFC3339Nano))
		} else {
			delete(out, field)
		}
	}

	if raw, ok := out["tableNumber"]; ok {
		if table := tableNumber(raw); table != "" {
			out["tableNumber"] = quote(table)
		} else {
			delete(out, "tableNumber")
		}
	}

	for _, field := range flagFields {
		raw, ok := out[field]
		if !ok {
			continue
		}
		if v, ok := flag(raw); ok {
			out[field] = json.RawMessage(strconv.FormatBool(v))
		} else {
			delete(out, field)
		}
	}

	for _, field := range stringFields {
		if raw, ok := out[field]; ok && !isString(raw) {
			delete(out, field)
		}
	}

	if raw, ok := out["orderedBy"]; ok {
		var by domain.OrderedBy
		if err := json.Unmarshal(raw, &by); err != nil {
			delete(out, "orderedBy")
		}
	}

	if raw, ok := out["items"]; ok {
		if items, ok := normalizeItems(raw); ok {
			out["items"] = items
		} else {
			delete(out, "items")
		}
	}

	return out
}

func normalizeItems(raw json.RawMessage) (json.RawMessage, bool) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		if name, ok := item["name"]; ok && !isString(name) {
			delete(item, "name")
		}
		portionsRaw, ok := item["portions"]
		if !ok {
			continue
		}
		var portions []map[string]json.RawMessage
		if err := json.Unmarshal(portionsRaw, &portions); err != nil {
			delete(item, "portions")
			continue
		}
		for _, p := range portions {
			if p == nil {
				continue
			}
			if size, ok := p["portion"]; ok && !isString(size) {
				delete(p, "portion")
			}
			coerceNumber(p, "price", false)
			coerceNumber(p, "subtotal", false)
			coerceNumber(p, "quantity", true)
		}
		encoded, err := json.Marshal(portions)
		if err != nil {
			delete(item, "portions")
			continue
		}
		item["portions"] = encoded
	}
	out, err := json.Marshal(items)
	if err != nil {
		return nil, false
	}
	return out, true
}

func coerceNumber(fields map[string]json.RawMessage, field string, integer bool) {
	raw, ok := fields[field]
	if !ok {
		return
	}
	text := string(bytes.TrimSpace(raw))
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}
	d, err := decimal.NewFromString(text)
	if err != nil || (integer && !d.IsInteger()) {
		delete(fields, field)
		return
	}
	fields[field] = json.RawMessage(d.String())
}

func flag(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	text := string(bytes.TrimSpace(raw))
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
	}
	v, err := strconv.ParseBool(text)
	return v, err == nil
}

func isString(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil
}

// ID returns the normalized identifier of a record produced by Normalize.
func (r Record) ID() string {
	var id string
	if err := json.Unmarshal(r["_id"], &id); err != nil || id == "" {
		return domain.UnknownID
	}
	return id
}

// Order decodes the record into the canonical order type.
func (r Record) Order() (domain.Order, error) {
	payload, err := json.Marshal(map[string]json.RawMessage(r))
	if err != nil {
		return domain.Order{}, err
	}
	var order domain.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", r.ID(), err)
	}
	return order, nil
}

// overlay returns base with every field of incoming written over it.
func overlay(base, incoming Record) Record {
	out := make(Record, len(base)+len(incoming))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// IDs extracts normalized identifiers from a removal payload: a bare id, an
// order object, an {"orderId": ...} object, or an array of any of those.
func IDs(data []byte) []string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil
		}
		var ids []string
		for _, raw := range batch {
			ids = append(ids, IDs(raw)...)
		}
		return ids
	case '{':
		records, err := ParseRecords(data)
		if err != nil || len(records) == 0 {
			return nil
		}
		return []string{records[0].ID()}
	default:
		if id := domain.NormalizeID(data); id != domain.UnknownID {
			return []string{id}
		}
		return nil
	}
}

func tableNumber(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
