package notifications

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"dineqr/internal/domain"
)

var ErrInvalidPayload = errors.New("notification payload must be an object or an array of objects")

// Feed is an append-only notification log, newest first. Acknowledged
// entries stay in the log flagged as read and are mirrored once into a
// separate read list.
type Feed struct {
	mu      sync.RWMutex
	items   []domain.Notification
	read    []domain.Notification
	readIDs map[string]struct{}
}

func NewFeed() *Feed {
	return &Feed{readIDs: make(map[string]struct{})}
}

// Replace swaps in a full list as sent by the server.
func (f *Feed) Replace(list []domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = make([]domain.Notification, 0, len(list))
	f.read = nil
	f.readIDs = make(map[string]struct{})

	seen := make(map[string]struct{}, len(list))
	for _, n := range list {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		f.items = append(f.items, n)
		if n.Read {
			f.mirror(n)
		}
	}
}

// Add prepends n unless its id is already present, in which case the held
// entry is updated in place. It reports whether n was new.
func (f *Feed) Add(n domain.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID == n.ID {
			if f.items[i].Read {
				n.Read = true
			}
			f.items[i] = n
			if n.Read {
				f.mirror(n)
			}
			return false
		}
	}

	f.items = append([]domain.Notification{n}, f.items...)
	if n.Read {
		f.mirror(n)
	}
	return true
}

// MarkRead flags the given ids as read; with no ids it flags everything.
// It returns how many entries changed.
func (f *Feed) MarkRead(ids ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	changed := 0
	for i := range f.items {
		if len(want) > 0 {
			if _, ok := want[f.items[i].ID]; !ok {
				continue
			}
		}
		if f.items[i].Read {
			continue
		}
		f.items[i].Read = true
		f.mirror(f.items[i])
		changed++
	}
	return changed
}

func (f *Feed) mirror(n domain.Notification) {
	if _, ok := f.readIDs[n.ID]; ok {
		return
	}
	f.readIDs[n.ID] = struct{}{}
	n.Read = true
	f.read = append(f.read, n)
}

func (f *Feed) Items() []domain.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]domain.Notification(nil), f.items...)
}

func (f *Feed) Read() []domain.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]domain.Notification(nil), f.read...)
}

func (f *Feed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, item := range f.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Parse decodes one notification or a batch. Identifiers and timestamps go
// through the same normalization as orders; a record without a "payload"
// field is kept whole as its payload.
func Parse(data []byte) ([]domain.Notification, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrInvalidPayload
	}

	var raws []map[string]json.RawMessage
	switch data[0] {
	case '{':
		var one map[string]json.RawMessage
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		raws = append(raws, one)
	case '[':
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode notifications: %w", err)
		}
	default:
		return nil, ErrInvalidPayload
	}

	out := make([]domain.Notification, 0, len(raws))
	for _, raw := range raws {
		if raw == nil {
			continue
		}
		out = append(out, fromRaw(raw))
	}
	return out, nil
}

func fromRaw(raw map[string]json.RawMessage) domain.Notification {
	n := domain.Notification{ID: domain.UnknownID}
	for _, field := range []string{"_id", "id", "notificationId"} {
		if v, ok := raw[field]; ok {
			if id := domain.NormalizeID(v); id != domain.UnknownID {
				n.ID = id
				break
			}
		}
	}
	if v, ok := raw["read"]; ok {
		json.Unmarshal(v, &n.Read)
	}
	if v, ok := raw["createdAt"]; ok {
		n.CreatedAt, _ = domain.NormalizeTime(v)
	}
	if v, ok := raw["payload"]; ok {
		n.Payload = v
	} else {
		whole, _ := json.Marshal(raw)
		n.Payload = whole
	}
	return n
}

// ReadIDs extracts the ids a mark-read event refers to. all is true when the
// event carries no ids, which acknowledges the whole feed.
func ReadIDs(data []byte) (ids []string, all bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, true
	}

	switch data[0] {
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, false
		}
		for _, raw := range batch {
			sub, _ := ReadIDs(raw)
			ids = append(ids, sub...)
		}
		return ids, len(batch) == 0
	case '{':
		var wrapper struct {
			IDs []json.RawMessage `json:"ids"`
		}
		if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.IDs != nil {
			for _, raw := range wrapper.IDs {
				if id := domain.NormalizeID(raw); id != domain.UnknownID {
					ids = append(ids, id)
				}
			}
			return ids, len(wrapper.IDs) == 0
		}
		var one map[string]json.RawMessage
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, false
		}
		if n := fromRaw(one); n.ID != domain.UnknownID {
			return []string{n.ID}, false
		}
		return nil, false
	default:
		if id := domain.NormalizeID(data); id != domain.UnknownID {
			return []string{id}, false
		}
		return nil, false
	}
}
