package content

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/folio/internal/domain"
)

// TempIDPrefix marks identifiers assigned by a client to a tentative item.
// The service always replaces them.
const TempIDPrefix = "tmp-"

// Applier applies write ops to stored documents. The in-memory and Postgres
// services share it so both assign ids and timestamps the same way.
type Applier struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultApplier stamps UTC wall-clock time and random UUIDs.
func DefaultApplier() Applier {
	return Applier{
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

// Fields stamped by the service, per collection domain.
var (
	createdStamp = map[domain.Domain]string{domain.Projects: "createdAt"}
	updatedStamp = map[domain.Domain]string{domain.Projects: "updatedAt", domain.Blog: "updatedAt"}
)

type object = map[string]any

// Apply returns the document that results from applying op to doc.
// doc may be empty, meaning the domain has no content yet.
func (a Applier) Apply(d domain.Domain, doc json.RawMessage, op Op) (json.RawMessage, error) {
	if err := op.Check(d); err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		doc = domain.EmptyDocument(d)
	}
	if !d.IsCollection() {
		if err := domain.ValidateDocument(d, op.Body); err != nil {
			return nil, AsValidation(d, err)
		}
		return compact(op.Body)
	}

	var items []object
	if err := json.Unmarshal(doc, &items); err != nil {
		return nil, fmt.Errorf("decode stored %s document: %w", d, err)
	}

	var err error
	switch op.Kind {
	case OpCreate:
		items, err = a.create(d, items, op)
	case OpUpdate:
		items, err = a.update(d, items, op)
	case OpDelete:
		items, err = remove(d, items, op.ID)
	case OpReorder:
		items, err = reorder(d, items, op.Order)
	case OpReplace:
		items, err = a.replace(d, op)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(items)
}

func (a Applier) create(d domain.Domain, items []object, op Op) ([]object, error) {
	item, err := decodeItem(d, op.Body)
	if err != nil {
		return nil, err
	}
	id, _ := item["id"].(string)
	if id == "" || strings.HasPrefix(id, TempIDPrefix) {
		id = a.NewID()
		item["id"] = id
	}
	if indexOf(items, id) >= 0 {
		return nil, &ValidationError{Domain: d, Fields: domain.FieldErrors{"id": "already exists"}}
	}
	now := a.Now()
	if field, ok := createdStamp[d]; ok {
		item[field] = now
	}
	a.stamp(d, item, now)
	return append(items, item), nil
}

func (a Applier) update(d domain.Domain, items []object, op Op) ([]object, error) {
	i := indexOf(items, op.ID)
	if i < 0 {
		return nil, notFound(d, op.ID)
	}
	item, err := decodeItem(d, op.Body)
	if err != nil {
		return nil, err
	}
	item["id"] = op.ID
	if field, ok := createdStamp[d]; ok {
		if prev, ok := items[i][field]; ok {
			item[field] = prev
		}
	}
	a.stamp(d, item, a.Now())
	items[i] = item
	return items, nil
}

func (a Applier) replace(d domain.Domain, op Op) ([]object, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(op.Body, &raw); err != nil {
		return nil, &ValidationError{Domain: d, Fields: domain.FieldErrors{"body": "must be a list"}}
	}
	items := make([]object, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		item, err := decodeItem(d, r)
		if err != nil {
			return nil, err
		}
		id, _ := item["id"].(string)
		if id == "" || strings.HasPrefix(id, TempIDPrefix) {
			id = a.NewID()
			item["id"] = id
		}
		if seen[id] {
			return nil, &ValidationError{Domain: d, Fields: domain.FieldErrors{"id": "duplicate " + id}}
		}
		seen[id] = true
		items = append(items, item)
	}
	return items, nil
}

// stamp sets service-owned fields. Blog posts get a publish time the first
// time they are saved as published.
func (a Applier) stamp(d domain.Domain, item object, now time.Time) {
	if field, ok := updatedStamp[d]; ok {
		item[field] = now
	}
	if d == domain.Blog {
		published, _ := item["published"].(bool)
		if published && item["publishedAt"] == nil {
			item["publishedAt"] = now
		}
		if !published {
			delete(item, "publishedAt")
		}
	}
}

func remove(d domain.Domain, items []object, id string) ([]object, error) {
	i := indexOf(items, id)
	if i < 0 {
		return nil, notFound(d, id)
	}
	return append(items[:i], items[i+1:]...), nil
}

func reorder(d domain.Domain, items []object, order []string) ([]object, error) {
	if len(order) != len(items) {
		return nil, &ValidationError{Domain: d, Message: "order must list every item exactly once",
			Fields: domain.FieldErrors{"order": fmt.Sprintf("expected %d ids, got %d", len(items), len(order))}}
	}
	out := make([]object, 0, len(items))
	used := make(map[string]bool, len(order))
	for _, id := range order {
		i := indexOf(items, id)
		if i < 0 || used[id] {
			return nil, &ValidationError{Domain: d, Message: "order must list every item exactly once",
				Fields: domain.FieldErrors{"order": fmt.Sprintf("unexpected id %q", id)}}
		}
		used[id] = true
		out = append(out, items[i])
	}
	return out, nil
}

func decodeItem(d domain.Domain, raw json.RawMessage) (object, error) {
	if err := domain.ValidateItem(d, raw); err != nil {
		return nil, AsValidation(d, err)
	}
	var item object
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, &ValidationError{Domain: d, Fields: domain.FieldErrors{"body": "must be an object"}}
	}
	return item, nil
}

func indexOf(items []object, id string) int {
	for i, item := range items {
		if got, _ := item["id"].(string); got == id {
			return i
		}
	}
	return -1
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
