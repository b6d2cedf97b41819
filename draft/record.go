// Package draft keeps a locally edited working copy of a server-held record
// list, mirrors it into a scoped cache while it diverges, and reconciles it
// back with ordered insert, update and delete calls.
package draft

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medequip/equipment_backend/utils"
)

// Record is one persisted entity plus its payload. ID > 0 is a server id,
// ID < 0 marks a row that was never saved.
type Record[T any] struct {
	ID   int64 `json:"id"`
	Data T     `json:"data"`
}

func (r Record[T]) IsNew() bool {
	return r.ID < 0
}

// Backend is the RPC surface the engine reconciles against.
type Backend[T any] interface {
	// Fetch returns the full record set of a scope, display fields included.
	Fetch(ctx context.Context, scope string) ([]Record[T], error)
	// Insert persists new payloads as one batch.
	Insert(ctx context.Context, scope string, payloads []T) error
	// Update replaces the payload of one persisted record.
	Update(ctx context.Context, id int64, payload T) error
	// Delete removes persisted records as one batch.
	Delete(ctx context.Context, ids []int64) error
}

func recordsEqual[T any](a, b []Record[T]) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	eq, err := utils.JSONEqual(a, b)
	return err == nil && eq
}

func payloadEqual[T any](a, b T) bool {
	eq, err := utils.JSONEqual(a, b)
	return err == nil && eq
}

// cloneRecords deep-copies through JSON so nested slices in payloads are
// never shared between the server and working lists.
func cloneRecords[T any](in []Record[T]) []Record[T] {
	if len(in) == 0 {
		return []Record[T]{}
	}
	raw, err := encodeRecords(in)
	if err == nil {
		if out, err := decodeRecords[T](raw); err == nil {
			return out
		}
	}
	out := make([]Record[T], len(in))
	copy(out, in)
	return out
}

func encodeRecords[T any](records []Record[T]) (string, error) {
	b, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRecords[T any](raw string) ([]Record[T], error) {
	var records []Record[T]
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, err
	}
	if err := checkIds(records); err != nil {
		return nil, err
	}
	return records, nil
}

// checkIds requires every working id to be non-zero and unique in the list.
func checkIds[T any](records []Record[T]) error {
	seen := make(map[int64]bool, len(records))
	for i, r := range records {
		if r.ID == 0 {
			return fmt.Errorf("%w: record %d has no id", ErrInvalidRecordId, i+1)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: id %d appears more than once", ErrInvalidRecordId, r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
