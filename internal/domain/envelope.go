package domain

import (
	"encoding/json"
	"fmt"
)

// Record kinds carried in a RecordEnvelope.
const (
	RecordKindSnapshot = "snapshot"
	RecordKindDiff     = "diff"
	RecordKindTrade    = "trade"
)

// RecordEnvelope is the wire shape for parsed feed records on the signal bus
// and in archive segments: a kind tag plus the record itself.
type RecordEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// WrapRecord encodes a snapshot, diff, or trade record into an envelope.
// Any other type returns ErrBadRecord.
func WrapRecord(rec any) ([]byte, error) {
	var kind string
	switch rec.(type) {
	case SnapshotRecord, *SnapshotRecord:
		kind = RecordKindSnapshot
	case DiffRecord, *DiffRecord:
		kind = RecordKindDiff
	case TradeRecord, *TradeRecord:
		kind = RecordKindTrade
	default:
		return nil, fmt.Errorf("domain: wrap %T: %w", rec, ErrBadRecord)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("domain: wrap %s record: %w", kind, err)
	}
	return json.Marshal(RecordEnvelope{Kind: kind, Data: data})
}

// ParseEnvelope decodes the outer envelope without touching the inner record.
func ParseEnvelope(payload []byte) (RecordEnvelope, error) {
	var env RecordEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return RecordEnvelope{}, fmt.Errorf("domain: parse envelope: %w", err)
	}
	if env.Kind == "" {
		return RecordEnvelope{}, fmt.Errorf("domain: envelope missing kind: %w", ErrBadRecord)
	}
	return env, nil
}

// AsSnapshot decodes the inner record as a SnapshotRecord. The envelope kind
// must match.
func (e RecordEnvelope) AsSnapshot() (SnapshotRecord, error) {
	if e.Kind != RecordKindSnapshot {
		return SnapshotRecord{}, fmt.Errorf("domain: envelope kind %q is not a snapshot: %w", e.Kind, ErrBadRecord)
	}
	var rec SnapshotRecord
	if err := json.Unmarshal(e.Data, &rec); err != nil {
		return SnapshotRecord{}, fmt.Errorf("domain: decode snapshot record: %w", err)
	}
	return rec, nil
}

// AsDiff decodes the inner record as a DiffRecord. The envelope kind must
// match.
func (e RecordEnvelope) AsDiff() (DiffRecord, error) {
	if e.Kind != RecordKindDiff {
		return DiffRecord{}, fmt.Errorf("domain: envelope kind %q is not a diff: %w", e.Kind, ErrBadRecord)
	}
	var rec DiffRecord
	if err := json.Unmarshal(e.Data, &rec); err != nil {
		return DiffRecord{}, fmt.Errorf("domain: decode diff record: %w", err)
	}
	return rec, nil
}

// AsTrade decodes the inner record as a TradeRecord. The envelope kind must
// match.
func (e RecordEnvelope) AsTrade() (TradeRecord, error) {
	if e.Kind != RecordKindTrade {
		return TradeRecord{}, fmt.Errorf("domain: envelope kind %q is not a trade: %w", e.Kind, ErrBadRecord)
	}
	var rec TradeRecord
	if err := json.Unmarshal(e.Data, &rec); err != nil {
		return TradeRecord{}, fmt.Errorf("domain: decode trade record: %w", err)
	}
	return rec, nil
}
