package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/parsynth/internal/ir"
)

// encodeSnapshot serializes a snapshot as msgpack. Field names follow the
// json tags so blobs and JSON dumps agree.
func encodeSnapshot(s ir.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(data []byte) (ir.Snapshot, error) {
	var s ir.Snapshot
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&s); err != nil {
		return ir.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// marshalPassNames renders the pass order as canonical JSON text.
func marshalPassNames(names []string) (string, error) {
	arr := make(ir.VArray, len(names))
	for i, n := range names {
		arr[i] = ir.VString(n)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal pass names: %w", err)
	}
	return string(data), nil
}

func unmarshalPassNames(data string) ([]string, error) {
	names := []string{}
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal pass names: %w", err)
	}
	return names, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
