package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Named keys of a traffic record.
const (
	keyTimestamp     = "timestamp"
	keyAttackType    = "attack_type"
	keyMagnitude     = "magnitude"
	keySourceIP      = "source_ip"
	keyDestinationIP = "destination_ip"
)

// Decode parses one log line. Only the shape is checked: the line must be a JSON object.
// Named fields that are missing, null or of an unexpected type are left nil.
// Decode 解析一行日志，只做结构校验：该行必须是 JSON 对象。
// 缺失、为 null 或类型不符的字段保持为 nil。
func Decode(line string) (*TrafficEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedRecord)
	}

	ev := &TrafficEvent{
		Timestamp:     field[float64](fields, keyTimestamp),
		AttackType:    field[string](fields, keyAttackType),
		Magnitude:     field[float64](fields, keyMagnitude),
		SourceIP:      field[string](fields, keySourceIP),
		DestinationIP: field[string](fields, keyDestinationIP),
	}
	for _, k := range []string{keyTimestamp, keyAttackType, keyMagnitude, keySourceIP, keyDestinationIP} {
		delete(fields, k)
	}
	if len(fields) > 0 {
		ev.Extra = fields
	}
	return ev, nil
}

// field extracts key as T, returning nil when absent, null or mistyped.
func field[T any](fields map[string]json.RawMessage, key string) *T {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}
