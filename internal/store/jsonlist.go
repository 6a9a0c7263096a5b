package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// encodeRecordList serializes a record list for storage. A nil list is
// stored as an empty JSON array so the column never holds NULL-like
// ambiguity.
func encodeRecordList(records []Record) string {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeRecordList turns stored text back into a record list. Malformed
// or absent text decodes to an empty list: a read must never fail on a
// bad column.
func decodeRecordList(text string) []Record {
	if text == "" {
		return []Record{}
	}
	var raw []map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return []Record{}
	}
	records := make([]Record, 0, len(raw))
	for _, row := range raw {
		record := make(Record, len(row))
		for key, value := range row {
			record[key] = stringifyValue(value)
		}
		records = append(records, record)
	}
	return records
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
