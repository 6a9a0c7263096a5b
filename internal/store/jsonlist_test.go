package store

import (
	"testing"
)

func TestRecordListRoundTrip(t *testing.T) {
	records := []Record{
		{"empNo": "E-101", "name": "Tan Wei", "timeFrom": "08:00", "timeTo": "17:00", "signature": "TW", "remarks": ""},
		{"empNo": "E-102", "name": "Kumar", "timeFrom": "08:00", "timeTo": "12:30", "signature": "K", "remarks": "half day"},
		{"empNo": "E-205", "name": "Lim", "timeFrom": "", "timeTo": "", "signature": "", "remarks": "standby"},
	}

	decoded := decodeRecordList(encodeRecordList(records))
	if len(decoded) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(decoded))
	}
	for i, record := range records {
		for key, want := range record {
			if got := decoded[i][key]; got != want {
				t.Errorf("record %d field %s = %q, want %q", i, key, got, want)
			}
		}
	}
}

func TestRecordListEmptyRoundTrip(t *testing.T) {
	if got := encodeRecordList(nil); got != "[]" {
		t.Errorf("encode nil list = %q, want []", got)
	}
	decoded := decodeRecordList(encodeRecordList([]Record{}))
	if decoded == nil || len(decoded) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", decoded)
	}
}

func TestDecodeRecordListMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty string", ""},
		{"truncated json", `[{"empNo": "E-1"`},
		{"not an array", `{"empNo": "E-1"}`},
		{"plain garbage", "not json at all"},
		{"wrong element type", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := decodeRecordList(tt.text)
			if decoded == nil {
				t.Fatal("decode must return a non-nil list")
			}
			if len(decoded) != 0 {
				t.Errorf("expected empty list for malformed input, got %#v", decoded)
			}
		})
	}
}

func TestDecodeRecordListCoercesScalars(t *testing.T) {
	decoded := decodeRecordList(`[{"qty": 12.5, "done": true, "pqNo": null, "location": "CH 1200"}]`)
	if len(decoded) != 1 {
		t.Fatalf("expected 1 record, got %d", len(decoded))
	}
	record := decoded[0]
	if record["qty"] != "12.5" {
		t.Errorf("qty = %q, want 12.5", record["qty"])
	}
	if record["done"] != "true" {
		t.Errorf("done = %q, want true", record["done"])
	}
	if record["pqNo"] != "" {
		t.Errorf("pqNo = %q, want empty", record["pqNo"])
	}
	if record["location"] != "CH 1200" {
		t.Errorf("location = %q, want CH 1200", record["location"])
	}
}
