package records

import (
	"bytes"
	"compress/gzip"
	"context"
	"testing"
	"testing/fstest"
	"time"

	perr "arledger/internal/platform/errors"
)

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestScan(t *testing.T) {
	fsys := fstest.MapFS{
		"2025-01 Januar/INV-1.json": {Data: []byte(`{"invoice_number":"R-1","date":"03.01.2025","customer_name":"Jon Müller","street":"Hauptstr. 1","city":"55232 Alzey","amount":"1.234,56 €"}`)},
		"2025-02 Februar/batch.ndjson": {Data: []byte(
			`{"source_path":"2025-02 Februar/INV-2.pdf","invoice_number":"R-2","date":"2025-02-07","customer_name":"Anna Berg","amount_cents":544}` + "\n" +
				"\n" +
				`{not json}` + "\n" +
				`{"source_path":"2025-02 Februar/INV-3.pdf","date":"07.02.2025","customer_name":"Anna Berg","amount":"abc"}` + "\n"),
		},
		"2025-03/more.jsonl.gz": {Data: gz(t, `{"invoice_number":"R-4","date":"1.3.2025","customer_name":"Karl Weber","amount":"12"}`+"\n")},
		"2025-03/notes.txt":     {Data: []byte("ignored")},
		".cache/x.json":         {Data: []byte("{}")},
	}
	items, err := NewFS(fsys).Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("want 5 items, got %d: %+v", len(items), items)
	}

	first := items[0]
	if first.Err != nil || first.Path != "2025-01 Januar/INV-1.json" {
		t.Fatalf("first %+v", first)
	}
	r := first.Record
	if r.AmountCents != 123456 || r.CustomerName != "Jon Müller" || !r.Date.Equal(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("record %+v", r)
	}
	if r.SourcePath != "2025-01 Januar/INV-1.json" {
		t.Fatalf("source path %q", r.SourcePath)
	}

	if items[1].Err != nil || items[1].Path != "2025-02 Februar/INV-2.pdf" || items[1].Record.AmountCents != 544 {
		t.Fatalf("second %+v", items[1])
	}
	if items[2].Err == nil || items[2].Path != "2025-02 Februar/batch.ndjson#3" || !perr.IsCode(items[2].Err, perr.ErrorCodeJSON) {
		t.Fatalf("malformed line %+v", items[2])
	}
	if items[3].Err == nil || items[3].Path != "2025-02 Februar/INV-3.pdf" || !perr.IsCode(items[3].Err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("bad amount %+v", items[3])
	}
	if items[4].Err != nil || items[4].Path != "2025-03/more.jsonl.gz#1" || items[4].Record.AmountCents != 1200 {
		t.Fatalf("gzip %+v", items[4])
	}
}

func TestScanMissingRoot(t *testing.T) {
	_, err := NewDir(t.TempDir() + "/missing").Scan(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestScanCorruptGzip(t *testing.T) {
	fsys := fstest.MapFS{"2025-01/a.ndjson.gz": {Data: []byte("not gzip")}}
	items, err := NewFS(fsys).Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 1 || items[0].Err == nil {
		t.Fatalf("items %+v", items)
	}
}

func TestWireRecord(t *testing.T) {
	cents := int64(100)
	tests := []struct {
		name  string
		w     Wire
		field string
	}{
		{"no date", Wire{Amount: "1"}, "date"},
		{"bad date", Wire{Date: "2025/01/02", Amount: "1"}, "date"},
		{"no amount", Wire{Date: "02.01.2025"}, "amount"},
		{"bad amount", Wire{Date: "02.01.2025", Amount: "1,234"}, "amount"},
		{"cents win", Wire{Date: "02.01.2025", Amount: "oops", AmountCents: &cents}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := tc.w.Record()
			if tc.field == "" {
				if err != nil || rec.AmountCents != 100 {
					t.Fatalf("rec=%+v err=%v", rec, err)
				}
				return
			}
			e, ok := perr.As(err)
			if !ok || e.Field() != tc.field {
				t.Fatalf("want field %q, got %v", tc.field, err)
			}
		})
	}
}
