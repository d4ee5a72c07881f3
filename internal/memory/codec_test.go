package memory

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	entries := []*Entry{
		{ID: "mem_1", Content: "a", Embedding: []float32{1, 0, 0}, Timestamp: time.Now()},
		{ID: "mem_2", Content: "b", Embedding: []float32{0, 1, 0}, Timestamp: time.Now()},
	}

	data, err := encodeSnapshot(entries)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data[:4], zstdMagic) {
		t.Fatalf("expected write path to always emit the zstd-wrapped form")
	}

	decoded, err := decodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded[0].ID != "mem_1" || decoded[1].Embedding[1] != 1 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestDecodeLegacyTextFallback(t *testing.T) {
	data := []byte(`{"id":"mem_1","content":"hello","timestamp":"2024-01-01T00:00:00Z","metadata":{"importance":0.5}}
{"id":"mem_2","content":"world","timestamp":"2024-01-01T00:00:00Z","metadata":{"importance":0.2}}
`)

	entries, err := decodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].ID != "mem_1" || entries[1].Content != "world" {
		t.Fatalf("unexpected legacy decode: %+v", entries)
	}
}

func TestDecodeEmptyData(t *testing.T) {
	entries, err := decodeSnapshot(nil)
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Fatalf("expected nil entries for empty snapshot")
	}
}
