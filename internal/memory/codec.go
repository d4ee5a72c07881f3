package memory

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the four leading bytes of a Zstandard frame. The write
// path always produces this form; the read path uses it to gate decode
// strategy.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// encodeSnapshot serializes entries as a Zstd (level 3) stream wrapping
// a gob-encoded slice.
func encodeSnapshot(entries []*Entry) ([]byte, error) {
	var gobBuf bytes.Buffer
	if err := gob.NewEncoder(&gobBuf).Encode(entries); err != nil {
		return nil, fmt.Errorf("memory: gob encode: %w", err)
	}

	var out bytes.Buffer
	w, err := zstd.NewWriter(&out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("memory: zstd writer: %w", err)
	}
	if _, err := w.Write(gobBuf.Bytes()); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("memory: zstd write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("memory: zstd close: %w", err)
	}
	return out.Bytes(), nil
}

// decodeSnapshot detects the on-disk format by leading magic bytes and
// decodes accordingly: Zstd+gob preferred, then raw gob, then a legacy
// line-oriented JSON text fallback. Every path returning an error here
// is a store-corruption condition, fatal at startup: no silent data
// loss.
func decodeSnapshot(data []byte) ([]*Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	if len(data) >= 4 && bytes.Equal(data[:4], zstdMagic) {
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("memory: zstd reader: %w", err)
		}
		defer r.Close()

		var entries []*Entry
		if err := gob.NewDecoder(r).Decode(&entries); err != nil {
			return nil, fmt.Errorf("memory: gob decode (zstd): %w", err)
		}
		return entries, nil
	}

	var entries []*Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err == nil {
		return entries, nil
	}

	return decodeLegacyText(data)
}

// decodeLegacyText decodes one JSON object per line, the original textual
// fallback format.
func decodeLegacyText(data []byte) ([]*Entry, error) {
	var entries []*Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("memory: legacy text decode: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("memory: legacy text scan: %w", err)
	}
	return entries, nil
}
