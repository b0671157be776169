package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const snapshotVersion = 1

// SnapshotHeader is the first line of a snapshot file.
type SnapshotHeader struct {
	Version int    `json:"version"`
	Tick    uint64 `json:"tick"`
	Count   int    `json:"count"`
}

// WriteSnapshot writes a zstd-compressed file holding the header line
// followed by one JSON record per line.
func WriteSnapshot(path string, tick uint64, records []Record) (err error) {
	if path == "" {
		return ErrEmptyPath
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	je := json.NewEncoder(bw)

	if err = je.Encode(SnapshotHeader{Version: snapshotVersion, Tick: tick, Count: len(records)}); err != nil {
		_ = enc.Close()
		return err
	}
	for _, r := range records {
		if err = je.Encode(r); err != nil {
			_ = enc.Close()
			return fmt.Errorf("item %d: %w", r.ItemID, err)
		}
	}
	if err = bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshot reads a file written by WriteSnapshot.
func ReadSnapshot(path string) (SnapshotHeader, []Record, error) {
	var header SnapshotHeader
	f, err := os.Open(path)
	if err != nil {
		return header, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return header, nil, err
	}
	defer dec.Close()

	jd := json.NewDecoder(bufio.NewReaderSize(dec, 64*1024))
	if err = jd.Decode(&header); err != nil {
		return header, nil, fmt.Errorf("snapshot header: %w", err)
	}
	if header.Version != snapshotVersion {
		return header, nil, fmt.Errorf("snapshot version %d not supported", header.Version)
	}

	records := make([]Record, 0, header.Count)
	for jd.More() {
		var r Record
		if err = jd.Decode(&r); err != nil {
			return header, nil, fmt.Errorf("snapshot record %d: %w", len(records), err)
		}
		records = append(records, r)
	}
	if len(records) != header.Count {
		return header, nil, fmt.Errorf("snapshot truncated: %d of %d records", len(records), header.Count)
	}
	return header, records, nil
}
