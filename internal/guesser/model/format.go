// Package model persists a trained engine as four independently loadable
// artifacts under a model directory: vocabulary, statistics, the TF-IDF
// matrix, and the training documents. Each file carries a fixed binary
// envelope (magic, version, kind, payload length) and a CRC32 footer, and is
// written to a temp file then renamed so readers never see partial state.
package model

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"
)

const (
	MagicBytes    uint32 = 0x5447_4D44 // "TGMD"
	FormatVersion uint32 = 1
	HeaderSize    int    = 32
	FooterSize    int    = 4
)

// Artifact kinds stored in the envelope header.
const (
	KindVocabulary uint32 = 1
	KindStats      uint32 = 2
	KindVectors    uint32 = 3
	KindDocuments  uint32 = 4
)

// File names inside the model directory.
const (
	VocabularyFile = "vocabulary.tgm"
	StatsFile      = "stats.tgm"
	VectorsFile    = "vectors.tgm"
	DocumentsFile  = "documents.tgm"
)

type header struct {
	Magic      uint32
	Version    uint32
	Kind       uint32
	PayloadLen uint64
	CreatedAt  int64
}

func encodeHeader(h header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Kind)
	binary.LittleEndian.PutUint64(buf[12:20], h.PayloadLen)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(h.CreatedAt))
	return buf
}

func decodeHeader(buf []byte) header {
	return header{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		Kind:       binary.LittleEndian.Uint32(buf[8:12]),
		PayloadLen: binary.LittleEndian.Uint64(buf[12:20]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[20:28])),
	}
}

// writeArtifact atomically writes an enveloped payload into dir/name.
func writeArtifact(dir, name string, kind uint32, payload []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}
	finalPath := filepath.Join(dir, name)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp artifact file: %w", err)
	}
	defer f.Close()

	h := header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		Kind:       kind,
		PayloadLen: uint64(len(payload)),
		CreatedAt:  time.Now().Unix(),
	}
	if _, err := f.Write(encodeHeader(h)); err != nil {
		return fmt.Errorf("writing artifact header: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("writing artifact payload: %w", err)
	}
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer, crc32.ChecksumIEEE(payload))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing artifact footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing artifact file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming artifact file: %w", err)
	}
	return nil
}

// readArtifact reads dir/name, validates magic, version, kind, and checksum,
// and returns the payload.
func readArtifact(dir, name string, kind uint32) ([]byte, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("artifact %s truncated (%d bytes)", path, len(data))
	}
	h := decodeHeader(data[:HeaderSize])
	if h.Magic != MagicBytes {
		return nil, fmt.Errorf("artifact %s: bad magic bytes %x", path, h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("artifact %s: unsupported format version %d", path, h.Version)
	}
	if h.Kind != kind {
		return nil, fmt.Errorf("artifact %s: kind %d, expected %d", path, h.Kind, kind)
	}
	if uint64(len(data)-HeaderSize-FooterSize) != h.PayloadLen {
		return nil, fmt.Errorf("artifact %s: payload length %d does not match header %d",
			path, len(data)-HeaderSize-FooterSize, h.PayloadLen)
	}
	payload := data[HeaderSize : len(data)-FooterSize]
	want := binary.LittleEndian.Uint32(data[len(data)-FooterSize:])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, fmt.Errorf("artifact %s: checksum mismatch (got %x, want %x)", path, got, want)
	}
	return payload, nil
}
