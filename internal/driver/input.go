package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"moonc/internal/ast"
)

// ChunkExt is the extension of resolved syntax trees written by the front end.
const ChunkExt = ".mpk"

// LoadChunk reads a msgpack-encoded resolved chunk. A chunk without a name is
// named after its file.
func LoadChunk(path string) (*ast.Chunk, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	chunk, err := DecodeChunk(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if chunk.Name == "" {
		chunk.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return chunk, nil
}

func readInput(path string) ([]byte, error) {
	if filepath.Ext(path) != ChunkExt {
		return nil, fmt.Errorf("%s: not a %s file", path, ChunkExt)
	}
	return os.ReadFile(path)
}

// DecodeChunk decodes one chunk from data.
func DecodeChunk(data []byte) (*ast.Chunk, error) {
	var chunk ast.Chunk
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&chunk); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if chunk.Body == nil {
		return nil, fmt.Errorf("decode chunk: no body")
	}
	return &chunk, nil
}

// EncodeChunk is the inverse of DecodeChunk.
func EncodeChunk(chunk *ast.Chunk) ([]byte, error) {
	return msgpack.Marshal(chunk)
}

// WriteArtifact encodes art to path, replacing the file atomically.
func WriteArtifact(path string, art *Artifact) error {
	data, err := msgpack.Marshal(art)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// ReadArtifact decodes an artifact written by WriteArtifact.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var art Artifact
	if err := msgpack.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if art.Schema != ArtifactSchema {
		return nil, fmt.Errorf("%s: artifact schema %d, want %d", path, art.Schema, ArtifactSchema)
	}
	return &art, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
