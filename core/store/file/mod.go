// Package file implements a durable store that keeps the whole snapshot in a
// single file.
//
// Every persist writes the snapshot to a temporary file next to the target and
// renames it over the previous one, so a reader either sees the previous or
// the new snapshot but never a partial write.
package file

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	units "github.com/docker/go-units"
	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"
	"go.dedis.ch/syncdb"
	"go.dedis.ch/syncdb/core/store"
	"golang.org/x/xerrors"
)

// DefaultPath is the file used when none is provided.
const DefaultPath = "database.bin"

// Store is a durable store backed by a file.
//
// - implements store.DurableStore
type Store struct {
	path     string
	codec    Codec
	compress bool
	logger   zerolog.Logger
}

type storeTemplate struct {
	codec    Codec
	compress bool
}

// StoreOption is the type of option to set some fields of a file store.
type StoreOption func(*storeTemplate)

// WithCodec sets the codec used to encode the snapshot. The default is gob.
func WithCodec(c Codec) StoreOption {
	return func(tmpl *storeTemplate) {
		tmpl.codec = c
	}
}

// WithCompression enables the xz compression of the file.
func WithCompression() StoreOption {
	return func(tmpl *storeTemplate) {
		tmpl.compress = true
	}
}

// NewStore creates a new file store for the given path. The file is created on
// the first persist.
func NewStore(path string, opts ...StoreOption) *Store {
	tmpl := storeTemplate{
		codec: GobCodec{},
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	if path == "" {
		path = DefaultPath
	}

	return &Store{
		path:     path,
		codec:    tmpl.codec,
		compress: tmpl.compress,
		logger:   syncdb.Logger.With().Str("file", path).Logger(),
	}
}

// Path returns the path of the file.
func (s *Store) Path() string {
	return s.path
}

// Load implements store.DurableStore. It reads and decodes the file. A missing
// or empty file is an empty snapshot.
func (s *Store) Load() (store.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return store.NewSnapshot(), nil
	}
	if err != nil {
		return nil, xerrors.Errorf("failed to read file: %v", err)
	}

	if len(data) == 0 {
		return store.NewSnapshot(), nil
	}

	if s.compress {
		data, err = decompress(data)
		if err != nil {
			return nil, xerrors.Errorf("failed to decompress: %v", err)
		}
	}

	snap, err := s.codec.Decode(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode with %s: %v", s.codec.Name(), err)
	}

	s.logger.Debug().
		Int("keys", snap.Len()).
		Str("size", units.HumanSize(float64(len(data)))).
		Msg("loaded snapshot")

	return snap, nil
}

// Persist implements store.DurableStore. It encodes the snapshot and replaces
// the file atomically.
func (s *Store) Persist(snap store.Snapshot) error {
	data, err := s.codec.Encode(snap)
	if err != nil {
		return xerrors.Errorf("failed to encode with %s: %v", s.codec.Name(), err)
	}

	size := len(data)

	if s.compress {
		data, err = compress(data)
		if err != nil {
			return xerrors.Errorf("failed to compress: %v", err)
		}
	}

	err = writeAtomic(s.path, data)
	if err != nil {
		return xerrors.Errorf("failed to write file: %v", err)
	}

	s.logger.Debug().
		Int("keys", snap.Len()).
		Str("size", units.HumanSize(float64(size))).
		Str("written", units.HumanSize(float64(len(data)))).
		Msg("persisted snapshot")

	return nil
}

// writeAtomic writes the data to a temporary file in the same folder and then
// renames it to the final path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return xerrors.Errorf("failed to create temporary file: %v", err)
	}

	// Removing after a successful rename fails silently.
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err != nil {
		tmp.Close()
		return xerrors.Errorf("failed to write: %v", err)
	}

	err = tmp.Sync()
	if err != nil {
		tmp.Close()
		return xerrors.Errorf("failed to sync: %v", err)
	}

	err = tmp.Close()
	if err != nil {
		return xerrors.Errorf("failed to close: %v", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return xerrors.Errorf("failed to rename: %v", err)
	}

	return nil
}

func compress(data []byte) ([]byte, error) {
	buffer := new(bytes.Buffer)

	w, err := xz.NewWriter(buffer)
	if err != nil {
		return nil, err
	}

	_, err = w.Write(data)
	if err != nil {
		return nil, err
	}

	err = w.Close()
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return io.ReadAll(r)
}
