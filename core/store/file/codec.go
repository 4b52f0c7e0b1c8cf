package file

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"sort"

	"go.dedis.ch/syncdb/core/store"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Codec is the interface of the encoding used to write a snapshot to a file.
type Codec interface {
	// Name returns the identifier of the codec.
	Name() string

	Encode(store.Snapshot) ([]byte, error)

	Decode([]byte) (store.Snapshot, error)
}

// CodecFromName returns the codec matching the identifier.
func CodecFromName(name string) (Codec, error) {
	switch name {
	case "gob", "":
		return GobCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	case "yaml":
		return YAMLCodec{}, nil
	default:
		return nil, xerrors.Errorf("unknown codec '%s'", name)
	}
}

// GobCodec encodes snapshots in the gob format.
//
// - implements file.Codec
type GobCodec struct{}

// Name implements file.Codec.
func (GobCodec) Name() string {
	return "gob"
}

// Encode implements file.Codec.
func (GobCodec) Encode(snap store.Snapshot) ([]byte, error) {
	buffer := new(bytes.Buffer)

	err := gob.NewEncoder(buffer).Encode(map[string][]byte(snap))
	if err != nil {
		return nil, xerrors.Errorf("failed to encode: %v", err)
	}

	return buffer.Bytes(), nil
}

// Decode implements file.Codec.
func (GobCodec) Decode(data []byte) (store.Snapshot, error) {
	var values map[string][]byte

	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&values)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode: %v", err)
	}

	return fromMap(values), nil
}

// JSONCodec encodes snapshots as a JSON list of entries. Keys and values are
// base64 strings so that binary keys survive the encoding.
//
// - implements file.Codec
type JSONCodec struct{}

// jsonEntry is a key/value pair of a JSON snapshot.
type jsonEntry struct {
	Key   []byte `json:"k"`
	Value []byte `json:"v"`
}

// Name implements file.Codec.
func (JSONCodec) Name() string {
	return "json"
}

// Encode implements file.Codec. The entries are sorted by key.
func (JSONCodec) Encode(snap store.Snapshot) ([]byte, error) {
	keys := make([]string, 0, len(snap))
	for key := range snap {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	entries := make([]jsonEntry, len(keys))
	for i, key := range keys {
		entries[i] = jsonEntry{Key: []byte(key), Value: snap[key]}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements file.Codec.
func (JSONCodec) Decode(data []byte) (store.Snapshot, error) {
	var entries []jsonEntry

	err := json.Unmarshal(data, &entries)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	values := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		values[string(entry.Key)] = entry.Value
	}

	return fromMap(values), nil
}

// YAMLCodec encodes snapshots as a YAML mapping. Values that are not valid
// UTF-8 are written as binary scalars.
//
// - implements file.Codec
type YAMLCodec struct{}

// Name implements file.Codec.
func (YAMLCodec) Name() string {
	return "yaml"
}

// Encode implements file.Codec.
func (YAMLCodec) Encode(snap store.Snapshot) ([]byte, error) {
	values := make(map[string]string, len(snap))
	for key, value := range snap {
		values[key] = string(value)
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements file.Codec.
func (YAMLCodec) Decode(data []byte) (store.Snapshot, error) {
	var values map[string]string

	err := yaml.Unmarshal(data, &values)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	snap := make(store.Snapshot, len(values))
	for key, value := range values {
		snap[key] = []byte(value)
	}

	return snap, nil
}

func fromMap(values map[string][]byte) store.Snapshot {
	snap := make(store.Snapshot, len(values))
	for key, value := range values {
		if value == nil {
			value = []byte{}
		}

		snap[key] = value
	}

	return snap
}
