package store

// Snapshot is the full key/value mapping of the store. It is loaded at the
// beginning of an operation and dropped at the end of it.
//
// - implements store.Readable
// - implements store.Writable
type Snapshot map[string][]byte

// NewSnapshot creates a new empty snapshot.
func NewSnapshot() Snapshot {
	return make(Snapshot)
}

// Get implements store.Readable. It returns the value associated to the key and
// a boolean indicating if the key exists.
func (s Snapshot) Get(key []byte) ([]byte, bool) {
	value, found := s[string(key)]
	if !found {
		return nil, false
	}

	if value == nil {
		value = []byte{}
	}

	return value, true
}

// Set implements store.Writable. It inserts or updates the key.
func (s Snapshot) Set(key, value []byte) {
	buffer := make([]byte, len(value))
	copy(buffer, value)

	s[string(key)] = buffer
}

// Delete implements store.Writable. It removes the key if it exists and
// returns the previous value.
func (s Snapshot) Delete(key []byte) ([]byte, bool) {
	value, found := s.Get(key)
	if found {
		delete(s, string(key))
	}

	return value, found
}

// Len returns the number of keys.
func (s Snapshot) Len() int {
	return len(s)
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	clone := make(Snapshot, len(s))
	for key, value := range s {
		buffer := make([]byte, len(value))
		copy(buffer, value)

		clone[key] = buffer
	}

	return clone
}
