package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

var errNoSchema = errors.New("entity: decode into an entity without schema")

// MarshalJSON encodes the stored values as a JSON object.
func (e *Entity) MarshalJSON() ([]byte, error) {
	if e.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.values)
}

// UnmarshalJSON assigns every key of a JSON object through Set. The entity
// must have been initialised with a schema.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	return e.assign(m)
}

// MarshalMsgpack encodes the stored values as a msgpack map.
func (e *Entity) MarshalMsgpack() ([]byte, error) {
	if e.values == nil {
		return msgpack.Marshal(map[string]any{})
	}
	return msgpack.Marshal(e.values)
}

// UnmarshalMsgpack assigns every key of a msgpack map through Set.
// Integers decode as int64 and uint64.
func (e *Entity) UnmarshalMsgpack(data []byte) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	return e.assign(m)
}

func (e *Entity) assign(m map[string]any) error {
	if e.schema == nil {
		return errNoSchema
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.Set(name, m[name]); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ json.Marshaler      = (*Entity)(nil)
	_ json.Unmarshaler    = (*Entity)(nil)
	_ msgpack.Marshaler   = (*Entity)(nil)
	_ msgpack.Unmarshaler = (*Entity)(nil)
)
