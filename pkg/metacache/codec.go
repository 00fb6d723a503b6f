package metacache

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// structTag makes msgpack field names match the JSON names of core types.
const structTag = "json"

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag(structTag)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode unmarshals b into dst. Untyped numbers decode as int64/float64
// rather than the narrowest msgpack type.
func decode(b []byte, dst any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag(structTag)
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(dst)
}

// joinItems packs already-encoded items into one encoded array so a list can
// be decoded into a typed slice in one step.
func joinItems(items [][]byte) ([]byte, error) {
	raw := make([]msgpack.RawMessage, len(items))
	for i, item := range items {
		raw[i] = item
	}
	return msgpack.Marshal(raw)
}
