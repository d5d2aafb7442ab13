// Package codec converts journal payloads to and from the opaque bytes a
// segment stores.
package codec

import (
	"bytes"
	"encoding/json"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Codec serializes entries of type T.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

type bytesCodec struct{}

// Bytes stores []byte payloads as they are.
func Bytes() Codec[[]byte] { return bytesCodec{} }

func (bytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }

func (bytesCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

type stringCodec struct{}

func String() Codec[string] { return stringCodec{} }

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (stringCodec) Decode(data []byte) (string, error) { return string(data), nil }

type jsonCodec[T any] struct{}

func JSON[T any]() Codec[T] { return jsonCodec[T]{} }

func (jsonCodec[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var out T
	err := json.Unmarshal(data, &out)
	return out, err
}

type msgpackCodec[T any] struct {
	handle *codec.MsgpackHandle
}

// Msgpack encodes entries with the MessagePack handle used by hashicorp
// raft log stores.
func Msgpack[T any]() Codec[T] {
	return msgpackCodec[T]{handle: &codec.MsgpackHandle{}}
}

func (c msgpackCodec[T]) Encode(v T) ([]byte, error) {
	var buf bytes.Buffer
	err := codec.NewEncoder(&buf, c.handle).Encode(v)
	return buf.Bytes(), err
}

func (c msgpackCodec[T]) Decode(data []byte) (T, error) {
	var out T
	err := codec.NewDecoder(bytes.NewReader(data), c.handle).Decode(&out)
	return out, err
}
