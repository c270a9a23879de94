// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with Core Deterministic Encoding so identical
// logical values are byte-identical on the wire.
var encMode cbor.EncMode

// decMode accepts standard CBOR; unknown fields are ignored.
var decMode cbor.DecMode

func init() {
	encOptions := cbor.CoreDetEncOptions()
	// ref.UserID, ref.RoomID, and ref.EventID carry their identity in
	// unexported fields. Routing them through MarshalText keeps them
	// as text strings instead of empty CBOR maps.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString

	var err error
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Grange only ever uses string map keys. Decoding into an
		// any-typed target should therefore produce map[string]any,
		// not CBOR's default map[any]any, so the result stays
		// compatible with encoding/json and ordinary Go code.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Mirror of TextMarshaler above for round-trip correctness.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value, for delaying decode of
// action-specific request fields. Alias so socket code imports only
// lib/codec, never fxamacker/cbor directly.
type RawMessage = cbor.RawMessage

// NewDecoder returns a streaming decoder reading standard CBOR with
// the package's decode options.
func NewDecoder(reader io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(reader)
}

// NewEncoder returns a streaming encoder writing deterministic CBOR.
func NewEncoder(writer io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(writer)
}
