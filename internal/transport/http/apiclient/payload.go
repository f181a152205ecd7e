package apiclient

import (
	"errors"

	"github.com/bytedance/sonic"
)

// PayloadKind tells how a successful response body was read.
type PayloadKind int

const (
	PayloadNull PayloadKind = iota
	PayloadJSON
	PayloadText
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadJSON:
		return "json"
	case PayloadText:
		return "text"
	default:
		return "null"
	}
}

// ErrNotJSON is returned when decoding a text payload.
var ErrNotJSON = errors.New("payload is not JSON")

// Payload is the result of a successful request. The zero value is null.
type Payload struct {
	kind PayloadKind
	raw  []byte
}

func jsonPayload(raw []byte) Payload {
	return Payload{kind: PayloadJSON, raw: raw}
}

func textPayload(raw []byte) Payload {
	return Payload{kind: PayloadText, raw: raw}
}

func (p Payload) Kind() PayloadKind {
	return p.kind
}

func (p Payload) IsNull() bool {
	return p.kind == PayloadNull
}

// Raw returns the body bytes; nil for a null payload.
func (p Payload) Raw() []byte {
	return p.raw
}

// Text returns the body as a string: raw JSON for JSON payloads, "" for null.
func (p Payload) Text() string {
	return string(p.raw)
}

// Decode unmarshals a JSON payload into v. A null payload leaves v untouched.
func (p Payload) Decode(v any) error {
	switch p.kind {
	case PayloadNull:
		return nil
	case PayloadJSON:
		return sonic.ConfigStd.Unmarshal(p.raw, v)
	default:
		return ErrNotJSON
	}
}

// Value decodes a JSON payload generically; text payloads yield their string
// and null yields nil.
func (p Payload) Value() (any, error) {
	switch p.kind {
	case PayloadJSON:
		var v any
		if err := sonic.ConfigStd.Unmarshal(p.raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case PayloadText:
		return string(p.raw), nil
	default:
		return nil, nil
	}
}
