package messaging

import (
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigFastest

// ErrDecodeFailed is returned when an inbound message body is not valid JSON
// for the envelope shape.
var ErrDecodeFailed = errors.New("failed to decode message envelope")

// Decode unmarshals raw bytes into an envelope and enforces the tagged-union
// payload discipline.
func Decode(raw []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Join(ErrDecodeFailed, err)
	}

	if err := envelope.Validate(); err != nil {
		return nil, err
	}

	return &envelope, nil
}

// Encode marshals an outbound envelope.
func Encode(envelope *Envelope) ([]byte, error) {
	return json.Marshal(envelope)
}

// IsValidJSON reports whether raw is syntactically valid JSON. Used by the
// poison path to annotate failure logs.
func IsValidJSON(raw []byte) bool {
	return json.Valid(raw)
}
