package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload is returned when a stored payload cannot be decoded
// into the expected entity shape. Match with errors.Is.
var ErrMalformedPayload = errors.New("domain: malformed payload")

// EncodeConversationReference serializes ref to its stored JSON form.
func EncodeConversationReference(ref ConversationReference) ([]byte, error) {
	return encode(ref)
}

// DecodeConversationReference is the exact inverse of
// EncodeConversationReference.
func DecodeConversationReference(data []byte) (ConversationReference, error) {
	return decode[ConversationReference](data)
}

// EncodeConnectionRequest serializes req to its stored JSON form.
func EncodeConnectionRequest(req ConnectionRequest) ([]byte, error) {
	return encode(req)
}

// DecodeConnectionRequest is the exact inverse of EncodeConnectionRequest.
func DecodeConnectionRequest(data []byte) (ConnectionRequest, error) {
	return decode[ConnectionRequest](data)
}

// EncodeConnection serializes conn to its stored JSON form.
func EncodeConnection(conn Connection) ([]byte, error) {
	return encode(conn)
}

// DecodeConnection is the exact inverse of EncodeConnection.
func DecodeConnection(data []byte) (Connection, error) {
	return decode[Connection](data)
}

// encode produces a deterministic JSON document of the entity's public
// fields. It performs no validation of domain invariants; empty identifiers
// encode like any other value.
func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("domain: encode: %w", err)
	}
	return data, nil
}

func decode[T any](data []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return v, nil
}
