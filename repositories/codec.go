// Package repositories persists messages, notifications, and the user
// directory in BadgerDB. Keys embed a zero-padded nanosecond timestamp so
// one prefix scan yields records in chronological order; values are CBOR.
package repositories

import "github.com/fxamacker/cbor/v2"

// Deterministic encoding keeps values byte-stable across writes of the
// same record, which matters for the read-flag rewrite path.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
