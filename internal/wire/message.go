// Package wire implements the on-wire datagram format shared by routers
// and hosts: a single self-describing JSON object per datagram, tagged by
// "kind". Encoding/decoding here is the leaf dependency of the whole
// module (spec.md §2 "dependency order").
package wire

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the shape of a Message. Dispatch on Kind is a plain
// switch, never runtime type reflection (spec.md §9).
type Kind string

const (
	KindLSA   Kind = "LSA"
	KindData  Kind = "DATA"
	KindAck   Kind = "ACK"
	KindHello Kind = "HELLO"
)

// MaxDatagramSize is the implementation limit on a single encoded
// datagram (spec.md §6). It comfortably accommodates an LSA listing up to
// 16 neighbors.
const MaxDatagramSize = 4096

// InitialTTL is the hop count a freshly-originated LSA or DATA datagram
// starts with (spec.md §4.1).
const InitialTTL = 16

// Message is the union of every field used by any Kind. Only the fields
// relevant to a given Kind are populated; the rest are left at their zero
// value and omitted from the wire encoding.
type Message struct {
	Kind Kind `json:"kind"`

	// LSA fields.
	Originator string        `json:"originator,omitempty"`
	Sequence   uint64        `json:"sequence,omitempty"`
	Links      map[string]int `json:"links,omitempty"`
	AgeEmitted int64         `json:"age_emitted,omitempty"` // unix seconds, informational only

	// DATA / ACK / HELLO fields.
	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Payload     string `json:"payload,omitempty"`
	AckSequence uint64 `json:"ack_sequence,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"` // unix seconds, HELLO only

	// TTL is shared by LSA and DATA; it is meaningless (and omitted) for
	// ACK and HELLO.
	TTL int `json:"ttl,omitempty"`
}

// Encode serializes a Message to its wire representation. It always
// succeeds for a well-formed Message (no cyclic or unsupported types are
// ever placed into Message), matching the codec round-trip law in
// spec.md §8.
func Encode(m Message) ([]byte, error) {
	var v any = m
	if m.Kind == KindLSA {
		// An LSA always carries its links object, even an empty one, since
		// Decode rejects an LSA without it.
		v = struct {
			Message
			Links map[string]int `json:"links"`
		}{m, m.Links}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return data, nil
}

// Decode parses a raw datagram into a Message and validates it: the kind
// must be known, and the string and map fields its Kind depends on must be
// present (originator and links for LSA, source and destination for DATA
// and ACK, source for HELLO). Numeric fields and the payload are not
// checked; an absent one decodes as its zero value. Malformed JSON, an
// unknown kind, or a missing checked field all return a non-nil error;
// callers are expected to drop the datagram silently on error (spec.md
// §4.1, §7).
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("wire: malformed datagram: %w", err)
	}

	if err := validate(m); err != nil {
		return Message{}, err
	}

	return m, nil
}

func validate(m Message) error {
	switch m.Kind {
	case KindLSA:
		if m.Originator == "" || m.Links == nil {
			return fmt.Errorf("wire: LSA missing required field(s)")
		}
	case KindData:
		if m.Source == "" || m.Destination == "" {
			return fmt.Errorf("wire: DATA missing required field(s)")
		}
	case KindAck:
		if m.Source == "" || m.Destination == "" {
			return fmt.Errorf("wire: ACK missing required field(s)")
		}
	case KindHello:
		if m.Source == "" {
			return fmt.Errorf("wire: HELLO missing required field(s)")
		}
	default:
		return fmt.Errorf("wire: unknown kind %q", m.Kind)
	}
	return nil
}

// DecrementTTL returns m with its TTL reduced by one and a boolean
// indicating whether the datagram is still forwardable (ttl > 0 after the
// decrement), matching spec.md §4.1's hop rule.
func DecrementTTL(m Message) (Message, bool) {
	m.TTL--
	return m, m.TTL > 0
}
