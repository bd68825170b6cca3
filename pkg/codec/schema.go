package codec

import (
	"errors"
	"fmt"
)

// ErrKindMismatch is returned when an envelope holds a different record kind.
var ErrKindMismatch = errors.New("record kind mismatch")

// Envelope wraps every persisted record.
type Envelope struct {
	Kind    string     `cbor:"1,keyasint"`
	Version uint16     `cbor:"2,keyasint"`
	Payload RawMessage `cbor:"3,keyasint"`
}

// MigrationError reports a stored record that cannot be brought to the
// current schema version.
type MigrationError struct {
	Kind    string
	Version uint16
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("migrate %s v%d: %v", e.Kind, e.Version, e.Err)
	}
	return fmt.Sprintf("migrate %s v%d: no decoder registered", e.Kind, e.Version)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Migration upgrades a legacy payload to the current record type.
type Migration[T any] func(payload []byte) (T, error)

// Schema describes one record kind: its current version and a dispatch
// table of decoders for every older version still on disk.
type Schema[T any] struct {
	Kind    string
	Version uint16
	Legacy  map[uint16]Migration[T]
}

// Encode wraps v in an envelope stamped with the current version.
func (s Schema[T]) Encode(v T) ([]byte, error) {
	payload, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", s.Kind, err)
	}
	return Marshal(Envelope{Kind: s.Kind, Version: s.Version, Payload: payload})
}

// Decode returns the record at the current version, migrating older payloads.
func (s Schema[T]) Decode(data []byte) (T, error) {
	v, _, err := s.DecodeVersion(data)
	return v, err
}

// DecodeVersion is Decode that also reports the version found on disk.
func (s Schema[T]) DecodeVersion(data []byte) (T, uint16, error) {
	var zero T

	var env Envelope
	if err := Unmarshal(data, &env); err != nil {
		return zero, 0, fmt.Errorf("decode %s envelope: %w", s.Kind, err)
	}
	if env.Kind != s.Kind {
		return zero, env.Version, fmt.Errorf("%w: want %s, got %q", ErrKindMismatch, s.Kind, env.Kind)
	}

	if env.Version == s.Version {
		var v T
		if err := Unmarshal(env.Payload, &v); err != nil {
			return zero, env.Version, fmt.Errorf("decode %s payload: %w", s.Kind, err)
		}
		return v, env.Version, nil
	}

	migrate, ok := s.Legacy[env.Version]
	if !ok {
		return zero, env.Version, &MigrationError{Kind: s.Kind, Version: env.Version}
	}
	v, err := migrate(env.Payload)
	if err != nil {
		return zero, env.Version, &MigrationError{Kind: s.Kind, Version: env.Version, Err: err}
	}
	return v, env.Version, nil
}

// EncodeAt wraps an already encoded payload at an explicit version. It is
// used to stage legacy records.
func EncodeAt(kind string, version uint16, v any) ([]byte, error) {
	payload, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return Marshal(Envelope{Kind: kind, Version: version, Payload: payload})
}
