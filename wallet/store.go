// Package wallet holds the credentials of an owner and answers presentation
// requests with them. Credentials live in a Store; memdb and boltdb provide
// the in memory and on disk implementations.
package wallet

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	json "github.com/nikkolasg/hexjson"

	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/presentation"
)

var (
	// ErrNotFound is returned when no credential has the requested id.
	ErrNotFound = errors.New("credential not found")
	// ErrExists is returned when a record id is already taken. Stored
	// credentials are never overwritten.
	ErrExists = errors.New("credential already stored")
	// ErrCorrupted is returned when a decoded record does not match its hash.
	ErrCorrupted = errors.New("stored credential does not match its hash")
)

// Record is a stored credential. Key optionally names the spec input the
// credential is meant for. Hash is the credential hash, hex encoded on disk.
type Record struct {
	ID         uuid.UUID          `json:"id"`
	Key        string             `json:"key,omitempty"`
	Added      time.Time          `json:"added"`
	Hash       []byte             `json:"hash"`
	Credential *credential.Stored `json:"credential"`
}

// NewRecord gives a credential a fresh id.
func NewRecord(c *credential.Stored, key string, added time.Time) *Record {
	return &Record{
		ID:         uuid.New(),
		Key:        key,
		Added:      added.UTC(),
		Hash:       c.Credential.Hash().Bytes(),
		Credential: c,
	}
}

// Marshal encodes the record for a store.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal decodes a record. The credential goes through the same schema
// validation as any credential payload, and must hash to the stored hash.
func (r *Record) Unmarshal(b []byte) error {
	if err := json.Unmarshal(b, r); err != nil {
		return err
	}
	if r.Credential == nil {
		return fmt.Errorf("record %s: %w", r.ID, ErrCorrupted)
	}
	if !bytes.Equal(r.Hash, r.Credential.Credential.Hash().Bytes()) {
		return fmt.Errorf("record %s: %w", r.ID, ErrCorrupted)
	}
	return nil
}

// Store keeps records in insertion order. Implementations are safe for
// concurrent use.
type Store interface {
	Len(ctx context.Context) (int, error)
	Put(ctx context.Context, r *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Close(ctx context.Context) error
}

// Supplied offers records to PickCredentials, keeping their order.
func Supplied(records []*Record) []presentation.Supplied {
	out := make([]presentation.Supplied, 0, len(records))
	for _, r := range records {
		out = append(out, presentation.Supplied{Key: r.Key, Credential: r.Credential})
	}
	return out
}

// SeqToBytes serializes a sequence number to 8 bytes big-endian, which keeps
// byte order equal to numeric order.
func SeqToBytes(seq uint64) []byte {
	var buff bytes.Buffer
	_ = binary.Write(&buff, binary.BigEndian, seq)
	return buff.Bytes()
}
