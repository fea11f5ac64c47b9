// Package id provides centralized ID generation for the workbench daemon.
//
// Session handles and request IDs are prefixed ULIDs: lexicographically
// sortable, unique for the lifetime of the process and beyond, and
// readable in logs (term_*, req_*). A handle is opaque to callers; once
// issued it is never reused, which the ULID timestamp+entropy layout
// guarantees without any registry-side bookkeeping.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TermID is an opaque handle for a terminal session.
type TermID string

// RequestID identifies an API request.
type RequestID string

// StreamID identifies a WebSocket stream connection.
type StreamID string

const (
	termPrefix    = "term"
	requestPrefix = "req"
	streamPrefix  = "ws"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a ULID generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy
// source, useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewTermID generates a new terminal session handle.
func NewTermID() TermID {
	return TermID(Default().GenerateWithPrefix(termPrefix))
}

// NewRequestID generates a new request ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(requestPrefix))
}

// NewStreamID generates a new stream connection ID.
func NewStreamID() StreamID {
	return StreamID(Default().GenerateWithPrefix(streamPrefix))
}

func (id TermID) String() string    { return string(id) }
func (id RequestID) String() string { return string(id) }
func (id StreamID) String() string  { return string(id) }

// stripPrefix returns the ULID portion of an ID, dropping the
// "name_" prefix if one is present.
func stripPrefix(id string) string {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// IsValid checks if an ID string is a valid ULID, with or without a
// prefix.
func IsValid(id string) bool {
	_, err := ulid.Parse(stripPrefix(id))
	return err == nil
}

// Timestamp extracts the embedded timestamp from an ID string, with or
// without a prefix.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(stripPrefix(id))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
