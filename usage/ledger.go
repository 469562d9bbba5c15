// Package usage keeps a bounded, in-memory record of successful submissions
// per caller. Credentials are never stored; entries are keyed by a one-way
// hash of the bearer token. State drops on process restart by design.
package usage

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultCapacity is the per-credential entry cap. Oldest entries are
// silently evicted past the cap; eviction is policy, not an error.
const DefaultCapacity = 2000

const shardCount = 16

// Entry is one recorded submission.
type Entry struct {
	Timestamp     time.Time `json:"timestamp"`
	Model         string    `json:"model"`
	PromptSummary string    `json:"prompt_summary"`
	MediaCount    int       `json:"media_count"`
	Path          string    `json:"path"`
	Kind          string    `json:"kind"`
}

// Ledger maps credential hashes to bounded most-recent-first entry sequences.
// Append is the only mutator; reads are snapshot copies.
type Ledger struct {
	capacity int
	shards   [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewLedger creates a ledger with the given per-credential capacity;
// capacity <= 0 uses DefaultCapacity.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Ledger{capacity: capacity}
	for i := range l.shards {
		l.shards[i].entries = make(map[string][]Entry)
	}
	return l
}

// HashCredential derives the ledger key for a credential. The raw token never
// leaves this function.
func HashCredential(credential string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(credential))
}

// Append records an entry for the credential, evicting the oldest entry once
// the capacity is exceeded. Safe for concurrent writers.
func (l *Ledger) Append(credential string, e Entry) {
	key := HashCredential(credential)
	s := l.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := append(s.entries[key], e)
	if len(seq) > l.capacity {
		seq = seq[len(seq)-l.capacity:]
	}
	s.entries[key] = seq
}

// Recent returns the credential's entries, most recent first. The returned
// slice is a copy; callers may mutate it freely.
func (l *Ledger) Recent(credential string) []Entry {
	key := HashCredential(credential)
	s := l.shardFor(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.entries[key]
	out := make([]Entry, len(seq))
	for i, e := range seq {
		out[len(seq)-1-i] = e
	}
	return out
}

// Len returns the number of entries stored for the credential.
func (l *Ledger) Len(credential string) int {
	key := HashCredential(credential)
	s := l.shardFor(key)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[key])
}

func (l *Ledger) shardFor(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)%shardCount]
}

// Summarize truncates a prompt for ledger storage so the ledger never holds
// full prompt text.
func Summarize(prompt string) string {
	const max = 120
	runes := []rune(prompt)
	if len(runes) <= max {
		return prompt
	}
	return string(runes[:max]) + "…"
}
