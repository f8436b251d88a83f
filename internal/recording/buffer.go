package recording

import (
	"sync"
	"time"

	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

// Chunk is one opaque media fragment in emission order.
type Chunk struct {
	Data []byte
	At   time.Time
}

// Buffer is the append-only chunk store for a single recording attempt.
type Buffer struct {
	mu        sync.Mutex
	attemptID string
	chunks    []Chunk
	size      int
	finalized bool
	artifact  *Artifact
}

// NewBuffer returns an open buffer tagged with attemptID.
func NewBuffer(attemptID string) *Buffer {
	return &Buffer{attemptID: attemptID}
}

// AttemptID returns the attempt the buffer currently belongs to.
func (b *Buffer) AttemptID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attemptID
}

// Append stores a copy of chunk. Empty chunks are dropped.
func (b *Buffer) Append(chunk Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return services.Wrap(services.ErrInvalidState, "recording", "append", "buffer already finalized", nil)
	}
	if len(chunk.Data) == 0 {
		return nil
	}
	data := make([]byte, len(chunk.Data))
	copy(data, chunk.Data)
	at := chunk.At
	if at.IsZero() {
		at = time.Now()
	}
	b.chunks = append(b.chunks, Chunk{Data: data, At: at})
	b.size += len(data)
	return nil
}

// Len reports the number of buffered chunks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Size reports the number of buffered bytes.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Finalized reports whether Finalize has already run.
func (b *Buffer) Finalized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalized
}

// Finalize concatenates every chunk in order into one Artifact. It succeeds
// once per attempt.
func (b *Buffer) Finalize(contentType string) (*Artifact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, services.Wrap(services.ErrInvalidState, "recording", "finalize", "buffer already finalized", nil)
	}

	data := make([]byte, 0, b.size)
	for _, chunk := range b.chunks {
		data = append(data, chunk.Data...)
	}
	artifact := &Artifact{
		data:        data,
		contentType: contentType,
		attemptID:   b.attemptID,
		chunkCount:  len(b.chunks),
		createdAt:   time.Now(),
	}
	b.finalized = true
	b.artifact = artifact
	b.chunks = nil
	return artifact, nil
}

// Artifact returns the finalized artifact, or nil while the buffer is open.
func (b *Buffer) Artifact() *Artifact {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.artifact
}

// Reset discards all chunks, the finalized flag and artifact, and retags the
// buffer for a new attempt.
func (b *Buffer) Reset(attemptID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attemptID = attemptID
	b.chunks = nil
	b.size = 0
	b.finalized = false
	b.artifact = nil
}
