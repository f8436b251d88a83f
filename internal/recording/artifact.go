package recording

import (
	"bytes"
	"io"
	"time"
)

// Artifact is the immutable media object produced by Buffer.Finalize.
type Artifact struct {
	data        []byte
	contentType string
	attemptID   string
	chunkCount  int
	createdAt   time.Time
}

// NewArtifact builds an artifact directly from bytes, copying data.
func NewArtifact(attemptID, contentType string, data []byte) *Artifact {
	cp := make([]byte, len(data))
	copy(cp, data)
	chunks := 0
	if len(cp) > 0 {
		chunks = 1
	}
	return &Artifact{
		data:        cp,
		contentType: contentType,
		attemptID:   attemptID,
		chunkCount:  chunks,
		createdAt:   time.Now(),
	}
}

// Bytes returns a copy of the artifact content.
func (a *Artifact) Bytes() []byte {
	if a == nil {
		return nil
	}
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out
}

// Reader returns a read-only view over the artifact content.
func (a *Artifact) Reader() io.Reader {
	if a == nil {
		return bytes.NewReader(nil)
	}
	return bytes.NewReader(a.data)
}

func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.data)
}

func (a *Artifact) Empty() bool { return a.Size() == 0 }

func (a *Artifact) ContentType() string {
	if a == nil {
		return ""
	}
	return a.contentType
}

func (a *Artifact) AttemptID() string {
	if a == nil {
		return ""
	}
	return a.attemptID
}

func (a *Artifact) ChunkCount() int {
	if a == nil {
		return 0
	}
	return a.chunkCount
}

func (a *Artifact) CreatedAt() time.Time {
	if a == nil {
		return time.Time{}
	}
	return a.createdAt
}
