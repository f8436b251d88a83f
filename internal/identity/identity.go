// Package identity supplies the opaque user identifier attached to a
// submission. The identifier is read once per submission and never cached.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/UtsahaJoshi/The-New-Hires/internal/services"
)

// ID is an opaque user identifier.
type ID string

func (id ID) String() string { return string(id) }

// Source yields the current user identifier. A missing identifier is
// reported as services.ErrMissingIdentifier.
type Source interface {
	Identifier(ctx context.Context) (ID, error)
}

// Static is a fixed identifier, mainly for tests and the --user flag.
type Static ID

func (s Static) Identifier(context.Context) (ID, error) {
	id := ID(strings.TrimSpace(string(s)))
	if id == "" {
		return "", services.Wrap(services.ErrMissingIdentifier, "identity", "read", "no user configured", nil)
	}
	return id, nil
}

// FileSource reads the stored user record written by the dashboard at
// sign-in: a JSON object whose "id" field is a string or number.
type FileSource struct {
	path string
}

// NewFileSource returns a Source backed by the session file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the session file location.
func (f *FileSource) Path() string { return f.path }

type storedUser struct {
	ID json.RawMessage `json:"id"`
}

func (f *FileSource) Identifier(ctx context.Context) (ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(f.path) == "" {
		return "", services.Wrap(services.ErrMissingIdentifier, "identity", "read", "no session file configured", nil)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrMissingIdentifier, "identity", "read", "not signed in ("+f.path+" missing)", nil)
		}
		return "", services.Wrap(services.ErrMissingIdentifier, "identity", "read", f.path, err)
	}

	var user storedUser
	if err := json.Unmarshal(data, &user); err != nil {
		return "", services.Wrap(services.ErrMissingIdentifier, "identity", "decode", f.path, err)
	}
	id, err := decodeID(user.ID)
	if err != nil {
		return "", services.Wrap(services.ErrMissingIdentifier, "identity", "decode", f.path, err)
	}
	if id == "" {
		return "", services.Wrap(services.ErrMissingIdentifier, "identity", "read", "stored user has no id", nil)
	}
	return id, nil
}

func decodeID(raw json.RawMessage) (ID, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ID(strings.TrimSpace(s)), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return ID(n.String()), nil
	}
	return "", fmt.Errorf("unsupported id value %s", string(raw))
}
