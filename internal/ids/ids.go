package ids

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a fresh ksuid string.
func New() string {
	return ksuid.New().String()
}

// RequestID returns a per-request correlation id.
func RequestID() string {
	return uuid.NewString()
}

const clientIDFile = "client_id"

// ClientID returns the durable per-installation id, generating and storing
// one under dir on first use.
func ClientID(dir string) (string, error) {
	path := filepath.Join(dir, clientIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, perr := ksuid.Parse(id); perr == nil {
			return id, nil
		}
		// unreadable id, regenerate below
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	id := New()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	return id, nil
}
