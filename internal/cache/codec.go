package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FormatVersion is the envelope version written by this build
const FormatVersion = 2

var magic = []byte("webrag-cache/")

var (
	// ErrCorrupt marks an entry whose bytes cannot be trusted
	ErrCorrupt = errors.New("corrupt cache entry")
	// ErrUnsupportedVersion marks an entry written by an unknown format
	ErrUnsupportedVersion = errors.New("unsupported cache entry version")
)

// Entry is a decoded cache record
type Entry struct {
	Text     string
	StoredAt time.Time
}

// Text travels as bytes (base64 in JSON) so text that is not valid UTF-8
// survives unchanged
type envelope struct {
	Text     []byte `json:"text"`
	StoredAt int64  `json:"stored_at"`
	SHA256   string `json:"sha256"`
}

// Encode serializes e as "webrag-cache/<version>\n" followed by a JSON body
// carrying a checksum of the text
func Encode(e Entry) ([]byte, error) {
	sum := sha256.Sum256([]byte(e.Text))
	body, err := json.Marshal(envelope{
		Text:     []byte(e.Text),
		StoredAt: e.StoredAt.Unix(),
		SHA256:   hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(magic)
	fmt.Fprintf(&buf, "%d\n", FormatVersion)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode parses and verifies an encoded entry
func Decode(data []byte) (Entry, error) {
	if !bytes.HasPrefix(data, magic) {
		return Entry{}, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	rest := data[len(magic):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return Entry{}, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	var version int
	if _, err := fmt.Sscanf(string(rest[:nl]), "%d", &version); err != nil {
		return Entry{}, fmt.Errorf("%w: bad version %q", ErrCorrupt, rest[:nl])
	}
	if version != FormatVersion {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var env envelope
	if err := json.Unmarshal(rest[nl+1:], &env); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sum := sha256.Sum256(env.Text)
	if hex.EncodeToString(sum[:]) != env.SHA256 {
		return Entry{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return Entry{Text: string(env.Text), StoredAt: time.Unix(env.StoredAt, 0)}, nil
}
