// Package assets stores the snapshot images bound to saved results.
//
// Every image lands in one flat directory as a PNG whose base name derives
// from the player's display name. The display name is untrusted input and is
// sanitized hard before it touches the filesystem.
package assets

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// collisionCeiling bounds the `_<n>` suffix probing for a free filename.
const collisionCeiling = 1000

// maxBaseBytes caps the sanitized base name length.
const maxBaseBytes = 200

// placeholderBase replaces a display name that sanitizes to nothing.
const placeholderBase = "player"

// Store writes and removes snapshot images under a single directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates the asset directory if needed and returns the store.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{dir: "assets"}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir %s: %w", s.dir, err)
	}
	return s, nil
}

// Dir returns the asset directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save decodes raw image bytes (png or jpeg), re-encodes them as PNG and
// writes them under a name derived from displayName. On a name collision it
// probes `_<n>` suffixes up to the ceiling, beyond which ErrRetryExhausted.
// Undecodable bytes yield ErrDecode.
func (s *Store) Save(raw []byte, displayName string) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	base := SanitizeName(displayName)

	s.mu.Lock()
	defer s.mu.Unlock()

	for n := 0; n <= collisionCeiling; n++ {
		name := base + ".png"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.png", base, n)
		}
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return "", fmt.Errorf("create asset %s: %w", name, err)
		}
		encErr := png.Encode(f, img)
		closeErr := f.Close()
		if encErr == nil {
			encErr = closeErr
		}
		if encErr != nil {
			os.Remove(filepath.Join(s.dir, name))
			return "", fmt.Errorf("write asset %s: %w", name, encErr)
		}
		return name, nil
	}
	return "", fmt.Errorf("%w: base %q", ErrRetryExhausted, base)
}

// SaveDataURL saves a `data:image/...;base64,` payload. A malformed data URL
// is ErrDecode, same as undecodable image bytes.
func (s *Store) SaveDataURL(dataURL, displayName string) (string, error) {
	raw, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	return s.Save(raw, displayName)
}

// Remove deletes an asset file. Removing an absent file is a no-op; a name
// that tries to leave the directory is ErrBadName.
func (s *Store) Remove(filename string) error {
	if err := checkName(filename); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove asset %s: %w", filename, err)
	}
	return nil
}

// Exists reports whether the named asset is present.
func (s *Store) Exists(filename string) bool {
	if checkName(filename) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dir, filename))
	return err == nil
}

// Path returns the full path of an asset file.
func (s *Store) Path(filename string) (string, error) {
	if err := checkName(filename); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filename), nil
}

// checkName rejects anything that is not a bare filename.
func checkName(filename string) error {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, "/\\") ||
		strings.ContainsRune(filename, 0) ||
		filename != filepath.Base(filename) {
		return fmt.Errorf("%w: %q", ErrBadName, filename)
	}
	return nil
}

// SanitizeName maps an arbitrary display name onto a safe filesystem base
// name: letters and digits pass through, every other run becomes a single
// underscore, leading/trailing underscores are trimmed, the result is capped
// at 200 bytes on a rune boundary, and an empty result falls back to the
// placeholder.
func SanitizeName(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}

	out := b.String()
	if len(out) > maxBaseBytes {
		cut := maxBaseBytes
		for cut > 0 && !utf8Start(out[cut]) {
			cut--
		}
		out = strings.TrimRight(out[:cut], "_")
	}
	if out == "" {
		return placeholderBase
	}
	return out
}

// utf8Start reports whether b is the first byte of a UTF-8 sequence.
func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// decodeDataURL extracts the raw bytes of a base64 data URL.
func decodeDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, fmt.Errorf("%w: not a data url", ErrDecode)
	}
	idx := strings.Index(dataURL, ";base64,")
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing base64 payload", ErrDecode)
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[idx+len(";base64,"):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return raw, nil
}
