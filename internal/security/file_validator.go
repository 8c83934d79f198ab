package security

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotSource is returned for files that carry a source extension but do
// not hold Wolfram Language source text
var ErrNotSource = errors.New("not Wolfram Language source")

// FileValidator checks files before they are read in full. Files larger
// than ValidationThreshold have their header inspected for binary content.

type FileValidator struct {
	ValidationThreshold int64 // Files larger than this are validated first
	HeaderSize          int64 // Size of header to read for validation
	MaxFileSize         int64 // 0 = no limit
}

func NewFileValidator(thresholdKB, maxFileSize int64) *FileValidator {
	return &FileValidator{
		ValidationThreshold: thresholdKB * 1024,
		HeaderSize:          64 * 1024,
		MaxFileSize:         maxFileSize,
	}
}

// signatures of binary formats that sometimes end up under a source name
var signatures = []struct {
	name  string
	magic []byte
}{
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"gif", []byte("GIF8")},
	{"pdf", []byte("%PDF-")},
	{"zip", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"gzip", []byte{0x1F, 0x8B}},
	{"elf", []byte{0x7F, 'E', 'L', 'F'}},
}

// ValidateFile stats path and rejects it when it is too large, or when it
// is above the validation threshold and its header looks binary
func (fv *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if fv.MaxFileSize > 0 && info.Size() > fv.MaxFileSize {
		return fmt.Errorf("file size %d exceeds limit %d: %w", info.Size(), fv.MaxFileSize, ErrNotSource)
	}
	if info.Size() <= fv.ValidationThreshold {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, fv.HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read header: %w", err)
	}
	return fv.ValidateContent(path, header[:n])
}

// ValidateContent checks content already in memory
func (fv *FileValidator) ValidateContent(path string, content []byte) error {
	if name := MagicSignature(content); name != "" {
		return fmt.Errorf("%s signature found in %s: %w", name, filepath.Base(path), ErrNotSource)
	}
	if IsBinaryData(content) {
		return fmt.Errorf("file appears to be binary: %w", ErrNotSource)
	}
	if isSourceExtension(path) && !looksLikeSource(content) {
		return fmt.Errorf("no Wolfram Language constructs found: %w", ErrNotSource)
	}
	return nil
}

// MagicSignature names the binary format content starts with, "" if none
func MagicSignature(content []byte) string {
	for _, sig := range signatures {
		if bytes.HasPrefix(content, sig.magic) {
			return sig.name
		}
	}
	return ""
}

// IsBinaryData reports whether more than 30% of data is control bytes, or
// whether it contains a NUL byte
func IsBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range data {
		// Control characters other than tab, LF, VT, FF, CR, and DEL
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(data)) > 0.3
}

func isSourceExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m", ".wl", ".wls":
		return true
	}
	return false
}

var sourceMarkers = [][]byte{
	[]byte("["),
	[]byte(":="),
	[]byte("="),
	[]byte("(*"),
	[]byte("BeginPackage"),
	[]byte("#!"),
}

// looksLikeSource is a weak check; any bracket, assignment or comment passes
func looksLikeSource(header []byte) bool {
	if len(bytes.TrimSpace(header)) == 0 {
		return true
	}
	for _, m := range sourceMarkers {
		if bytes.Contains(header, m) {
			return true
		}
	}
	return false
}
