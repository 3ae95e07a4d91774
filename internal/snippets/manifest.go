package snippets

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ManifestFilename is the sha256sum-format manifest in a snippet directory.
const ManifestFilename = "snippets.sha256"

// Manifest maps snippet file names to their SHA256 hashes.
type Manifest struct {
	entries map[string]string
}

// LoadManifest reads dir/snippets.sha256. It returns nil, nil when the file
// does not exist.
func LoadManifest(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, ManifestFilename))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return parseManifest(f)
}

func parseManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{entries: make(map[string]string)}
	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hash, name, ok := strings.Cut(line, "  ")
		if !ok || len(hash) != 64 {
			return nil, fmt.Errorf("manifest line %d: invalid format", lineNum)
		}
		hash = strings.ToLower(hash)
		if _, err := hex.DecodeString(hash); err != nil {
			return nil, fmt.Errorf("manifest line %d: invalid hex: %w", lineNum, err)
		}
		m.entries[strings.TrimSpace(name)] = hash
	}
	return m, sc.Err()
}

// Verify checks data against the manifest entry for filename.
func (m *Manifest) Verify(filename string, data []byte) error {
	expected, ok := m.entries[filename]
	if !ok {
		return fmt.Errorf("file %q not in manifest", filename)
	}
	if actual := HashBytes(data); actual != expected {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s", filename, expected, actual)
	}
	return nil
}

// Count returns the number of entries.
func (m *Manifest) Count() int {
	return len(m.entries)
}

// HashBytes returns the lowercase hex SHA256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateManifest hashes every .lua file in dir.
func GenerateManifest(dir string) (*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	m := &Manifest{entries: make(map[string]string)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		m.entries[entry.Name()] = HashBytes(data)
	}
	return m, nil
}

// WriteTo writes the manifest in sha256sum format, sorted by file name.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	for _, name := range names {
		n, err := fmt.Fprintf(w, "%s  %s\n", m.entries[name], name)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteFile writes the manifest into dir.
func (m *Manifest) WriteFile(dir string) error {
	f, err := os.Create(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = m.WriteTo(f)
	return err
}
