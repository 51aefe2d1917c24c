package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Archive writes entries to w in order. Names are reduced to their base and repeated
// names get a numeric suffix so no entry overwrites another.
func Archive(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(entries))
	for i, entry := range entries {
		name := uniqueName(entryName(entry.Name, i), seen)
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: entry.Modified}
		if hdr.Modified.IsZero() {
			hdr.Modified = time.Unix(0, 0).UTC()
		}
		f, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := f.Write(entry.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	return zw.Close()
}

func ArchiveBytes(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Archive(buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func entryName(name string, index int) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" || name == ".." {
		return fmt.Sprintf("file-%d", index)
	}
	return name
}

func uniqueName(name string, seen map[string]int) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
