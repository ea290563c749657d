package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"stemforge/internal/fileutil"
	"stemforge/internal/textutil"
)

// ErrNoStems is returned when no stem file could be written to the archive.
var ErrNoStems = errors.New("no stems found to archive")

// FileName builds the archive file name from a media title.
func FileName(title string, maxLen int, fallback string) string {
	return textutil.SanitizeTitle(title, maxLen, fallback) + ".zip"
}

// Create writes every readable, non-empty stem into a deflated zip at path.
// Entries are named after the stem with the source extension (drums.wav).
// The archive is written beside path and renamed into place on success.
// It returns the stem names that were written.
func Create(path string, stems map[string]string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*.zip.part")
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	var written []string
	for _, name := range Names(stems) {
		src := stems[name]
		if _, err := fileutil.VerifyNonEmpty(src); err != nil {
			continue
		}
		if err := addEntry(zw, entryName(name, src), src); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		written = append(written, name)
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if len(written) == 0 {
		return nil, ErrNoStems
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("commit archive: %w", err)
	}
	committed = true
	return written, nil
}

func entryName(stem, src string) string {
	ext := strings.ToLower(filepath.Ext(src))
	if ext == "" {
		ext = ".wav"
	}
	return stem + ext
}

func addEntry(zw *zip.Writer, name, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
