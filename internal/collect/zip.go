package collect

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"
)

// BundleFiles writes every path in files into a single ZIP archive at
// zipPath, overwriting any existing file there. Unlike the per-kind
// JSON writers, a zip bundle is a regenerated snapshot of the pass that
// just completed — a loop pass intentionally reuses the same
// "BloodHoundLoopResults.zip" name every time (spec.md §4.6), so
// collision here is expected, not fatal. If password is non-empty,
// each entry is encrypted with the legacy PKWARE ZipCrypto stream
// cipher (see zipcrypto.go) — nothing in the retrieval pack implements
// password-protected ZIP, so this is hand-written against the
// documented APPNOTE.TXT algorithm rather than pulled in as a
// dependency (see DESIGN.md).
func BundleFiles(zipPath string, files []string, password string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("creating zip %s: %w", zipPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, path := range files {
		if err := addFile(zw, path, password); err != nil {
			zw.Close()
			return fmt.Errorf("adding %s to zip: %w", path, err)
		}
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, path, password string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   zip.Deflate,
		Modified: time.Now(),
	}

	if password == "" {
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	return writeEncryptedEntry(zw, header, data, password)
}

// writeEncryptedEntry deflates data, wraps the compressed stream in a
// ZipCrypto cipher keyed on password, and appends it as a raw (already
// compressed+encrypted) entry — archive/zip must not try to compress
// ciphertext a second time.
func writeEncryptedEntry(zw *zip.Writer, header *zip.FileHeader, data []byte, password string) error {
	compressed, err := deflate(data)
	if err != nil {
		return err
	}

	crc := crc32.ChecksumIEEE(data)
	encrypted := zipCryptoEncrypt(compressed, password, crc)

	header.Flags |= 0x1 // bit 0: entry is encrypted
	header.CRC32 = crc
	header.UncompressedSize64 = uint64(len(data))
	header.CompressedSize64 = uint64(len(encrypted))

	w, err := zw.CreateRaw(header)
	if err != nil {
		return err
	}
	_, err = w.Write(encrypted)
	return err
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
