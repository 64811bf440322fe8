package collect

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

// Writer owns exactly one output kind's file (spec.md §4.5, C5). The file
// is created lazily on the first record — nothing touches disk until
// there's something to write — and Flush is idempotent so it can safely
// be called once from the normal completion path and again (a no-op) on
// any cleanup path.
type Writer struct {
	Kind               collect.RecordKind
	OutputDirectory    string
	OutputPrefix       string
	ProcStartTime      time.Time
	RandomizeFilenames bool
	PrettyPrint        bool
	NoOutput           bool

	mu          sync.Mutex
	file        *os.File
	path        string
	fileCreated bool
	flushed     bool
	count       int
}

// NewWriter constructs a Writer for kind. NoOutput being set makes every
// Write a no-op count-only operation and Flush a true no-op, matching
// spec.md §8 invariant 7.
func NewWriter(kind collect.RecordKind, outputDir, prefix string, procStart time.Time, randomize, pretty, noOutput bool) *Writer {
	return &Writer{
		Kind:               kind,
		OutputDirectory:    outputDir,
		OutputPrefix:       prefix,
		ProcStartTime:      procStart,
		RandomizeFilenames: randomize,
		PrettyPrint:        pretty,
		NoOutput:           noOutput,
	}
}

// Path returns the resolved file path, valid once the first record has
// been written.
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Write appends one record. The first call creates the file (unless
// NoOutput) and opens the JSON envelope's data array.
func (w *Writer) Write(rec collect.OutputRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.NoOutput {
		w.count++
		return nil
	}

	if !w.fileCreated {
		if err := w.create(); err != nil {
			return err
		}
	} else if _, err := w.file.WriteString(","); err != nil {
		return fmt.Errorf("writer[%s]: appending separator: %w", w.Kind, err)
	}

	data := rec.Data
	if w.PrettyPrint {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "    ", "  "); err == nil {
			data = buf.Bytes()
		}
		if _, err := w.file.WriteString("\n    "); err != nil {
			return fmt.Errorf("writer[%s]: writing indent: %w", w.Kind, err)
		}
	}

	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("writer[%s]: writing record: %w", w.Kind, err)
	}
	w.count++
	return nil
}

func (w *Writer) create() error {
	name := w.resolveFilename()
	path := filepath.Join(w.OutputDirectory, name)

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrFilenameCollision, path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrFilenameCollision, path)
		}
		return fmt.Errorf("writer[%s]: creating %s: %w", w.Kind, path, err)
	}

	if _, err := f.WriteString(`{"data":[`); err != nil {
		f.Close()
		return fmt.Errorf("writer[%s]: writing header: %w", w.Kind, err)
	}

	w.file = f
	w.path = path
	w.fileCreated = true
	return nil
}

// resolveFilename builds "<procStartTime>_<?prefix_>[<randomName>|<kind>].json"
// (spec.md §4.5).
func (w *Writer) resolveFilename() string {
	ts := w.ProcStartTime.Format("20060102150405")

	name := string(w.Kind)
	if w.RandomizeFilenames {
		name = randomFileStem()
	}

	prefixPart := ""
	if w.OutputPrefix != "" {
		prefixPart = w.OutputPrefix + "_"
	}

	return fmt.Sprintf("%s_%s%s.json", ts, prefixPart, name)
}

// Flush closes the JSON envelope with the meta footer and closes the
// file. Idempotent: called again after a successful flush, or on a
// NoOutput/never-wrote-a-record writer, it does nothing (spec.md §8
// invariant 6: no file exists for a kind that produced zero records).
func (w *Writer) Flush(methods collect.MethodSet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.flushed || w.NoOutput || !w.fileCreated {
		w.flushed = true
		return nil
	}

	meta := collect.NewMetaTag(w.count, methods, w.Kind.DataType())
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("writer[%s]: encoding meta: %w", w.Kind, err)
	}

	footer := fmt.Sprintf(`],"meta":%s}`, string(metaJSON))
	if _, err := w.file.WriteString(footer); err != nil {
		w.file.Close()
		return fmt.Errorf("writer[%s]: writing footer: %w", w.Kind, err)
	}

	w.flushed = true
	return w.file.Close()
}

func randomFileStem() string {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "output"
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}
