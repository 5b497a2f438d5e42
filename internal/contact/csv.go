package contact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/jszwec/csvutil"
)

// outputFileMode is the permission applied to written output files.
const outputFileMode = 0o644

// CSV errors.
var (
	ErrNoPath        = errors.New("csv path cannot be empty")
	ErrMissingColumn = errors.New("header is missing a required column")
)

// requiredColumns must appear in every input header.
var requiredColumns = []string{"internal_id", "phone"} //nolint:gochecknoglobals // fixed column set

// DecodeError reports a CSV record that could not be mapped onto a Row.
type DecodeError struct {
	Path string
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decoding %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("decoding %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ReadFile loads every row of the CSV file at path into memory.
// The file must start with a header naming at least internal_id and phone;
// phone_type is optional. Any malformed record fails the whole read.
func ReadFile(path string) ([]Row, error) {
	if path == "" {
		return nil, ErrNoPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return Read(f, path)
}

// Read decodes rows from r. name is only used in error messages.
func Read(r io.Reader, name string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(cr)
	if errors.Is(err, io.EOF) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, &DecodeError{Path: name, Line: 1, Err: err}
	}
	header := dec.Header()
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			return nil, &DecodeError{Path: name, Line: 1, Err: fmt.Errorf("%w: %s", ErrMissingColumn, col)}
		}
	}

	rows := make([]Row, 0)
	for {
		var row Row
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &DecodeError{Path: name, Line: errorLine(err, len(rows)), Err: err}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// errorLine locates a failed record. Parse errors carry their own position;
// otherwise the record index is used, counting the header as line 1.
func errorLine(err error, decoded int) int {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.StartLine
	}
	return decoded + 2 //nolint:mnd // header line plus the 1-based failing record
}

// Write encodes rows as CSV, header first. An empty slice still produces a header.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if err := enc.EncodeHeader(Row{}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return fmt.Errorf("writing row %q: %w", rows[i].InternalID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FileSink writes result sets to a CSV file.
// Each Write replaces the file atomically, so readers never observe a
// partially written row.
type FileSink struct {
	Path string
}

// NewFileSink creates a sink targeting path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Write replaces the sink's file with rows.
func (s *FileSink) Write(rows []Row) error {
	if s.Path == "" {
		return ErrNoPath
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".phonecheck-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if writeErr := Write(tmp, rows); writeErr != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", s.Path, writeErr)
	}

	if syncErr := tmp.Sync(); syncErr != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", s.Path, syncErr)
	}

	if closeErr := tmp.Close(); closeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", s.Path, closeErr)
	}

	if chmodErr := os.Chmod(tmpName, outputFileMode); chmodErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting permissions on %s: %w", s.Path, chmodErr)
	}

	if renameErr := os.Rename(tmpName, s.Path); renameErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", s.Path, renameErr)
	}

	return nil
}
