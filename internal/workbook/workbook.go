package workbook

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Format names a source encoding.
type Format string

const (
	FormatAuto Format = "auto"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// Options control decoding.
type Options struct {
	// Format forces a decoder; FormatAuto (or empty) sniffs the content.
	Format Format

	// Sheet selects a worksheet by name; the first sheet when empty.
	Sheet string

	// FileName is only used as a hint when sniffing is inconclusive.
	FileName string

	// Delimiter and Encoding apply to CSV sources.
	Delimiter rune
	Encoding  string
}

// LoadError reports input that cannot be decoded. It is always fatal to the
// run.
type LoadError struct {
	Format Format
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "load workbook"
	if e.Format != "" && e.Format != FormatAuto {
		msg += " (" + string(e.Format) + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(format Format, reason string, err error) *LoadError {
	return &LoadError{Format: format, Reason: reason, Err: err}
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Load decodes data into a merge-resolved Grid. A panic inside a decoder is
// reported as a LoadError.
func Load(data []byte, opts Options) (grid *Grid, err error) {
	defer func() {
		if r := recover(); r != nil {
			grid = nil
			err = loadErr(opts.Format, "decoder failed", fmt.Errorf("%v", r))
		}
	}()

	if len(data) == 0 {
		return nil, loadErr(opts.Format, "empty input", nil)
	}

	format := opts.Format
	if format == "" || format == FormatAuto {
		format, err = Detect(data, opts.FileName)
		if err != nil {
			return nil, err
		}
	}

	switch format {
	case FormatXLSX:
		return loadXLSX(data, opts.Sheet)
	case FormatXLS:
		return loadXLS(data, opts.Sheet)
	case FormatCSV:
		return loadCSV(data, opts.Delimiter, opts.Encoding)
	default:
		return nil, loadErr(format, "unsupported format", nil)
	}
}

// Detect guesses the format from magic bytes, falling back to the file
// extension and finally to "no NUL bytes, so text".
func Detect(data []byte, fileName string) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS, nil
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return "", loadErr(FormatXLSX, "not a zip container", nil)
	case ".xls":
		return "", loadErr(FormatXLS, "not an OLE2 document", nil)
	}

	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if bytes.IndexByte(sample, 0) < 0 {
		return FormatCSV, nil
	}
	return "", loadErr(FormatAuto, "unrecognized content", fmt.Errorf("%d bytes, no known signature", len(data)))
}
