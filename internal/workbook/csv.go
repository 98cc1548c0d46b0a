package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decoderFor maps a configured encoding name to a decoder. UTF-8 needs none.
func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8":
		return nil, nil
	case "ISO-8859-1", "LATIN1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// loadCSV decodes delimited text. All cells are Text: CSV carries no types.
//
// encoding/csv drops empty lines, but an empty line is a blank row for
// layout detection, so the gaps are reinstated from record line numbers.
func loadCSV(data []byte, delimiter rune, enc string) (*Grid, error) {
	dec, err := decoderFor(enc)
	if err != nil {
		return nil, loadErr(FormatCSV, "cannot decode", err)
	}

	text := data
	if dec != nil {
		text, err = io.ReadAll(transform.NewReader(bytes.NewReader(data), dec))
		if err != nil {
			return nil, loadErr(FormatCSV, "cannot decode", err)
		}
	}
	text = bytes.TrimPrefix(text, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(text))
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]Cell
	consumed := int64(0)
	newlines := 0
	nextLine := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, loadErr(FormatCSV, "malformed CSV", err)
		}

		line, _ := reader.FieldPos(0)
		for ; nextLine < line; nextLine++ {
			rows = append(rows, nil)
		}

		cells := make([]Cell, len(record))
		for i, v := range record {
			cells[i] = TextCell(v)
		}
		rows = append(rows, cells)

		end := reader.InputOffset()
		newlines += bytes.Count(text[consumed:end], []byte("\n"))
		consumed = end
		nextLine = newlines + 1
	}

	return newGrid("", rows, nil), nil
}
