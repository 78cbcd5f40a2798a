// Package sheet reads spreadsheet files into rows and writes reports.
package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmpty is returned for files without a header row
var ErrEmpty = errors.New("no header row")

// Read parses a file by extension. Files other than .csv are read as xlsx.
func Read(name string, r io.Reader) ([]map[string]string, error) {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return ReadCSV(r)
	}
	return ReadXLSX(r)
}

// ReadXLSX returns the rows of the first sheet keyed by the header row.
// Cells are read raw so dates arrive as serial numbers rather than in the
// workbook's display format.
func ReadXLSX(r io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("open workbook: %w", ErrEmpty)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, ErrEmpty)
	}

	return toMaps(rows[0], rows[1:]), nil
}

// ReadCSV returns CSV rows keyed by the header row. UTF-8 with or without
// BOM and Windows-1252 are accepted, separated by ',' or ';'.
func ReadCSV(r io.Reader) ([]map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	data, err = toUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffComma(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: %w", ErrEmpty)
	}

	return toMaps(records[0], records[1:]), nil
}

func toUTF8(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), nil
	}
	if bytes.HasPrefix(data, []byte{0xff, 0xfe}) || bytes.HasPrefix(data, []byte{0xfe, 0xff}) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		return out, err
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	return out, err
}

// sniffComma picks ';' when the header line has more of them than commas,
// as spreadsheets exported with a comma decimal separator do.
func sniffComma(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// toMaps keys each row by header. Short rows are padded with empty values,
// extra cells and unnamed columns are dropped.
func toMaps(header []string, rows [][]string) []map[string]string {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]string, len(names))
		for i, name := range names {
			if name == "" {
				continue
			}
			if i < len(row) {
				m[name] = row[i]
			} else {
				m[name] = ""
			}
		}
		out = append(out, m)
	}
	return out
}
