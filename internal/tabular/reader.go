// Package tabular parses uploaded spreadsheet-like files into a uniform
// header + rows representation.
package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// AllowedExtensions lists the file extensions the pipeline can parse, in
// the order the config endpoint advertises them.
var AllowedExtensions = []string{".csv", ".xlsx", ".json"}

// ErrUnsupportedExtension is returned for files outside AllowedExtensions.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// Table is a parsed file: the distinct column headers in file order and
// one map per data row. Cells are strings; absent cells are empty.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// ExtensionAllowed reports whether ext (including the leading dot, any
// case) can be parsed.
func ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Read parses the file content according to its extension.
func Read(r io.Reader, ext string) (*Table, error) {
	switch strings.ToLower(ext) {
	case ".csv":
		return readCSV(r)
	case ".xlsx":
		return readXLSX(r)
	case ".json":
		return readJSON(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext)
	}
}

// Preview returns up to n rows for display.
func (t *Table) Preview(n int) []map[string]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

func readCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("file has no header row")
	}
	return fromRecords(records)
}

func readXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, errors.New("file has no header row")
	}
	return fromRecords(records)
}

func readJSON(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	var objects []map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &objects); err != nil {
		return nil, fmt.Errorf("parse json: expected an array of objects: %w", err)
	}

	// Key order inside a JSON object is not preserved by encoding/json, so
	// headers follow first appearance scanning the raw document.
	headers := jsonKeyOrder(data, objects)

	rows := make([]map[string]string, 0, len(objects))
	for _, obj := range objects {
		row := make(map[string]string, len(headers))
		for _, h := range headers {
			row[h] = stringify(obj[h])
		}
		rows = append(rows, row)
	}
	return &Table{Headers: headers, Rows: rows}, nil
}

// fromRecords converts a header record plus data records into a Table.
// Duplicate headers keep the first occurrence; blank headers are dropped.
func fromRecords(records [][]string) (*Table, error) {
	rawHeader := records[0]
	headers := make([]string, 0, len(rawHeader))
	index := make(map[string]int, len(rawHeader))
	for i, h := range rawHeader {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, seen := index[h]; seen {
			continue
		}
		index[h] = i
		headers = append(headers, h)
	}
	if len(headers) == 0 {
		return nil, errors.New("file has no usable column headers")
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		row := make(map[string]string, len(headers))
		for _, h := range headers {
			i := index[h]
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return &Table{Headers: headers, Rows: rows}, nil
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// jsonKeyOrder extracts object keys in first-appearance order by streaming
// the document with a decoder.
func jsonKeyOrder(data []byte, objects []map[string]any) []string {
	known := make(map[string]struct{})
	for _, obj := range objects {
		for k := range obj {
			known[k] = struct{}{}
		}
	}

	// Tokens inside a row object alternate key, value; nested values raise
	// the depth so only depth-2 scalars participate in the alternation.
	var headers []string
	seen := make(map[string]struct{}, len(known))
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	keyNext := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
				if depth == 2 && delim == '{' {
					keyNext = true
				}
			case '}', ']':
				depth--
				if depth == 2 {
					keyNext = true // a nested value just ended
				}
			}
			continue
		}
		if depth != 2 {
			continue
		}
		if keyNext {
			if key, ok := tok.(string); ok {
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					headers = append(headers, key)
				}
			}
			keyNext = false
		} else {
			keyNext = true
		}
	}

	// Fall back to map order for anything the scan missed.
	for k := range known {
		if _, ok := seen[k]; !ok {
			headers = append(headers, k)
		}
	}
	return headers
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
