// Package importer turns uploaded spreadsheets into batch intake rows.
package importer

import (
	"encoding/csv"
	"fmt"
	"github.com/maxaizer/talent-intake/internal/services"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")

type column int

const (
	columnPassthrough column = iota
	columnName
	columnProfileURL
	columnEmail
	columnHeadline
	columnLocation
	columnPhone
)

var headerAliases = map[string]column{
	"name":           columnName,
	"full_name":      columnName,
	"candidate_name": columnName,
	"profile_url":    columnProfileURL,
	"url":            columnProfileURL,
	"linkedin":       columnProfileURL,
	"linkedin_url":   columnProfileURL,
	"email":          columnEmail,
	"e-mail":         columnEmail,
	"email_address":  columnEmail,
	"headline":       columnHeadline,
	"title":          columnHeadline,
	"location":       columnLocation,
	"phone":          columnPhone,
}

// ReadFile reads the first sheet of an .xlsx file or a .csv file. The first
// row is the header.
func ReadFile(path string) ([]services.BatchRow, error) {
	var (
		records [][]string
		err     error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err = readXlsx(path)
	case ".csv":
		records, err = readCsv(path)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return FromRecords(records)
}

func readXlsx(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %w", err)
	}
	return rows, nil
}

func readCsv(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv: %w", err)
	}
	return records, nil
}

// FromRecords maps raw records to batch rows. Unknown columns are kept as
// passthrough fields. Blank records are dropped.
func FromRecords(records [][]string) ([]services.BatchRow, error) {
	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}

	header := make([]string, len(records[0]))
	kinds := make([]column, len(records[0]))
	known := false
	for i, title := range records[0] {
		header[i] = headerKey(title)
		kinds[i] = headerAliases[header[i]]
		if kinds[i] == columnName || kinds[i] == columnProfileURL {
			known = true
		}
	}
	if !known {
		return nil, errors.New("header must contain a name or profile url column")
	}

	rows := make([]services.BatchRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		rows = append(rows, toRow(header, kinds, record))
	}
	return rows, nil
}

func toRow(header []string, kinds []column, record []string) services.BatchRow {
	var row services.BatchRow
	for i, value := range record {
		if i >= len(kinds) {
			break
		}
		value = strings.TrimSpace(value)
		switch kinds[i] {
		case columnName:
			row.Identity.Name = value
		case columnProfileURL:
			row.Identity.ProfileURL = value
		case columnEmail:
			row.Identity.Email = value
		case columnHeadline:
			row.Profile.Headline = value
		case columnLocation:
			row.Profile.Location = value
		case columnPhone:
			row.Profile.Phone = value
		default:
			if header[i] == "" || value == "" {
				continue
			}
			if row.Fields == nil {
				row.Fields = map[string]string{}
			}
			row.Fields[header[i]] = value
		}
	}
	return row
}

func headerKey(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), "_")
}

func isBlank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
