package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

var requiredImportColumns = []string{"license_plate", "brand", "model", "owner_name", "contact_info"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ImportResult summarises a CSV import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}

// ImportVehiclesCSV reads rows with the required header columns and inserts
// them in one transaction. Rows without a plate are skipped. An unparseable
// recorded_date is stored as unknown.
func (s *AdminService) ImportVehiclesCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	colIndex, err := readImportHeader(reader)
	if err != nil {
		return ImportResult{}, err
	}

	var (
		res     ImportResult
		batch   []types.Vehicle
		lineNum = 1
	)
	for {
		lineNum++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ImportResult{}, invalid("line %d: %v", lineNum, err)
		}

		v := types.Vehicle{
			LicensePlate: getColumn(record, colIndex, "license_plate"),
			Brand:        getColumn(record, colIndex, "brand"),
			Model:        getColumn(record, colIndex, "model"),
			OwnerName:    getColumn(record, colIndex, "owner_name"),
			ContactInfo:  getColumn(record, colIndex, "contact_info"),
			Color:        getColumn(record, colIndex, "color"),
			VIN:          getColumn(record, colIndex, "vin"),
		}
		if v.LicensePlate == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("line %d: license_plate is empty", lineNum))
			continue
		}
		if rd := getColumn(record, colIndex, "recorded_date"); rd != "" {
			if d, err := types.ParseDate(rd); err == nil {
				v.RecordedDate = &d
			}
		}
		batch = append(batch, v)
	}

	n, err := s.vehicles.CreateMany(ctx, batch)
	if err != nil {
		return ImportResult{}, err
	}
	res.Imported = n
	return res, nil
}

func readImportHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, invalid("empty CSV")
	}
	if err != nil {
		return nil, invalid("reading CSV header: %v", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var missing []string
	for _, col := range requiredImportColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, invalid("missing required columns: %s", strings.Join(missing, ", "))
	}
	return colIndex, nil
}

func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
