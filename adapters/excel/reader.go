package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"gomediate/domain/table"
	"gomediate/ports"
)

// DataReader handles reading Excel, CSV and JSON datasets into observation
// tables, from local files or HTTP(S) URLs. Non-numeric columns are dropped
// and reported on the dataset.
type DataReader struct {
	client *http.Client
}

// NewDataReader creates a new data reader that handles Excel, CSV and JSON files
func NewDataReader() *DataReader {
	return &DataReader{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Read loads a dataset from an .xlsx, .csv or .json file, or from an
// HTTP(S) URL serving CSV or JSON.
func (r *DataReader) Read(path string) (*ports.Dataset, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return r.readRemote(path)
	}

	fileType := "xlsx"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		fileType = "csv"
	case ".json":
		fileType = "json"
	}
	log.Printf("[DataReader] Starting to read %s file: %s", fileType, path)

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(fileType), path)
	}

	var rows [][]string
	var err error
	switch fileType {
	case "csv":
		rows, err = r.readCSVRows(path)
	case "json":
		rows, err = r.readJSONRows(path)
	default:
		rows, err = r.readExcelRows(path)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(fileType))
	}

	dataset, err := r.processRows(rows)
	if err != nil {
		return nil, err
	}
	dataset.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	log.Printf("[DataReader] %s file processed (%d columns kept, %d dropped, %d rows)",
		strings.ToUpper(fileType), dataset.Table.NumCols(), len(dataset.DroppedColumns), dataset.Table.NumRows())
	return dataset, nil
}

func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	log.Printf("[DataReader] Excel file opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	// Always use Sheet1
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("failed to read Sheet1: %w", err)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// readRemote fetches a dataset over HTTP. The URL path extension picks the
// format; anything that is not .csv is treated as JSON.
func (r *DataReader) readRemote(rawURL string) (*ports.Dataset, error) {
	log.Printf("[DataReader] Fetching remote dataset: %s", rawURL)

	resp, err := r.client.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote dataset returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset URL: %w", err)
	}

	var rows [][]string
	if strings.ToLower(filepath.Ext(u.Path)) == ".csv" {
		rows, err = csv.NewReader(bytes.NewReader(body)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV response: %w", err)
		}
	} else {
		rows, err = r.parseJSONRows(body)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("remote dataset must have at least a header row and one data row")
	}

	dataset, err := r.processRows(rows)
	if err != nil {
		return nil, err
	}
	dataset.Name = strings.TrimSuffix(filepath.Base(u.Path), filepath.Ext(u.Path))
	if dataset.Name == "" || dataset.Name == "." || dataset.Name == "/" {
		dataset.Name = "remote"
	}

	log.Printf("[DataReader] Remote dataset processed (%d columns kept, %d dropped, %d rows)",
		dataset.Table.NumCols(), len(dataset.DroppedColumns), dataset.Table.NumRows())
	return dataset, nil
}

func (r *DataReader) readJSONRows(path string) ([][]string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	return r.parseJSONRows(body)
}

// parseJSONRows flattens a JSON document into header+data rows so JSON input
// shares the CSV/Excel column rules. The document must hold an array of flat
// record objects, or an object whose "data" field holds one. Column order
// follows first appearance in the document; keys absent from a record
// become empty cells.
func (r *DataReader) parseJSONRows(body []byte) ([][]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON payload")
	}

	records := gjson.ParseBytes(body)
	if records.IsObject() {
		records = records.Get("data")
	}
	if !records.IsArray() {
		return nil, fmt.Errorf("JSON dataset must be an array of records or an object with a \"data\" array")
	}

	var headers []string
	seen := make(map[string]bool)
	var parsed []map[string]string
	var badRecord error
	records.ForEach(func(_, rec gjson.Result) bool {
		if !rec.IsObject() {
			badRecord = fmt.Errorf("JSON record %d is not an object", len(parsed)+1)
			return false
		}
		row := make(map[string]string)
		rec.ForEach(func(key, value gjson.Result) bool {
			name := strings.TrimSpace(key.String())
			if name == "" {
				return true
			}
			if !seen[name] {
				seen[name] = true
				headers = append(headers, name)
			}
			switch value.Type {
			case gjson.Null:
				row[name] = ""
			case gjson.String:
				row[name] = value.String()
			default:
				row[name] = value.Raw
			}
			return true
		})
		parsed = append(parsed, row)
		return true
	})
	if badRecord != nil {
		return nil, badRecord
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("JSON dataset contains no records")
	}

	rows := make([][]string, 0, len(parsed)+1)
	rows = append(rows, headers)
	for _, row := range parsed {
		line := make([]string, len(headers))
		for j, name := range headers {
			line[j] = row[name]
		}
		rows = append(rows, line)
	}
	return rows, nil
}

// processRows converts raw string rows into a numeric table. Empty cells
// become NaN. A column with any unparseable non-empty cell, or with no
// values at all, is dropped.
func (r *DataReader) processRows(rows [][]string) (*ports.Dataset, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	data := table.New()
	var dropped []string

	for j, header := range headers {
		if header == "" {
			dropped = append(dropped, fmt.Sprintf("column_%d", j+1))
			continue
		}

		values := make([]float64, 0, len(rows)-1)
		numeric := true
		nonEmpty := 0
		for i := 1; i < len(rows); i++ {
			cell := ""
			if j < len(rows[i]) {
				cell = strings.TrimSpace(rows[i][j])
			}
			if cell == "" {
				values = append(values, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				numeric = false
				break
			}
			values = append(values, v)
			nonEmpty++
		}

		if !numeric || nonEmpty == 0 {
			dropped = append(dropped, header)
			continue
		}
		if err := data.AddColumn(header, values); err != nil {
			return nil, fmt.Errorf("column %q: %w", header, err)
		}
	}

	return &ports.Dataset{Table: data, DroppedColumns: dropped}, nil
}
