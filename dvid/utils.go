package dvid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
	Tera = 1 << 40
)

// ConvertToAbsolute returns path unchanged if it's absolute, otherwise joined to
// the given base directory.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(filepath.Join(baseDir, path))
}

// WriteJSONFile writes an arbitrary but exportable Go object to a JSON file.
func WriteJSONFile(filename string, value interface{}) error {
	m, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("Error in writing JSON file: %s [%s]", filename, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, m, "", "    "); err != nil {
		return err
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("Failed to write JSON file: %s [%s]", filename, err)
	}
	return nil
}

// ReadJSONFile returns the decoded JSON value in a file.  Unlike json.Unmarshal into
// a typed value, any top-level JSON value is returned so callers can check its shape.
func ReadJSONFile(filename string) (value interface{}, err error) {
	var fileBytes []byte
	if fileBytes, err = os.ReadFile(filename); err != nil {
		return
	}
	if len(bytes.TrimSpace(fileBytes)) == 0 {
		err = fmt.Errorf("No data in JSON file (%s)", filename)
		return
	}
	if err = json.Unmarshal(fileBytes, &value); err != nil {
		err = fmt.Errorf("Error reading JSON file (%s): %s", filename, err)
	}
	return
}
