package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	devenv "harvest-backend/dev/env"
)

// WriteJSON writes v as indented JSON, the file is replaced atomically so a
// failed write never leaves a partial document behind.
func WriteJSON(path string, v any) error {
	var contents bytes.Buffer
	encoder := json.NewEncoder(&contents)
	// urls keep their & instead of \u0026
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFile(path, func(f *os.File) error {
		_, err := f.Write(contents.Bytes())
		return err
	})
}

// WriteCSV writes a header row followed by rows.
func WriteCSV(path string, header []string, rows [][]string) error {
	return writeFile(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		err := w.Write(header)
		if err != nil {
			return err
		}
		err = w.WriteAll(rows)
		if err != nil {
			return err
		}
		return w.Error()
	})
}

func writeFile(path string, write func(f *os.File) error) error {
	path, err := devenv.ResolvePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = write(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
