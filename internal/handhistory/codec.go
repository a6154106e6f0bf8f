package handhistory

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// file is the on-disk layout: one [[hand]] table per record. Appending
// further encodings to a file keeps it valid TOML.
type file struct {
	Hands []Record `toml:"hand"`
}

// Encode writes records as TOML.
func Encode(w io.Writer, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	enc := toml.NewEncoder(w)
	enc.Indent = "\t"
	if err := enc.Encode(file{Hands: recs}); err != nil {
		return fmt.Errorf("handhistory: encode: %w", err)
	}
	return nil
}

// Decode reads every record from r.
func Decode(r io.Reader) ([]Record, error) {
	var f file
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("handhistory: decode: %w", err)
	}
	return f.Hands, nil
}

// ReadFile decodes a hands file. A missing file holds no hands.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
