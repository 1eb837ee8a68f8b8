package capture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var ErrEmptyCSV = errors.New("csv capture has no header row")

// LoadCSV reads a column-per-channel sample dump. The first row names the
// channels; every following row holds one sample per channel as 0/1 (or
// true/false). The sample period is not part of the file and must be
// supplied by the caller.
func LoadCSV(fsys afero.Fs, path string, samplePeriod float64) (*Capture, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f, path, samplePeriod)
}

// ReadCSV decodes CSV sample data from r. The name is used only for the
// capture's display name.
func ReadCSV(r io.Reader, name string, samplePeriod float64) (*Capture, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyCSV
		}
		return nil, err
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
		if names[i] == "" {
			return nil, fmt.Errorf("csv column %d has an empty channel name", i)
		}
	}

	channels := make(map[string][]bool, len(names))
	for _, n := range names {
		channels[n] = nil
	}
	row := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row++
		if len(record) != len(names) {
			return nil, fmt.Errorf("csv row %d has %d values, expected %d", row, len(record), len(names))
		}
		for i, field := range record {
			v, err := strconv.ParseBool(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("csv row %d column %s: %w", row, names[i], err)
			}
			channels[names[i]] = append(channels[names[i]], v)
		}
	}

	return &Capture{
		Name:         name,
		SamplePeriod: samplePeriod,
		Channels:     channels,
	}, nil
}
