package capture

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// MetadataName is the TOML document inside a .mdcap archive that describes
// the capture geometry and maps channel names to bit files.
const MetadataName = "metadata.toml"

var (
	ErrNoMetadata  = errors.New("metadata.toml not found in capture archive")
	ErrBitFileSize = errors.New("bit file too small for declared sample count")
)

type metadataDoc struct {
	Capture  metadataCapture   `toml:"capture"`
	Channels map[string]string `toml:"channels"`
}

type metadataCapture struct {
	Name           string  `toml:"name"`
	SamplePeriodNs float64 `toml:"sample_period_ns"`
	SampleCount    int     `toml:"sample_count"`
}

// Load reads a .mdcap container from fsys.
func Load(fsys afero.Fs, path string) (*Capture, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open capture archive: %w", err)
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, zf := range zr.File {
		entries[zf.Name] = zf
	}
	metaFile, ok := entries[MetadataName]
	if !ok {
		return nil, ErrNoMetadata
	}
	metaBytes, err := readZipFile(metaFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", MetadataName, err)
	}
	var meta metadataDoc
	if err := toml.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MetadataName, err)
	}
	if meta.Capture.SamplePeriodNs <= 0 {
		return nil, ErrSamplePeriod
	}
	if meta.Capture.SampleCount < 0 {
		return nil, fmt.Errorf("negative sample count %d", meta.Capture.SampleCount)
	}
	if len(meta.Channels) == 0 {
		return nil, errors.New("capture archive declares no channels")
	}

	channels := make(map[string][]bool, len(meta.Channels))
	for name, fileName := range meta.Channels {
		zf, ok := entries[fileName]
		if !ok {
			return nil, fmt.Errorf("channel %s: bit file %s missing from archive", name, fileName)
		}
		packed, err := readZipFile(zf)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}
		samples, err := unpackBits(packed, meta.Capture.SampleCount)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}
		channels[name] = samples
	}

	c := &Capture{
		Name:         meta.Capture.Name,
		SamplePeriod: meta.Capture.SamplePeriodNs * 1e-9,
		Channels:     channels,
	}
	return c, nil
}

// Save writes c as a .mdcap container to fsys at path.
func Save(fsys afero.Fs, path string, c *Capture) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)

	meta := metadataDoc{
		Capture: metadataCapture{
			Name:           c.Name,
			SamplePeriodNs: c.SamplePeriod * 1e9,
			SampleCount:    c.SampleCount(),
		},
		Channels: make(map[string]string, len(c.Channels)),
	}
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
		meta.Channels[name] = bitFileName(name)
	}
	sort.Strings(names)

	write := func() error {
		mw, err := zw.Create(MetadataName)
		if err != nil {
			return err
		}
		if err := toml.NewEncoder(mw).Encode(meta); err != nil {
			return fmt.Errorf("encode %s: %w", MetadataName, err)
		}
		for _, name := range names {
			cw, err := zw.Create(bitFileName(name))
			if err != nil {
				return err
			}
			if _, err := cw.Write(packBits(c.Channels[name])); err != nil {
				return err
			}
		}
		return zw.Close()
	}
	if err := write(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func bitFileName(channel string) string {
	return strings.ToLower(channel) + ".bits"
}

func readZipFile(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// packBits stores 8 samples per byte, LSB first.
func packBits(samples []bool) []byte {
	out := make([]byte, (len(samples)+7)/8)
	for i, v := range samples {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func unpackBits(packed []byte, count int) ([]bool, error) {
	if count > len(packed)*8 {
		return nil, fmt.Errorf("%w: %d bytes for %d samples", ErrBitFileSize, len(packed), count)
	}
	out := make([]bool, count)
	for i := range out {
		out[i] = packed[i/8]>>uint(i%8)&1 != 0
	}
	return out, nil
}
