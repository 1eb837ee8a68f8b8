// Package capture loads and stores sampled waveform captures. The native
// container is .mdcap: a zip archive holding a metadata.toml document and one
// packed bit file per channel. Plain CSV sample dumps are also accepted.
package capture

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"example.com/mdiogate/internal/common"
	"example.com/mdiogate/internal/mdio"
)

var (
	ErrMissingChannel = errors.New("capture is missing a required channel")
	ErrChannelLength  = errors.New("capture channels have differing sample counts")
	ErrSamplePeriod   = errors.New("capture sample period must be positive")
)

// Capture is one immutable waveform snapshot: equal-length boolean sample
// sequences per channel at a uniform sample period.
type Capture struct {
	Name         string
	SamplePeriod float64 // seconds per sample
	Channels     map[string][]bool
}

// SampleCount returns the per-channel sample count.
func (c *Capture) SampleCount() int {
	for _, samples := range c.Channels {
		return len(samples)
	}
	return 0
}

// Validate checks that the capture can be handed to the decoder: both bus
// channels present, equal lengths, positive sample period.
func (c *Capture) Validate() error {
	if c.SamplePeriod <= 0 {
		return ErrSamplePeriod
	}
	for _, required := range []string{mdio.ChannelClock, mdio.ChannelData} {
		if _, ok := c.Channels[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingChannel, required)
		}
	}
	n := -1
	for name, samples := range c.Channels {
		if n == -1 {
			n = len(samples)
			continue
		}
		if len(samples) != n {
			return fmt.Errorf("%w: %s has %d samples, expected %d", ErrChannelLength, name, len(samples), n)
		}
	}
	return nil
}

// Digest returns the hex SHA-256 of the capture file at path.
func Digest(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return common.Sha256OfReader(f)
}
