// Package nn holds the network runtime: a forward-only convolutional
// dual-head graph, its gob checkpoints and the adapter that turns raw
// tensor outputs into per-move priors for the search.
package nn

import "github.com/divinenn/encoding"

// Config configures the neural network.
type Config struct {
	K            int `json:"k"`             // number of filters
	SharedLayers int `json:"shared_layers"` // number of shared conv layers
	FC           int `json:"fc"`            // fc layer width of the value head
	Width        int `json:"width"`         // board size width
	Height       int `json:"height"`        // board size height
	Features     int `json:"features"`      // input plane count
	PolicyPlanes int `json:"policy_planes"` // policy plane count
}

// DefaultConfig returns the configuration matching the encoding package's
// tensor shapes.
func DefaultConfig() Config {
	k := round((encoding.Rows * encoding.Cols) / 3)
	return Config{
		K:            k,
		SharedLayers: 3,
		FC:           2 * k,
		Width:        encoding.Cols,
		Height:       encoding.Rows,
		Features:     encoding.Planes,
		PolicyPlanes: encoding.PolicyPlanes,
	}
}

// ActionSpace returns the flattened policy size.
func (c Config) ActionSpace() int { return c.PolicyPlanes * c.Height * c.Width }

// IsValid reports whether the config describes a buildable network.
func (c Config) IsValid() bool {
	return c.K >= 1 &&
		c.SharedLayers >= 0 &&
		c.FC > 1 &&
		c.Features > 0 &&
		c.PolicyPlanes > 0 &&
		c.Width > 0 && c.Height > 0
}

func round(a int) int {
	n := a - 1
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++

	lt := n / 2
	if (a - lt) < (n - a) {
		return lt
	}
	return n
}
