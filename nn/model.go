package nn

import (
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	metaFile  = "meta.json"
	modelFile = "checkpoint.model"
)

// Meta is the JSON sidecar saved next to a checkpoint.
type Meta struct {
	NNConf Config `json:"nn_conf"`
}

// Save writes the network into dirName as a gob checkpoint plus a JSON
// meta file describing its configuration.
func (n *Net) Save(dirName string) error {
	if err := os.MkdirAll(dirName, 0755); err != nil {
		return errors.WithStack(err)
	}

	meta := &Meta{NNConf: n.conf}
	jsonStr, err := json.MarshalIndent(meta, "", "	")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(filepath.Join(dirName, metaFile), jsonStr, 0644); err != nil {
		return errors.WithStack(err)
	}

	f, err := os.OpenFile(filepath.Join(dirName, modelFile), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return errors.WithStack(enc.Encode(n.weights))
}

// Load reads a checkpoint directory written by Save and returns a network
// ready for inference.
func Load(dirName string) (*Net, error) {
	metaStr, err := os.ReadFile(filepath.Join(dirName, metaFile))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	meta := &Meta{}
	if err := json.Unmarshal(metaStr, meta); err != nil {
		return nil, errors.WithStack(err)
	}
	if !meta.NNConf.IsValid() {
		return nil, errors.Errorf("checkpoint meta holds an invalid config: %+v", meta.NNConf)
	}

	f, err := os.Open(filepath.Join(dirName, modelFile))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	weights := &Weights{}
	dec := gob.NewDecoder(f)
	if err := dec.Decode(weights); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Net{conf: meta.NNConf, weights: weights, graphs: make(map[int]*fwdGraph)}, nil
}
