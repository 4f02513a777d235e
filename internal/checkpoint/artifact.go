package checkpoint

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/prototyp33/barcelona-housing-demographics-analyzer-sub003/internal/model"
)

// WriteArtifact serializes the checkpoint result to a YAML file so a human
// reviewer can inspect exactly which zone failed and why.
func WriteArtifact(path string, res *model.CheckpointResult) error {
	if res == nil {
		return eris.New("checkpoint: nil result")
	}
	data, err := yaml.Marshal(res)
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal artifact")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "checkpoint: write artifact %s", path)
	}
	return nil
}
