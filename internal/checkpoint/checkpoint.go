package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/IrisRainbowNeko/sample-watermark-eraser/internal/model"
)

// Weight is one named parameter tensor.
type Weight struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// State is the per-epoch checkpoint document. Only the generator's learned
// parameters are persisted; optimizer state is not, and there is no load
// path — checkpoints are consumed by downstream inference tooling.
type State struct {
	Epoch        int       `json:"epoch"`
	LearningRate float64   `json:"learning_rate"`
	Weights      []Weight  `json:"weights"`
	Framework    string    `json:"framework"`
	CreatedAt    time.Time `json:"created_at"`
}

// Save writes the generator parameters for one epoch into dir as
// ep_<epoch>.json and returns the file path.
func Save(dir string, epoch int, lr float64, params []*model.Param) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "checkpoint: create output dir")
	}

	state := State{
		Epoch:        epoch,
		LearningRate: lr,
		Weights:      make([]Weight, 0, len(params)),
		Framework:    "sample-watermark-eraser",
		CreatedAt:    time.Now(),
	}
	for _, p := range params {
		state.Weights = append(state.Weights, Weight{
			Name:  p.Name,
			Shape: append([]int(nil), p.Shape...),
			Data:  append([]float32(nil), p.Data...),
		})
	}

	path := filepath.Join(dir, fmt.Sprintf("ep_%d.json", epoch))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "checkpoint: create file")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		return "", errors.Wrap(err, "checkpoint: encode")
	}
	return path, nil
}
