package strategy

import (
	"math"
	"os"

	"github.com/rxtech-lab/argo-algo/internal/version"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultAcceptThreshold is the combined probability a CPR signal must reach.
const DefaultAcceptThreshold = 0.6

// baseModelCount is the number of base models feeding the meta model.
const baseModelCount = 4

// ProbabilityModel returns the probability that a feature vector is a winning setup.
type ProbabilityModel interface {
	Predict(features []float64) (float64, error)
}

// Calibration is a Platt scaling of a raw logit.
type Calibration struct {
	Slope  float64 `yaml:"slope"`
	Offset float64 `yaml:"offset"`
}

// LogisticModel is a pre-trained logistic regression with optional input
// standardization and output calibration.
type LogisticModel struct {
	Name        string       `yaml:"name"`
	Intercept   float64      `yaml:"intercept"`
	Weights     []float64    `yaml:"weights"`
	Means       []float64    `yaml:"means,omitempty"`
	Scales      []float64    `yaml:"scales,omitempty"`
	Calibration *Calibration `yaml:"calibration,omitempty"`
}

// Predict implements ProbabilityModel.
func (m LogisticModel) Predict(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, errors.Newf(errors.ErrCodeModelLoadFailed,
			"model %s expects %d features, got %d", m.Name, len(m.Weights), len(features))
	}

	z := m.Intercept

	for i, x := range features {
		if i < len(m.Means) {
			x -= m.Means[i]
		}

		if i < len(m.Scales) && m.Scales[i] != 0 {
			x /= m.Scales[i]
		}

		z += m.Weights[i] * x
	}

	if m.Calibration != nil {
		z = m.Calibration.Slope*z + m.Calibration.Offset
	}

	return sigmoid(z), nil
}

// ConstantModel always predicts the same probability.
type ConstantModel float64

// Predict implements ProbabilityModel.
func (c ConstantModel) Predict([]float64) (float64, error) {
	return float64(c), nil
}

// Ensemble combines four base model probabilities through a meta model.
type Ensemble struct {
	base      []ProbabilityModel
	meta      ProbabilityModel
	threshold float64
}

// NewEnsemble creates an ensemble. It needs exactly four base models.
func NewEnsemble(base []ProbabilityModel, meta ProbabilityModel, threshold float64) (*Ensemble, error) {
	if len(base) != baseModelCount {
		return nil, errors.Newf(errors.ErrCodeModelLoadFailed, "ensemble needs %d base models, got %d", baseModelCount, len(base))
	}

	if meta == nil {
		return nil, errors.New(errors.ErrCodeModelLoadFailed, "ensemble needs a meta model")
	}

	if threshold <= 0 {
		threshold = DefaultAcceptThreshold
	}

	return &Ensemble{
		base:      base,
		meta:      meta,
		threshold: threshold,
	}, nil
}

// Probability returns the meta model's probability for the base model outputs.
func (e *Ensemble) Probability(features []float64) (float64, error) {
	probs := make([]float64, len(e.base))

	for i, model := range e.base {
		p, err := model.Predict(features)
		if err != nil {
			return 0, err
		}

		probs[i] = p
	}

	return e.meta.Predict(probs)
}

// Accept reports whether the combined probability reaches the threshold.
// A nil ensemble accepts everything with probability 1.
func (e *Ensemble) Accept(features []float64) (bool, float64, error) {
	if e == nil {
		return true, 1, nil
	}

	p, err := e.Probability(features)
	if err != nil {
		return false, 0, err
	}

	return p >= e.threshold, p, nil
}

// ensembleFile is the on-disk model layout.
type ensembleFile struct {
	Format     string          `yaml:"format"`
	Threshold  float64         `yaml:"threshold"`
	BaseModels []LogisticModel `yaml:"base_models"`
	MetaModel  LogisticModel   `yaml:"meta_model"`
}

// LoadEnsemble reads a model file. An empty path, or a path that does not
// exist, yields a nil ensemble, which accepts every signal.
func LoadEnsemble(path string, threshold float64) (*Ensemble, error) {
	if path == "" {
		return nil, nil //nolint:nilnil // no model configured
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil //nolint:nilnil // no model trained yet
	}

	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeModelLoadFailed, err, "failed to read model file %s", path)
	}

	var file ensembleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeModelLoadFailed, err, "failed to parse model file %s", path)
	}

	if err := version.CheckModelCompatibility(version.ModelFormat, file.Format); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeModelLoadFailed, err, "incompatible model file %s", path)
	}

	if threshold <= 0 {
		threshold = file.Threshold
	}

	base := make([]ProbabilityModel, len(file.BaseModels))
	for i, m := range file.BaseModels {
		base[i] = m
	}

	return NewEnsemble(base, file.MetaModel, threshold)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
