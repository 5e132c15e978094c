package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"crypto-liquidity-lab/internal/domain"
)

// Store errors.
var (
	// ErrArtifactExists is returned on an attempt to overwrite an existing
	// version. Artifacts are write-once.
	ErrArtifactExists = errors.New("artifact version already exists")

	// ErrArtifactNotFound is returned when a version directory is absent.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Persisted file names inside a version directory.
const (
	metadataFile = "metadata.json"
	modelFile    = "model.json"
	scalerFile   = "scaler.json"
)

// metadata is the on-disk metadata record. Estimator and scaler parameters
// live in their own blobs.
type metadata struct {
	ModelName    string                `json:"model_name"`
	Version      string                `json:"version"`
	TrainedOn    time.Time             `json:"trained_on"`
	Features     []string              `json:"features"`
	Metrics      domain.CandidateScore `json:"metrics"`
	FoldMetrics  []domain.FoldMetrics  `json:"fold_metrics"`
	DataFrom     time.Time             `json:"data_from"`
	DataTo       time.Time             `json:"data_to"`
	DefaultValue float64               `json:"default_value"`
}

// Save persists the artifact under dir/<model_name>_<version>/.
// Fills in a.Version when empty. Returns ErrArtifactExists when the version
// directory is already present.
func Save(dir string, a *domain.Artifact) (string, error) {
	if a.Version == "" {
		version, err := ComputeVersion(a)
		if err != nil {
			return "", err
		}
		a.Version = version
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s", a.ModelName, a.Version))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrArtifactExists, path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	meta := metadata{
		ModelName:    a.ModelName,
		Version:      a.Version,
		TrainedOn:    a.TrainedOn,
		Features:     a.Features,
		Metrics:      a.Metrics,
		FoldMetrics:  a.FoldMetrics,
		DataFrom:     a.DataFrom,
		DataTo:       a.DataTo,
		DefaultValue: a.DefaultValue,
	}
	if err := writeJSON(filepath.Join(path, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(path, scalerFile), a.Scaler); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(path, modelFile), a.ModelParams, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", modelFile, err)
	}
	return path, nil
}

// Load reads an artifact back from its version directory.
func Load(path string) (*domain.Artifact, error) {
	var meta metadata
	if err := readJSON(filepath.Join(path, metadataFile), &meta); err != nil {
		if os.IsNotExist(errors.Unwrap(err)) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, err
	}

	var scaler domain.ScalerParams
	if err := readJSON(filepath.Join(path, scalerFile), &scaler); err != nil {
		return nil, err
	}

	params, err := os.ReadFile(filepath.Join(path, modelFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", modelFile, err)
	}

	return &domain.Artifact{
		ModelName:    meta.ModelName,
		Version:      meta.Version,
		TrainedOn:    meta.TrainedOn,
		Features:     meta.Features,
		Scaler:       scaler,
		Metrics:      meta.Metrics,
		FoldMetrics:  meta.FoldMetrics,
		DataFrom:     meta.DataFrom,
		DataTo:       meta.DataTo,
		ModelParams:  params,
		DefaultValue: meta.DefaultValue,
	}, nil
}

// LoadLatest loads the most recently trained artifact under dir.
func LoadLatest(dir string) (*domain.Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}

	var artifacts []*domain.Artifact
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		a, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			continue // skip foreign directories
		}
		artifacts = append(artifacts, a)
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w: no artifacts under %s", ErrArtifactNotFound, dir)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].TrainedOn.Equal(artifacts[j].TrainedOn) {
			return artifacts[i].TrainedOn.After(artifacts[j].TrainedOn)
		}
		return artifacts[i].Version > artifacts[j].Version
	})
	return artifacts[0], nil
}

func writeJSON(path string, v any) error {
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
