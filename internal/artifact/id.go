// Package artifact persists immutable model bundles: fitted estimator
// parameters, the canonical feature order, scaler parameters and training
// metadata. Artifacts are written once and never patched; a newer artifact
// supersedes an older one.
package artifact

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"crypto-liquidity-lab/internal/domain"
)

// ComputeVersion computes a deterministic artifact version using SHA256 over
// everything that affects predictions: model name, feature order, fitted
// parameters, scaler parameters and the training timestamp.
// Returns the base58-encoded hash.
func ComputeVersion(a *domain.Artifact) (string, error) {
	scaler, err := json.Marshal(a.Scaler)
	if err != nil {
		return "", fmt.Errorf("marshal scaler: %w", err)
	}

	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		a.ModelName,
		a.TrainedOn.UTC().Format(time.RFC3339Nano),
		strings.Join(a.Features, ","),
		a.ModelParams,
		scaler,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:]), nil
}
