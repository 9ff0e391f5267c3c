package engine

import (
	"errors"

	"github.com/yungbote/learnhub/internal/learning/bandit"
	"github.com/yungbote/learnhub/internal/learning/federation"
	"github.com/yungbote/learnhub/internal/learning/mathx"
)

var (
	ErrUnsupportedVersion = errors.New("engine: unsupported state version")
	ErrCorruptState       = errors.New("engine: corrupt state")
)

// IsFatal reports whether err is a structural invariant violation rather
// than a data or input problem. Fatal errors mean the posterior or its
// configuration is unusable and must not be patched silently.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		bandit.ErrFeatureDimMismatch,
		bandit.ErrShapeMismatch,
		bandit.ErrPosteriorCorrupt,
		federation.ErrDimensionMismatch,
		mathx.ErrNotPositiveDefinite,
		mathx.ErrShapeMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
