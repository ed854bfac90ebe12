package model_selection

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/pkg/log"
)

// ArtifactFormatVersion is bumped whenever the Artifact layout changes.
const ArtifactFormatVersion = "1"

// Artifact is the persisted form of a fitted GridSearchCV.
type Artifact struct {
	FormatVersion string                 `json:"format_version"`
	RunID         string                 `json:"run_id"`
	CreatedAt     time.Time              `json:"created_at"`
	Scoring       string                 `json:"scoring"`
	NSplits       int                    `json:"n_splits"`
	ParamGrid     ParamGrid              `json:"param_grid"`
	BestIndex     int                    `json:"best_index"`
	BestParams    map[string]interface{} `json:"best_params"`
	BestScore     Score                  `json:"best_score"`
	RefitTime     float64                `json:"refit_time"`
	CVResults     []CandidateResult      `json:"cv_results"`
	BestEstimator json.RawMessage        `json:"best_estimator"`
}

// NewArtifact captures the fitted search under a fresh run id.
func NewArtifact(gs *GridSearchCV) (*Artifact, error) {
	if err := gs.state.RequireFitted("GridSearchCV", "NewArtifact"); err != nil {
		return nil, err
	}
	best, err := json.Marshal(gs.bestEstimator_)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode best estimator")
	}
	return &Artifact{
		FormatVersion: ArtifactFormatVersion,
		RunID:         uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Scoring:       gs.scoring,
		NSplits:       gs.cv.GetNSplits(),
		ParamGrid:     gs.paramGrid,
		BestIndex:     gs.bestIndex_,
		BestParams:    gs.bestParams_,
		BestScore:     Score(gs.bestScore_),
		RefitTime:     gs.refitTime_,
		CVResults:     gs.cvResults_,
		BestEstimator: best,
	}, nil
}

// Save writes the fitted search to path as gzip-compressed JSON, replacing
// any previous file atomically.
func Save(path string, gs *GridSearchCV) (*Artifact, error) {
	artifact, err := NewArtifact(gs)
	if err != nil {
		return nil, err
	}
	if err := model.SaveArtifact(path, artifact); err != nil {
		return nil, err
	}
	log.GetLoggerWithName("GridSearchCV").Info("Saved model",
		log.PathKey, path,
		log.RunIDKey, artifact.RunID)
	return artifact, nil
}

// Load reads a search saved by Save. template supplies the unfitted
// estimator structure the stored state is decoded into; it is cloned and
// left untouched.
func Load(path string, template Estimator) (*GridSearchCV, *Artifact, error) {
	var artifact Artifact
	if err := model.LoadArtifact(path, &artifact); err != nil {
		return nil, nil, err
	}
	gs, err := FromArtifact(&artifact, template)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to restore %s", path)
	}
	return gs, &artifact, nil
}

// FromArtifact rebuilds a fitted GridSearchCV without refitting.
func FromArtifact(artifact *Artifact, template Estimator) (*GridSearchCV, error) {
	if artifact.FormatVersion != ArtifactFormatVersion {
		return nil, errors.NewValidationError("format_version", "unsupported artifact version", artifact.FormatVersion)
	}
	if _, err := GetScorer(artifact.Scoring); err != nil {
		return nil, err
	}

	best := template.Clone().(Estimator)
	if err := json.Unmarshal(artifact.BestEstimator, best); err != nil {
		return nil, errors.Wrap(err, "failed to decode best estimator")
	}

	gs := NewGridSearchCV(template, artifact.ParamGrid,
		WithCV(artifact.NSplits),
		WithScoring(artifact.Scoring))
	gs.cvResults_ = artifact.CVResults
	gs.bestIndex_ = artifact.BestIndex
	gs.bestParams_ = artifact.BestParams
	gs.bestScore_ = float64(artifact.BestScore)
	gs.bestEstimator_ = best
	gs.refitTime_ = artifact.RefitTime
	gs.state.SetFitted()
	return gs, nil
}
