// Package pipeline chains a data frame preprocessor with matrix steps into
// a single estimator.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/core/model"
	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
	"github.com/YuminosukeSato/vehicleprice/sklearn/compose"
)

// Step is a named matrix stage. Intermediate steps implement
// model.Transformer or model.SupervisedTransformer; the final step
// implements model.Estimator.
type Step struct {
	Name      string
	Estimator model.SKLearnCompatible
}

// Pipeline はscikit-learn互換のパイプライン
//
// Fit runs the preprocessor on the table, feeds each intermediate step the
// output of the previous one and fits the final estimator. Predict replays
// the fitted transformations and predicts.
type Pipeline struct {
	state *model.StateManager

	preprocessorName string
	preprocessor     compose.TableTransformer
	steps            []Step
}

// NewPipeline validates the step layout and returns an unfitted pipeline.
func NewPipeline(preprocessorName string, preprocessor compose.TableTransformer, steps ...Step) (*Pipeline, error) {
	if preprocessor == nil {
		return nil, errors.NewValidationError(preprocessorName, "preprocessor is required", nil)
	}
	if len(steps) == 0 {
		return nil, errors.NewValidationError("steps", "a final estimator is required", nil)
	}

	seen := map[string]bool{}
	for _, name := range append([]string{preprocessorName}, stepNames(steps)...) {
		if name == "" || strings.Contains(name, "__") {
			return nil, errors.NewValidationError("name", "step names must be non-empty and must not contain '__'", name)
		}
		if seen[name] {
			return nil, errors.NewValidationError("name", "duplicate step name", name)
		}
		seen[name] = true
	}

	for i, s := range steps {
		if i == len(steps)-1 {
			if _, ok := s.Estimator.(model.Estimator); !ok {
				return nil, errors.NewValidationError(s.Name, "final step must implement Fit(X, y) and Predict(X)", fmt.Sprintf("%T", s.Estimator))
			}
			continue
		}
		switch s.Estimator.(type) {
		case model.Transformer, model.SupervisedTransformer:
		default:
			return nil, errors.NewValidationError(s.Name, "intermediate step must be a transformer", fmt.Sprintf("%T", s.Estimator))
		}
	}

	return &Pipeline{
		state:            model.NewStateManager(),
		preprocessorName: preprocessorName,
		preprocessor:     preprocessor,
		steps:            steps,
	}, nil
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

// Fit fits every stage in order on X and y.
func (p *Pipeline) Fit(X dataframe.DataFrame, y mat.Matrix) error {
	if X.Nrow() == 0 {
		return errors.NewModelError("Pipeline.Fit", "empty data", errors.ErrEmptyData)
	}
	if r, _ := y.Dims(); r != X.Nrow() {
		return errors.NewDimensionError("Pipeline.Fit", X.Nrow(), r, 0)
	}
	p.state.Reset()

	if err := p.preprocessor.Fit(X); err != nil {
		return errors.Wrapf(err, "step %s", p.preprocessorName)
	}
	Xt, err := p.preprocessor.Transform(X)
	if err != nil {
		return errors.Wrapf(err, "step %s", p.preprocessorName)
	}

	var current mat.Matrix = Xt
	last := len(p.steps) - 1
	for _, s := range p.steps[:last] {
		switch t := s.Estimator.(type) {
		case model.SupervisedTransformer:
			err = t.Fit(current, y)
			if err == nil {
				current, err = t.Transform(current)
			}
		case model.Transformer:
			current, err = t.FitTransform(current)
		}
		if err != nil {
			return errors.Wrapf(err, "step %s", s.Name)
		}
	}

	final := p.steps[last]
	if err := final.Estimator.(model.Estimator).Fit(current, y); err != nil {
		return errors.Wrapf(err, "step %s", final.Name)
	}

	rows, cols := Xt.Dims()
	p.state.SetDimensions(cols, rows)
	p.state.SetFitted()
	return nil
}

// transform applies the fitted preprocessor and intermediate steps.
func (p *Pipeline) transform(X dataframe.DataFrame) (mat.Matrix, error) {
	Xt, err := p.preprocessor.Transform(X)
	if err != nil {
		return nil, errors.Wrapf(err, "step %s", p.preprocessorName)
	}
	var current mat.Matrix = Xt
	for _, s := range p.steps[:len(p.steps)-1] {
		switch t := s.Estimator.(type) {
		case model.SupervisedTransformer:
			current, err = t.Transform(current)
		case model.Transformer:
			current, err = t.Transform(current)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", s.Name)
		}
	}
	return current, nil
}

// Transform returns the matrix the final estimator sees for X.
func (p *Pipeline) Transform(X dataframe.DataFrame) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", "Transform"); err != nil {
		return nil, err
	}
	return p.transform(X)
}

// Predict transforms X and predicts with the final estimator.
func (p *Pipeline) Predict(X dataframe.DataFrame) (mat.Matrix, error) {
	if err := p.state.RequireFitted("Pipeline", "Predict"); err != nil {
		return nil, err
	}
	Xt, err := p.transform(X)
	if err != nil {
		return nil, err
	}
	final := p.steps[len(p.steps)-1]
	pred, err := final.Estimator.(model.Estimator).Predict(Xt)
	if err != nil {
		return nil, errors.Wrapf(err, "step %s", final.Name)
	}
	return pred, nil
}

// FeatureNamesOut returns the names of the columns reaching the final
// estimator. Steps exposing GetSupport narrow the list.
func (p *Pipeline) FeatureNamesOut() []string {
	names := p.preprocessor.FeatureNamesOut()
	for _, s := range p.steps[:len(p.steps)-1] {
		sel, ok := s.Estimator.(interface{ GetSupport() []int })
		if !ok {
			continue
		}
		support := sel.GetSupport()
		kept := make([]string, 0, len(support))
		for _, j := range support {
			if j < len(names) {
				kept = append(kept, names[j])
			}
		}
		names = kept
	}
	return names
}

// NamedStep returns the stage registered under name.
func (p *Pipeline) NamedStep(name string) (model.SKLearnCompatible, bool) {
	if name == p.preprocessorName {
		return p.preprocessor, true
	}
	for _, s := range p.steps {
		if s.Name == name {
			return s.Estimator, true
		}
	}
	return nil, false
}

// IsFitted は学習済みかどうかを返す
func (p *Pipeline) IsFitted() bool {
	return p.state.IsFitted()
}

// GetParams returns every stage parameter as "<step>__<param>".
func (p *Pipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	for k, v := range p.preprocessor.GetParams() {
		params[p.preprocessorName+"__"+k] = v
	}
	for _, s := range p.steps {
		for k, v := range s.Estimator.GetParams() {
			params[s.Name+"__"+k] = v
		}
	}
	return params
}

// SetParams routes "<step>__<param>" keys to the named stage.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	nested := make(map[string]map[string]interface{})
	for key, value := range params {
		name, param, ok := strings.Cut(key, "__")
		if !ok || param == "" {
			return errors.NewValidationError(key, "pipeline parameters must look like <step>__<param>", value)
		}
		if nested[name] == nil {
			nested[name] = make(map[string]interface{})
		}
		nested[name][param] = value
	}
	for name, stepParams := range nested {
		step, ok := p.NamedStep(name)
		if !ok {
			return errors.NewValidationError(name, "no such step", append([]string{p.preprocessorName}, stepNames(p.steps)...))
		}
		if err := step.SetParams(stepParams); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted pipeline with cloned stages.
func (p *Pipeline) Clone() model.SKLearnCompatible {
	steps := make([]Step, len(p.steps))
	for i, s := range p.steps {
		steps[i] = Step{Name: s.Name, Estimator: s.Estimator.Clone()}
	}
	return &Pipeline{
		state:            model.NewStateManager(),
		preprocessorName: p.preprocessorName,
		preprocessor:     p.preprocessor.Clone().(compose.TableTransformer),
		steps:            steps,
	}
}

// StepState is the persisted form of one fitted stage.
type StepState struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	State json.RawMessage `json:"state"`
}

type pipelineJSON struct {
	Steps []StepState `json:"steps"`
}

func (p *Pipeline) stages() []Step {
	return append([]Step{{Name: p.preprocessorName, Estimator: p.preprocessor}}, p.steps...)
}

// MarshalJSON encodes the fitted state of every stage in order.
func (p *Pipeline) MarshalJSON() ([]byte, error) {
	if err := p.state.RequireFitted("Pipeline", "MarshalJSON"); err != nil {
		return nil, err
	}
	var out pipelineJSON
	for _, s := range p.stages() {
		state, err := json.Marshal(s.Estimator)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode step %s", s.Name)
		}
		out.Steps = append(out.Steps, StepState{
			Name:  s.Name,
			Type:  fmt.Sprintf("%T", s.Estimator),
			State: state,
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores fitted state into a pipeline built with the same
// step names and types.
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var in pipelineJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode pipeline state")
	}
	stages := p.stages()
	if len(in.Steps) != len(stages) {
		return errors.NewDimensionError("Pipeline.UnmarshalJSON", len(stages), len(in.Steps), 1)
	}
	for i, s := range stages {
		st := in.Steps[i]
		if st.Name != s.Name {
			return errors.NewValidationError("name", fmt.Sprintf("expected step %s at position %d", s.Name, i), st.Name)
		}
		if typ := fmt.Sprintf("%T", s.Estimator); st.Type != typ {
			return errors.NewValidationError(s.Name, "step type mismatch, expected "+typ, st.Type)
		}
		if err := json.Unmarshal(st.State, s.Estimator); err != nil {
			return errors.Wrapf(err, "failed to restore step %s", s.Name)
		}
	}
	if p.state == nil {
		p.state = model.NewStateManager()
	}
	p.state.SetFitted()
	return nil
}

func (p *Pipeline) String() string {
	parts := []string{fmt.Sprintf("('%s', %v)", p.preprocessorName, p.preprocessor)}
	for _, s := range p.steps {
		parts = append(parts, fmt.Sprintf("('%s', %v)", s.Name, s.Estimator))
	}
	return "Pipeline(steps=[" + strings.Join(parts, ", ") + "])"
}
