package preprocessing

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/pkg/errors"
)

func categoricalFrame(fuel, transmission []string) dataframe.DataFrame {
	return dataframe.New(
		series.New(fuel, series.String, "Fuel_Type"),
		series.New(transmission, series.String, "Transmission"),
	)
}

func TestOneHotEncoder(t *testing.T) {
	train := categoricalFrame(
		[]string{"Petrol", "Diesel", "CNG", "Petrol"},
		[]string{"Manual", "Automatic", "Manual", "Manual"},
	)

	enc := NewOneHotEncoder()
	got, err := enc.FitTransform(train)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	wantNames := "Fuel_Type_CNG,Fuel_Type_Diesel,Fuel_Type_Petrol,Transmission_Automatic,Transmission_Manual"
	if names := strings.Join(enc.FeatureNamesOut(), ","); names != wantNames {
		t.Errorf("feature names = %s", names)
	}

	want := mat.NewDense(4, 5, []float64{
		0, 0, 1, 0, 1,
		0, 1, 0, 1, 0,
		1, 0, 0, 0, 1,
		0, 0, 1, 0, 1,
	})
	if !mat.Equal(got, want) {
		t.Errorf("got\n%v\nwant\n%v", mat.Formatted(got), mat.Formatted(want))
	}
}

func TestOneHotEncoderColumnOrderIndependent(t *testing.T) {
	train := categoricalFrame([]string{"Petrol", "Diesel"}, []string{"Manual", "Automatic"})
	enc := NewOneHotEncoder()
	if err := enc.Fit(train); err != nil {
		t.Fatal(err)
	}

	reordered := train.Select([]string{"Transmission", "Fuel_Type"})
	a, err := enc.Transform(train)
	if err != nil {
		t.Fatal(err)
	}
	b, err := enc.Transform(reordered)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(a, b) {
		t.Error("column order changed the encoding")
	}
}

func TestOneHotEncoderHandleUnknown(t *testing.T) {
	train := categoricalFrame([]string{"Petrol", "Diesel"}, []string{"Manual", "Automatic"})
	test := categoricalFrame([]string{"CNG", "Diesel"}, []string{"Manual", "Manual"})

	strict := NewOneHotEncoder()
	if err := strict.Fit(train); err != nil {
		t.Fatal(err)
	}
	_, err := strict.Transform(test)
	var ve *errors.ValueError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValueError, got %v", err)
	}

	var (
		mu       sync.Mutex
		warnings []error
	)
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	defer errors.SetWarningHandler(nil)

	lenient := NewOneHotEncoderWithHandleUnknown(HandleUnknownIgnore)
	if err := lenient.Fit(train); err != nil {
		t.Fatal(err)
	}
	got, err := lenient.Transform(test)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	want := mat.NewDense(2, 4, []float64{
		0, 0, 0, 1,
		1, 0, 0, 1,
	})
	if !mat.Equal(got, want) {
		t.Errorf("got\n%v\nwant\n%v", mat.Formatted(got), mat.Formatted(want))
	}

	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(warnings))
	}
	var uw *errors.UnknownCategoryWarning
	if !errors.As(warnings[0], &uw) || uw.Column != "Fuel_Type" || uw.Values[0] != "CNG" {
		t.Errorf("unexpected warning %v", warnings[0])
	}
}

func TestOneHotEncoderParams(t *testing.T) {
	enc := NewOneHotEncoder()
	if err := enc.SetParams(map[string]interface{}{"handle_unknown": "ignore"}); err != nil {
		t.Fatal(err)
	}
	clone := enc.Clone().(*OneHotEncoder)
	if clone.HandleUnknown != HandleUnknownIgnore || clone.IsFitted() {
		t.Errorf("clone = %v fitted=%v", clone, clone.IsFitted())
	}
	if err := enc.SetParams(map[string]interface{}{"handle_unknown": "infrequent"}); err == nil {
		t.Error("expected error for invalid handle_unknown")
	}
}

func TestOneHotEncoderStateRoundTrip(t *testing.T) {
	train := categoricalFrame([]string{"Petrol", "Diesel", "CNG"}, []string{"Manual", "Automatic", "Manual"})
	enc := NewOneHotEncoder()
	if err := enc.Fit(train); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(enc)
	if err != nil {
		t.Fatal(err)
	}
	restored := NewOneHotEncoder()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatal(err)
	}

	a, _ := enc.Transform(train)
	b, err := restored.Transform(train)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(a, b) {
		t.Error("restored encoder differs")
	}
}
