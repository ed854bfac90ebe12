package linear_model_test

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/vehicleprice/sklearn/linear_model"
)

// ExampleLinearRegression demonstrates basic linear regression usage
func ExampleLinearRegression() {
	// y = 2*x + 1
	X := mat.NewDense(4, 1, []float64{1.0, 2.0, 3.0, 4.0})
	y := mat.NewDense(4, 1, []float64{3.0, 5.0, 7.0, 9.0})

	lr := linear_model.NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		return
	}

	testX := mat.NewDense(2, 1, []float64{5.0, 6.0})
	predictions, err := lr.Predict(testX)
	if err != nil {
		return
	}

	fmt.Printf("Input: %.1f, Prediction: %.1f\n", testX.At(0, 0), predictions.At(0, 0))
	fmt.Printf("Input: %.1f, Prediction: %.1f\n", testX.At(1, 0), predictions.At(1, 0))
	fmt.Printf("Coef: %.1f, Intercept: %.1f\n", lr.Coef()[0], lr.Intercept())

	// Output:
	// Input: 5.0, Prediction: 11.0
	// Input: 6.0, Prediction: 13.0
	// Coef: 2.0, Intercept: 1.0
}
