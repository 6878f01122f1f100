package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/portfoliolab/internal/domain"
)

// closeUpIndex is the position of the base ticker's CloseUp feature.
const closeUpIndex = 3

// Classifier predicts next-day direction labels (1 up, 0 down).
type Classifier interface {
	Name() string
	Fit(ds Dataset) error
	Predict(x [][]float64) []int
}

// MomentumClassifier predicts up whenever the base ticker's 7-day average
// close is above its 14-day average. It has nothing to fit.
type MomentumClassifier struct{}

// Name implements Classifier.
func (MomentumClassifier) Name() string { return "momentum" }

// Fit implements Classifier.
func (MomentumClassifier) Fit(Dataset) error { return nil }

// Predict implements Classifier.
func (MomentumClassifier) Predict(x [][]float64) []int {
	out := make([]int, len(x))
	for i, row := range x {
		if len(row) > closeUpIndex && row[closeUpIndex] > 0 {
			out[i] = 1
		}
	}
	return out
}

// LogisticClassifier is an L2-regularized logistic regression fitted with
// BFGS on standardized features.
type LogisticClassifier struct {
	Lambda float64

	mean, scale []float64
	coef        []float64 // intercept first
}

// NewLogisticClassifier creates an unfitted model.
func NewLogisticClassifier(lambda float64) *LogisticClassifier {
	return &LogisticClassifier{Lambda: lambda}
}

// Name implements Classifier.
func (c *LogisticClassifier) Name() string { return "logistic" }

// Fit implements Classifier.
func (c *LogisticClassifier) Fit(ds Dataset) error {
	if ds.Len() == 0 || len(ds.X) != ds.Len() {
		return fmt.Errorf("empty training set: %w", domain.ErrDataInsufficiency)
	}
	d := len(ds.X[0])
	c.standardize(ds.X, d)

	z := make([][]float64, len(ds.X))
	for i, row := range ds.X {
		z[i] = c.transform(row)
	}
	y := make([]float64, len(ds.Y))
	for i, v := range ds.Y {
		y[i] = float64(v)
	}
	m := float64(len(z))

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			var loss float64
			for i, row := range z {
				t := w[0] + floats.Dot(w[1:], row)
				// log(1+e^t) - y·t, written to avoid overflow.
				loss += math.Max(t, 0) + math.Log1p(math.Exp(-math.Abs(t))) - y[i]*t
			}
			return loss/m + 0.5*c.Lambda*floats.Dot(w[1:], w[1:])
		},
		Grad: func(grad, w []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, row := range z {
				r := sigmoid(w[0]+floats.Dot(w[1:], row)) - y[i]
				grad[0] += r
				floats.AddScaled(grad[1:], r, row)
			}
			floats.Scale(1/m, grad)
			floats.AddScaled(grad[1:], c.Lambda, w[1:])
		},
	}

	result, err := optimize.Minimize(problem, make([]float64, d+1), nil, &optimize.BFGS{})
	if err != nil {
		return fmt.Errorf("logistic fit: %v: %w", err, domain.ErrOptimizerNonConvergence)
	}
	switch result.Status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
	default:
		return fmt.Errorf("logistic fit: status=%v: %w", result.Status, domain.ErrOptimizerNonConvergence)
	}
	c.coef = result.X
	return nil
}

// Predict implements Classifier. An unfitted model predicts up everywhere.
func (c *LogisticClassifier) Predict(x [][]float64) []int {
	out := make([]int, len(x))
	for i, row := range x {
		if c.coef == nil {
			out[i] = 1
			continue
		}
		if c.coef[0]+floats.Dot(c.coef[1:], c.transform(row)) > 0 {
			out[i] = 1
		}
	}
	return out
}

func (c *LogisticClassifier) standardize(x [][]float64, d int) {
	c.mean = make([]float64, d)
	c.scale = make([]float64, d)
	n := float64(len(x))
	for _, row := range x {
		floats.Add(c.mean, row)
	}
	floats.Scale(1/n, c.mean)
	for _, row := range x {
		for j, v := range row {
			c.scale[j] += (v - c.mean[j]) * (v - c.mean[j])
		}
	}
	for j := range c.scale {
		c.scale[j] = math.Sqrt(c.scale[j] / n)
		if c.scale[j] == 0 {
			c.scale[j] = 1
		}
	}
}

func (c *LogisticClassifier) transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - c.mean[j]) / c.scale[j]
	}
	return out
}

func sigmoid(t float64) float64 {
	return 1 / (1 + math.Exp(-t))
}

// Metrics summarizes classifier quality on a labelled set.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	MSE       float64 `json:"mse"`
}

// Evaluate compares predictions with actual labels. Precision is 0 when
// nothing was predicted up.
func Evaluate(actual, predicted []int) (Metrics, error) {
	if len(actual) != len(predicted) {
		return Metrics{}, fmt.Errorf("%d labels vs %d predictions: %w", len(actual), len(predicted), domain.ErrPrecondition)
	}
	if len(actual) == 0 {
		return Metrics{}, fmt.Errorf("no labels: %w", domain.ErrDataInsufficiency)
	}
	var correct, predictedUp, truePositive, sqErr float64
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
		if predicted[i] == 1 {
			predictedUp++
			if actual[i] == 1 {
				truePositive++
			}
		}
		diff := float64(actual[i] - predicted[i])
		sqErr += diff * diff
	}
	n := float64(len(actual))
	m := Metrics{Accuracy: correct / n, MSE: sqErr / n}
	if predictedUp > 0 {
		m.Precision = truePositive / predictedUp
	}
	return m, nil
}
