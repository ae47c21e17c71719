package predictor

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/gridcast/gridcast/internal/models"
)

// ridgeLambda is the regularization added to the normal-equation diagonal.
// The hour one-hot block makes the raw feature matrix rank deficient; the
// ridge term keeps the Cholesky solve viable for well-behaved data and the
// SVD fallback covers the rest.
const ridgeLambda = 1e-3

// svdCutoff is the singular-value threshold below which components are
// discarded in the SVD fallback.
const svdCutoff = 1e-12

// Linear is an ordinary least-squares model over the full positional feature
// vector, with absent optional features substituted by zero. One coefficient
// set covers every region; regional structure enters through the features.
type Linear struct {
	minSamples int
	coef       []float64
	trainedAt  time.Time
	trained    bool
}

// NewLinear constructs an untrained linear model.
func NewLinear(minSamples int) *Linear {
	return &Linear{minSamples: minSamples}
}

// Name implements Model.
func (l *Linear) Name() string { return ModelLinear }

// Train solves the ridge normal equations over the sample matrix.
func (l *Linear) Train(samples []models.TrainingSample) (models.Metrics, error) {
	if err := checkSampleCount(len(samples), l.minSamples); err != nil {
		return models.Metrics{}, fmt.Errorf("linear: %w", err)
	}

	n := len(samples)
	d := models.FeatureCount
	data := make([]float64, 0, n*d)
	y := make([]float64, n)
	for i, s := range samples {
		data = append(data, s.Features.Vector()...)
		y[i] = s.Demand
	}
	x := mat.NewDense(n, d, data)
	yVec := mat.NewVecDense(n, y)

	beta := solveRidge(x, yVec, ridgeLambda)
	l.coef = make([]float64, d)
	for i := 0; i < d; i++ {
		l.coef[i] = beta.AtVec(i)
	}
	l.trainedAt = time.Now()
	l.trained = true

	predicted := make([]float64, n)
	for i, s := range samples {
		p, err := l.Predict(s.Features, s.Region)
		if err != nil {
			return models.Metrics{}, err
		}
		predicted[i] = p
	}
	return evaluate(y, predicted), nil
}

// Predict computes the dot product of the coefficients with the positional
// vector, floored at zero.
func (l *Linear) Predict(fv models.FeatureVector, _ string) (float64, error) {
	if !l.trained {
		return 0, fmt.Errorf("linear: %w", ErrNotTrained)
	}
	var sum float64
	for i, v := range fv.Vector() {
		sum += l.coef[i] * v
	}
	if sum < 0 {
		sum = 0
	}
	return sum, nil
}

// Snapshot serializes the trained coefficients with their positional feature
// names for reuse without retraining.
func (l *Linear) Snapshot() (*models.LinearSnapshot, error) {
	if !l.trained {
		return nil, fmt.Errorf("linear: %w", ErrNotTrained)
	}
	coefs := make([]float64, len(l.coef))
	copy(coefs, l.coef)
	return &models.LinearSnapshot{
		FeatureNames: models.FeatureNames(),
		Coefficients: coefs,
		TrainedAt:    l.trainedAt,
	}, nil
}

// Restore loads a serialized coefficient set. The snapshot's feature names
// must match the current positional schema exactly; a mismatch means the
// snapshot was trained against a different schema and cannot be applied.
func (l *Linear) Restore(snap *models.LinearSnapshot) error {
	names := models.FeatureNames()
	if len(snap.Coefficients) != len(names) || len(snap.FeatureNames) != len(names) {
		return fmt.Errorf("linear: snapshot has %d coefficients for %d features",
			len(snap.Coefficients), len(names))
	}
	for i, name := range snap.FeatureNames {
		if name != names[i] {
			return fmt.Errorf("linear: snapshot feature %d is %q, schema has %q", i, name, names[i])
		}
	}
	l.coef = make([]float64, len(snap.Coefficients))
	copy(l.coef, snap.Coefficients)
	l.trainedAt = snap.TrainedAt
	l.trained = true
	return nil
}

// solveRidge solves (XᵀX + λI)β = Xᵀy by Cholesky, falling back to a
// pseudoinverse via thin SVD when the factorization fails.
func solveRidge(x *mat.Dense, y *mat.VecDense, lambda float64) *mat.VecDense {
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	d, _ := xtx.Dims()
	for i := 0; i < d; i++ {
		xtx.Set(i, i, xtx.At(i, i)+lambda)
	}

	sym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := 0; j <= i; j++ {
			sym.SetSym(i, j, xtx.At(i, j))
		}
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var chol mat.Cholesky
	if chol.Factorize(sym) {
		var beta mat.VecDense
		if err := chol.SolveVecTo(&beta, &xty); err == nil {
			return &beta
		}
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		// Degenerate input; a zero coefficient vector predicts zero, which
		// the caller's non-negativity contract already allows.
		return mat.NewVecDense(d, nil)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	var uty mat.VecDense
	uty.MulVec(u.T(), y)
	for i := range sv {
		if sv[i] > svdCutoff {
			uty.SetVec(i, uty.AtVec(i)/sv[i])
		} else {
			uty.SetVec(i, 0)
		}
	}
	var beta mat.VecDense
	beta.MulVec(&v, &uty)
	return &beta
}
