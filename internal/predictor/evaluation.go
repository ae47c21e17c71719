package predictor

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/gridcast/gridcast/internal/models"
)

// evaluate computes training-fit metrics over parallel actual/predicted
// slices. MAPE skips zero actuals so percentage error stays defined; a
// zero-variance target yields R2 = 1 for a perfect fit and 0 otherwise.
func evaluate(actual, predicted []float64) models.Metrics {
	n := len(actual)
	if n == 0 || n != len(predicted) {
		return models.Metrics{}
	}

	mean := stat.Mean(actual, nil)

	var ssRes, ssTot, absSum, pctSum float64
	pctCount := 0
	for i := 0; i < n; i++ {
		diff := actual[i] - predicted[i]
		ssRes += diff * diff
		dev := actual[i] - mean
		ssTot += dev * dev
		absSum += math.Abs(diff)
		if actual[i] != 0 {
			pctSum += math.Abs(diff / actual[i])
			pctCount++
		}
	}

	m := models.Metrics{
		RMSE: math.Sqrt(ssRes / float64(n)),
		MAE:  absSum / float64(n),
	}
	if pctCount > 0 {
		m.MAPE = 100 * pctSum / float64(pctCount)
	}
	if ssTot > 0 {
		m.R2 = 1 - ssRes/ssTot
	} else if ssRes == 0 {
		m.R2 = 1
	}
	return m
}
