// Copyright 2026 gmix Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"context"
	"math"
	"testing"

	"github.com/gmix-io/gmix/base"
	"github.com/gmix-io/gmix/dataset"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func newTestTable(rows [][]float64) *dataset.RatingTable {
	n, d := len(rows), len(rows[0])
	data := make([]float64, 0, n*d)
	for _, row := range rows {
		data = append(data, row...)
	}
	return dataset.NewRatingTable(mat.NewDense(n, d, data))
}

// newClusteredTable builds a two-cluster rating matrix (values near 1 or 5,
// never zero) and a masked copy with roughly missingRate of the cells zeroed.
func newClusteredTable(n, d int, seed int64, missingRate float64) (*dataset.RatingTable, *mat.Dense) {
	rng := base.NewRandomGenerator(seed)
	truth := mat.NewDense(n, d, nil)
	masked := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		center := 1.0
		if i%2 == 1 {
			center = 5.0
		}
		for j := 0; j < d; j++ {
			value := center + rng.Float64()*0.5
			truth.Set(i, j, value)
			if rng.Float64() >= missingRate {
				masked.Set(i, j, value)
			}
		}
	}
	return dataset.NewRatingTable(masked), truth
}

func TestGMM_InitMixture(t *testing.T) {
	table := newTestTable([][]float64{{1, 0, 3}, {0, 2, 3}, {1, 2, 0}})
	gmm := NewGMM(Params{NComponents: 2, RandomState: 0})
	mixture, post, err := gmm.initMixture(table.Ratings)
	assert.NoError(t, err)
	assert.Equal(t, 2, mixture.NumComponents())
	assert.Equal(t, []float64{0.5, 0.5}, mixture.Weight)
	// means are two distinct rows of the rating matrix
	x := table.Ratings
	matched := make(map[int]bool)
	for c := 0; c < 2; c++ {
		found := -1
		for i := 0; i < 3; i++ {
			if floats.Equal(x.RawRowView(i), mixture.Mu.RawRowView(c)) {
				found = i
				break
			}
		}
		assert.GreaterOrEqual(t, found, 0)
		assert.False(t, matched[found])
		matched[found] = true
	}
	// initial variance spans all nine cells, observed or not
	for c := 0; c < 2; c++ {
		mu := mixture.Mu.RawRowView(c)
		expected := 0.0
		for i := 0; i < 3; i++ {
			row := x.RawRowView(i)
			for j := 0; j < 3; j++ {
				expected += (row[j] - mu[j]) * (row[j] - mu[j])
			}
		}
		assert.InDelta(t, expected/9, mixture.Var[c], 1e-12)
	}
	// uniform responsibilities
	n, k := post.Dims()
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			assert.Equal(t, 0.5, post.At(i, c))
		}
	}
}

func TestGMM_InitMixture_Deterministic(t *testing.T) {
	table, _ := newClusteredTable(20, 5, 1, 0.3)
	a, _, err := NewGMM(Params{NComponents: 3, RandomState: 42}).initMixture(table.Ratings)
	assert.NoError(t, err)
	b, _, err := NewGMM(Params{NComponents: 3, RandomState: 42}).initMixture(table.Ratings)
	assert.NoError(t, err)
	assert.True(t, mat.Equal(a.Mu, b.Mu))
	assert.Equal(t, a.Var, b.Var)
}

func TestGMM_InitMixture_TooManyComponents(t *testing.T) {
	table := newTestTable([][]float64{{1, 0, 3}, {0, 2, 3}, {1, 2, 0}})
	gmm := NewGMM(Params{NComponents: 5})
	_, _, err := gmm.initMixture(table.Ratings)
	assert.Error(t, err)
	_, err = gmm.Fit(context.Background(), table, NewFitConfig().SetVerbose(0))
	assert.Error(t, err)
}

func TestGMM_EStep_RowsSumToOne(t *testing.T) {
	table := newTestTable([][]float64{{1, 0, 3}, {0, 2, 3}, {1, 2, 0}})
	gmm := NewGMM(Params{NComponents: 2, RandomState: 0})
	mixture, _, err := gmm.initMixture(table.Ratings)
	assert.NoError(t, err)
	post, _ := eStep(table.Ratings, mixture)
	n, _ := post.Dims()
	for i := 0; i < n; i++ {
		assert.InDelta(t, 1, floats.Sum(post.RawRowView(i)), 1e-9)
	}
}

func TestGMM_EStep_MaskedDimensionsIgnored(t *testing.T) {
	// a row with a single observed entry only depends on that dimension
	x := mat.NewDense(1, 3, []float64{5, 0, 0})
	a := &Mixture{
		Mu:     mat.NewDense(2, 3, []float64{5, 1, 1, 2, 3, 4}),
		Var:    []float64{1, 2},
		Weight: []float64{0.5, 0.5},
	}
	b := &Mixture{
		Mu:     mat.NewDense(2, 3, []float64{5, 9, 9, 2, 7, 7}),
		Var:    []float64{1, 2},
		Weight: []float64{0.5, 0.5},
	}
	postA, costA := eStep(x, a)
	postB, costB := eStep(x, b)
	assert.Equal(t, costA, costB)
	assert.True(t, mat.Equal(postA, postB))
}

func TestGMM_EStep_ExactMatch(t *testing.T) {
	// a fully observed row sitting on a mean takes almost all of its
	// responsibility from that component
	x := mat.NewDense(1, 3, []float64{1, 2, 3})
	mixture := &Mixture{
		Mu:     mat.NewDense(2, 3, []float64{1, 2, 3, 100, 100, 100}),
		Var:    []float64{0.25, 0.25},
		Weight: []float64{0.5, 0.5},
	}
	post, _ := eStep(x, mixture)
	assert.InDelta(t, 1, post.At(0, 0), 1e-6)
	assert.InDelta(t, 0, post.At(0, 1), 1e-6)
}

func TestGMM_MStep_Invariants(t *testing.T) {
	table := newTestTable([][]float64{{1, 0, 3}, {0, 2, 3}, {1, 2, 0}})
	gmm := NewGMM(Params{NComponents: 2, RandomState: 0})
	mixture, _, err := gmm.initMixture(table.Ratings)
	assert.NoError(t, err)
	post, _ := eStep(table.Ratings, mixture)
	next := gmm.mStep(table.Ratings, post, mixture)
	assert.InDelta(t, 1, floats.Sum(next.Weight), 1e-9)
	for c := 0; c < next.NumComponents(); c++ {
		assert.GreaterOrEqual(t, next.Var[c], 0.25)
	}
	// the previous mixture is untouched
	assert.Equal(t, []float64{0.5, 0.5}, mixture.Weight)
}

func TestGMM_MStep_MeanFallback(t *testing.T) {
	// the second column is never observed, so its mean must come from the
	// previous mixture
	x := mat.NewDense(2, 2, []float64{1, 0, 1, 0})
	post := mat.NewDense(2, 1, []float64{1, 1})
	prev := &Mixture{
		Mu:     mat.NewDense(1, 2, []float64{3, 7}),
		Var:    []float64{1},
		Weight: []float64{1},
	}
	gmm := NewGMM(Params{NComponents: 1})
	next := gmm.mStep(x, post, prev)
	assert.Equal(t, 1.0, next.Mu.At(0, 0))
	assert.Equal(t, 7.0, next.Mu.At(0, 1))
	// zero residual hits the variance floor
	assert.Equal(t, 0.25, next.Var[0])
	assert.Equal(t, []float64{1}, next.Weight)
}

func TestGMM_Fit_MonotoneLogLikelihood(t *testing.T) {
	table, _ := newClusteredTable(30, 8, 0, 0.3)
	gmm := NewGMM(Params{NComponents: 3, RandomState: 0})
	mixture, _, err := gmm.initMixture(table.Ratings)
	assert.NoError(t, err)
	prevCost := math.Inf(-1)
	for it := 0; it < 25; it++ {
		post, cost := eStep(table.Ratings, mixture)
		mixture = gmm.mStep(table.Ratings, post, mixture)
		assert.GreaterOrEqual(t, cost-prevCost, -1e-6)
		prevCost = cost
	}
}

func TestGMM_Fit_Converges(t *testing.T) {
	table, _ := newClusteredTable(30, 8, 0, 0.3)
	gmm := NewGMM(Params{NComponents: 2, RandomState: 0})
	cost, err := gmm.Fit(context.Background(), table, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	assert.NotNil(t, gmm.Mixture)
	assert.NotNil(t, gmm.Post)
	// one more E/M pair on a converged mixture barely moves the likelihood
	post, nextCost := eStep(table.Ratings, gmm.Mixture)
	next := gmm.mStep(table.Ratings, post, gmm.Mixture)
	_, finalCost := eStep(table.Ratings, next)
	assert.LessOrEqual(t, finalCost-nextCost, 1e-5*math.Abs(finalCost))
	assert.LessOrEqual(t, math.Abs(nextCost-cost), 1e-4*math.Abs(cost))
}

func TestGMM_Fit_StopsAtLocalOptimum(t *testing.T) {
	// With one component the responsibilities are exactly one, so the first
	// M-step already lands on the optimum (mu = [2 2], var = 1). The second
	// iteration re-estimates the identical mixture and the third finds zero
	// improvement at the tolerance check, so the loop must stop there
	// instead of running to the iteration cap.
	table := newTestTable([][]float64{{1, 3}, {3, 1}})
	gmm := NewGMM(Params{NComponents: 1, RandomState: 0})
	_, err := gmm.Fit(context.Background(), table, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	assert.Equal(t, 3, gmm.Iterations)
	assert.Equal(t, 2.0, gmm.Mixture.Mu.At(0, 0))
	assert.Equal(t, 2.0, gmm.Mixture.Mu.At(0, 1))
	assert.Equal(t, []float64{1}, gmm.Mixture.Var)
}

func TestGMM_Fit_Deterministic(t *testing.T) {
	table, _ := newClusteredTable(20, 6, 7, 0.2)
	a, err := NewGMM(Params{NComponents: 2, RandomState: 3}).Fit(context.Background(), table, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	b, err := NewGMM(Params{NComponents: 2, RandomState: 3}).Fit(context.Background(), table, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGMM_Complete(t *testing.T) {
	table, truth := newClusteredTable(40, 6, 0, 0.3)
	snapshot := mat.DenseCopyOf(table.Ratings)
	gmm := NewGMM(Params{NComponents: 2, RandomState: 0})
	_, err := gmm.Fit(context.Background(), table, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	completed, err := gmm.Complete(table)
	assert.NoError(t, err)
	n, d := completed.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			if table.Observed(i, j) {
				// observed cells are copied bit-identical
				assert.Equal(t, table.Ratings.At(i, j), completed.At(i, j))
			} else {
				assert.NotZero(t, completed.At(i, j))
			}
		}
	}
	// the input table is not mutated
	assert.True(t, mat.Equal(snapshot, table.Ratings))
	// imputations recover the two clusters well enough
	assert.Less(t, RMSE(completed, truth), 1.0)
}

func TestGMM_Complete_NotFitted(t *testing.T) {
	table := newTestTable([][]float64{{1, 0, 3}, {0, 2, 3}, {1, 2, 0}})
	gmm := NewGMM(nil)
	_, err := gmm.Complete(table)
	assert.Error(t, err)
}

func TestGMM_Predict(t *testing.T) {
	table, _ := newClusteredTable(20, 5, 0, 0.3)
	gmm := NewGMM(Params{NComponents: 2, RandomState: 0})
	assert.Zero(t, gmm.Predict(0, 0))
	_, err := gmm.Fit(context.Background(), table, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	assert.NotZero(t, gmm.Predict(0, 0))
	assert.Zero(t, gmm.Predict(-1, 0))
	assert.Zero(t, gmm.Predict(0, 100))
}

func TestGMM_Clear(t *testing.T) {
	table, _ := newClusteredTable(20, 5, 0, 0.3)
	gmm := NewGMM(Params{NComponents: 2, RandomState: 0})
	_, err := gmm.Fit(context.Background(), table, NewFitConfig().SetVerbose(0))
	assert.NoError(t, err)
	gmm.Clear()
	assert.Nil(t, gmm.Mixture)
	assert.Nil(t, gmm.Post)
}
