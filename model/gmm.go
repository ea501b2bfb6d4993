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

	"github.com/gmix-io/gmix/base"
	"github.com/gmix-io/gmix/base/log"
	"github.com/gmix-io/gmix/base/progress"
	"github.com/gmix-io/gmix/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var log2Pi = math.Log(2 * math.Pi)

// weightEpsilon guards log(0) when a mixing weight collapses toward zero.
const weightEpsilon = 1e-16

// Mixture holds the parameters of a spherical Gaussian mixture over
// item-space. Each M-step builds a fresh Mixture, the previous one is never
// mutated.
type Mixture struct {
	Mu     *mat.Dense // K x d component means
	Var    []float64  // K isotropic variances
	Weight []float64  // K mixing weights, sum to 1
}

// NumComponents returns K.
func (mixture *Mixture) NumComponents() int {
	return len(mixture.Var)
}

// GMM estimates missing entries of a sparse rating matrix with a spherical
// Gaussian mixture fit by expectation-maximization. Unobserved ratings are
// encoded as zero and excluded from every distance and every weighted sum,
// so each user contributes evidence only through the items they rated. The
// approximate rating of user u_i for item p_j is
//
//	\hat{A}_{ij} = \sum_k post_{ik} \mu_{kj}
//
// where post_{ik} is the posterior probability that the ratings of user u_i
// were generated by component k.
//
// Hyper-parameters:
//
//	NComponents   - The number of mixture components. Default is 4.
//	RandomState   - The random seed. Default is 0.
//	MinVariance   - The lower bound of component variances. Default is 0.25.
//	Tolerance     - The relative log-likelihood improvement that stops the
//	                EM loop. Default is 1e-6.
//	MaxIterations - The hard cap of EM iterations. Default is 500.
type GMM struct {
	BaseModel
	Mixture    *Mixture   // converged mixture parameters
	Post       *mat.Dense // n x K responsibilities from the final E-step
	Iterations int        // EM iterations run by the last Fit
	// Hyper-parameters
	nComponents   int
	minVariance   float64
	tolerance     float64
	maxIterations int
}

// NewGMM creates a GMM model.
func NewGMM(params Params) *GMM {
	gmm := new(GMM)
	gmm.SetParams(params)
	return gmm
}

// SetParams sets hyper-parameters for the GMM model.
func (gmm *GMM) SetParams(params Params) {
	gmm.BaseModel.SetParams(params)
	gmm.nComponents = gmm.Params.GetInt(NComponents, 4)
	gmm.minVariance = gmm.Params.GetFloat64(MinVariance, 0.25)
	gmm.tolerance = gmm.Params.GetFloat64(Tolerance, 1e-6)
	gmm.maxIterations = gmm.Params.GetInt(MaxIterations, 500)
}

// Clear drops the fitted state.
func (gmm *GMM) Clear() {
	gmm.Mixture = nil
	gmm.Post = nil
	gmm.Iterations = 0
}

// FitConfig tunes the verbosity of a single Fit call.
type FitConfig struct {
	Verbose int // log the cost every Verbose iterations, 0 disables
}

// NewFitConfig creates the default fit configuration.
func NewFitConfig() *FitConfig {
	return &FitConfig{Verbose: 10}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) loadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// initMixture deterministically builds the initial mixture from the seed:
// K distinct rows of the rating matrix become the means, every component
// starts with the mean squared deviation of the whole matrix from its mean
// as variance, and weights are uniform. The returned responsibilities are
// uniform as well.
func (gmm *GMM) initMixture(x *mat.Dense) (*Mixture, *mat.Dense, error) {
	n, d := x.Dims()
	k := gmm.nComponents
	if k > n {
		return nil, nil, errors.Errorf("cannot select %d distinct rows from %d users", k, n)
	}
	mixture := &Mixture{
		Mu:     mat.NewDense(k, d, nil),
		Var:    make([]float64, k),
		Weight: make([]float64, k),
	}
	rows := gmm.rng.Sample(0, n, k)
	for c, row := range rows {
		mixture.Mu.SetRow(c, x.RawRowView(row))
		mixture.Weight[c] = 1 / float64(k)
	}
	// The initial variance spans all n*d cells, observed or not.
	for c := 0; c < k; c++ {
		mu := mixture.Mu.RawRowView(c)
		sum := 0.0
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			for j := 0; j < d; j++ {
				delta := row[j] - mu[j]
				sum += delta * delta
			}
		}
		mixture.Var[c] = sum / float64(n*d)
	}
	post := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			post.Set(i, c, 1/float64(k))
		}
	}
	return mixture, post, nil
}

// eStep computes responsibilities and the total log-likelihood under the
// observation mask. Distances and observed counts only involve non-zero
// cells of each row. Rows of the log-density matrix are normalized in the
// log domain through floats.LogSumExp, which subtracts the row maximum
// before exponentiating.
func eStep(x *mat.Dense, mixture *Mixture) (*mat.Dense, float64) {
	n, d := x.Dims()
	k := mixture.NumComponents()
	post := mat.NewDense(n, k, nil)
	f := make([]float64, k)
	cost := 0.0
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		observed := 0
		for j := 0; j < d; j++ {
			if row[j] != 0 {
				observed++
			}
		}
		for c := 0; c < k; c++ {
			mu := mixture.Mu.RawRowView(c)
			dist := 0.0
			for j := 0; j < d; j++ {
				if row[j] != 0 {
					delta := row[j] - mu[j]
					dist += delta * delta
				}
			}
			f[c] = -dist/(2*mixture.Var[c]) -
				float64(observed)/2*(log2Pi+math.Log(mixture.Var[c])) +
				math.Log(mixture.Weight[c]+weightEpsilon)
		}
		rowNorm := floats.LogSumExp(f)
		cost += rowNorm
		for c := 0; c < k; c++ {
			post.Set(i, c, math.Exp(f[c]-rowNorm))
		}
	}
	return post, cost
}

// mStep re-estimates mixture parameters from responsibilities. Means and
// variances accumulate observed cells only. A (component, dimension) mean
// with expected observed mass below one falls back to the previous mean,
// and variances never go below the floor.
func (gmm *GMM) mStep(x, post *mat.Dense, prev *Mixture) *Mixture {
	n, d := x.Dims()
	k := prev.NumComponents()
	next := &Mixture{
		Mu:     mat.NewDense(k, d, nil),
		Var:    make([]float64, k),
		Weight: make([]float64, k),
	}
	mass := make([]float64, d)
	weighted := make([]float64, d)
	for c := 0; c < k; c++ {
		respSum := 0.0
		for j := 0; j < d; j++ {
			mass[j], weighted[j] = 0, 0
		}
		for i := 0; i < n; i++ {
			p := post.At(i, c)
			respSum += p
			row := x.RawRowView(i)
			for j := 0; j < d; j++ {
				if row[j] != 0 {
					mass[j] += p
					weighted[j] += p * row[j]
				}
			}
		}
		for j := 0; j < d; j++ {
			if mass[j] >= 1 {
				next.Mu.Set(c, j, weighted[j]/mass[j])
			} else {
				next.Mu.Set(c, j, prev.Mu.At(c, j))
			}
		}
		next.Weight[c] = respSum / float64(n)
		// Residuals use the updated mean over observed cells.
		mu := next.Mu.RawRowView(c)
		residual, observedMass := 0.0, 0.0
		for i := 0; i < n; i++ {
			p := post.At(i, c)
			row := x.RawRowView(i)
			for j := 0; j < d; j++ {
				if row[j] != 0 {
					delta := row[j] - mu[j]
					residual += p * delta * delta
					observedMass += p
				}
			}
		}
		variance := prev.Var[c]
		if observedMass > 0 {
			variance = residual / observedMass
		}
		next.Var[c] = math.Max(gmm.minVariance, variance)
	}
	return next
}

// Fit runs EM until the log-likelihood improvement drops to Tolerance
// relative to its magnitude, or MaxIterations is reached. The mixture and
// responsibilities of the stopping iteration are kept on the model. Returns
// the final log-likelihood.
func (gmm *GMM) Fit(ctx context.Context, trainSet *dataset.RatingTable, config *FitConfig) (float64, error) {
	config = config.loadDefaultIfNil()
	log.Logger().Info("fit GMM",
		zap.Int("n_components", gmm.nComponents),
		zap.Int("n_users", trainSet.NumUsers()),
		zap.Int("n_items", trainSet.NumItems()),
		zap.Int("n_observed", trainSet.NumObserved()),
		zap.Float64("min_variance", gmm.minVariance),
		zap.Float64("tolerance", gmm.tolerance))
	// Reset the generator so that the same seed always yields the same
	// initial mixture.
	gmm.rng = base.NewRandomGenerator(gmm.randState)
	x := trainSet.Ratings
	mixture, post, err := gmm.initMixture(x)
	if err != nil {
		return 0, errors.Trace(err)
	}
	_, span := progress.Start(ctx, "GMM.Fit", gmm.maxIterations)
	defer span.End()
	var cost, prevCost float64
	iterations := 0
	for it := 0; it < gmm.maxIterations; it++ {
		post, cost = eStep(x, mixture)
		mixture = gmm.mStep(x, post, mixture)
		span.Add(1)
		iterations = it + 1
		if config.Verbose > 0 && iterations%config.Verbose == 0 {
			log.Logger().Debug("fit GMM",
				zap.Int("iteration", iterations),
				zap.Float64("log_likelihood", cost))
		}
		if it > 0 && cost-prevCost <= gmm.tolerance*math.Abs(cost) {
			break
		}
		prevCost = cost
	}
	gmm.Mixture = mixture
	gmm.Post = post
	gmm.Iterations = iterations
	log.Logger().Info("GMM converged",
		zap.Int("iterations", iterations),
		zap.Float64("log_likelihood", cost))
	return cost, nil
}

// Complete fills every zero cell of the table with its posterior-expectation
// estimate under the fitted mixture. Observed cells are copied unchanged.
// Responsibilities are recomputed on the still-masked input by the same
// stable E-step. The input is not mutated.
func (gmm *GMM) Complete(table *dataset.RatingTable) (*mat.Dense, error) {
	if gmm.Mixture == nil {
		return nil, errors.New("GMM is not fitted")
	}
	x := table.Ratings
	n, d := x.Dims()
	k := gmm.Mixture.NumComponents()
	post, _ := eStep(x, gmm.Mixture)
	completed := mat.DenseCopyOf(x)
	for i := 0; i < n; i++ {
		row := x.RawRowView(i)
		for j := 0; j < d; j++ {
			if row[j] == 0 {
				estimate := 0.0
				for c := 0; c < k; c++ {
					estimate += post.At(i, c) * gmm.Mixture.Mu.At(c, j)
				}
				completed.Set(i, j, estimate)
			}
		}
	}
	return completed, nil
}

// Predict estimates the rating of item itemIndex by user userIndex from the
// fitted responsibilities.
func (gmm *GMM) Predict(userIndex, itemIndex int) float64 {
	if gmm.Mixture == nil || gmm.Post == nil {
		log.Logger().Warn("GMM is not fitted")
		return 0
	}
	n, _ := gmm.Post.Dims()
	_, d := gmm.Mixture.Mu.Dims()
	if userIndex < 0 || userIndex >= n || itemIndex < 0 || itemIndex >= d {
		log.Logger().Warn("unknown user or item",
			zap.Int("user_index", userIndex),
			zap.Int("item_index", itemIndex))
		return 0
	}
	estimate := 0.0
	for c := 0; c < gmm.Mixture.NumComponents(); c++ {
		estimate += gmm.Post.At(userIndex, c) * gmm.Mixture.Mu.At(c, itemIndex)
	}
	return estimate
}
