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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestRMSE(t *testing.T) {
	truth := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	predictions := mat.NewDense(2, 2, []float64{2, 2, 3, 4})
	assert.InDelta(t, math.Sqrt(0.25), RMSE(predictions, truth), 1e-12)
	assert.Zero(t, RMSE(truth, truth))
}

func TestMAE(t *testing.T) {
	truth := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	predictions := mat.NewDense(2, 2, []float64{2, 2, 3, 2})
	assert.InDelta(t, 0.75, MAE(predictions, truth), 1e-12)
	assert.Zero(t, MAE(truth, truth))
}

func TestRMSE_SlicedViews(t *testing.T) {
	// views into a larger matrix have a stride wider than their column
	// count, so the metrics must not read past each row
	big := mat.NewDense(3, 3, []float64{
		1, 2, 100,
		3, 4, 100,
		100, 100, 100,
	})
	truth := big.Slice(0, 2, 0, 2).(*mat.Dense)
	predictions := mat.NewDense(2, 2, []float64{2, 2, 3, 4})
	assert.InDelta(t, math.Sqrt(0.25), RMSE(predictions, truth), 1e-12)
	assert.InDelta(t, 0.25, MAE(predictions, truth), 1e-12)
	assert.Zero(t, RMSE(truth, truth))
}

func TestRMSE_Mismatched(t *testing.T) {
	assert.Panics(t, func() {
		RMSE(mat.NewDense(1, 2, nil), mat.NewDense(2, 1, nil))
	})
}
