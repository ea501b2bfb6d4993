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

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RMSE is the root-mean-square error between a completed matrix and the
// ground truth over all cells.
func RMSE(predictions, truth *mat.Dense) float64 {
	temp := residuals(predictions, truth)
	floats.MulTo(temp, temp, temp)
	return math.Sqrt(stat.Mean(temp, nil))
}

// MAE is the mean absolute error between a completed matrix and the ground
// truth over all cells.
func MAE(predictions, truth *mat.Dense) float64 {
	temp := residuals(predictions, truth)
	for i := range temp {
		temp[i] = math.Abs(temp[i])
	}
	return stat.Mean(temp, nil)
}

func residuals(predictions, truth *mat.Dense) []float64 {
	n, d := predictions.Dims()
	tn, td := truth.Dims()
	if n != tn || d != td {
		panic("mismatched matrix dimensions")
	}
	// Subtract row by row. The backing slices may carry a stride larger than
	// the column count when the matrices are views.
	temp := make([]float64, n*d)
	for i := 0; i < n; i++ {
		floats.SubTo(temp[i*d:(i+1)*d], predictions.RawRowView(i), truth.RawRowView(i))
	}
	return temp
}
