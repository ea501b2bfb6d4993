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

// Package dataset loads and describes dense rating tables. A cell holding
// exactly zero is an unobserved rating, any other value is observed.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// RatingTable is a dense user-by-item rating matrix with a zero sentinel
// for missing entries. Observation masks are derived from the ratings on
// demand and never cached.
type RatingTable struct {
	Ratings *mat.Dense
}

// NewRatingTable creates a RatingTable from a dense matrix.
func NewRatingTable(ratings *mat.Dense) *RatingTable {
	return &RatingTable{Ratings: ratings}
}

// NumUsers returns the number of rows.
func (table *RatingTable) NumUsers() int {
	n, _ := table.Ratings.Dims()
	return n
}

// NumItems returns the number of columns.
func (table *RatingTable) NumItems() int {
	_, d := table.Ratings.Dims()
	return d
}

// Observed reports whether the rating of item j by user i was recorded.
func (table *RatingTable) Observed(i, j int) bool {
	return table.Ratings.At(i, j) != 0
}

// NumObserved counts observed cells.
func (table *RatingTable) NumObserved() int {
	n, d := table.Ratings.Dims()
	count := 0
	for i := 0; i < n; i++ {
		row := table.Ratings.RawRowView(i)
		for j := 0; j < d; j++ {
			if row[j] != 0 {
				count++
			}
		}
	}
	return count
}

// NumObservedInRow counts observed cells of a single user.
func (table *RatingTable) NumObservedInRow(i int) int {
	row := table.Ratings.RawRowView(i)
	count := 0
	for j := range row {
		if row[j] != 0 {
			count++
		}
	}
	return count
}

// GlobalMean returns the mean of observed ratings. Zero when nothing is
// observed.
func (table *RatingTable) GlobalMean() float64 {
	n, d := table.Ratings.Dims()
	sum, count := 0.0, 0
	for i := 0; i < n; i++ {
		row := table.Ratings.RawRowView(i)
		for j := 0; j < d; j++ {
			if row[j] != 0 {
				sum += row[j]
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// LoadMatrix reads a whitespace-delimited numeric matrix, one user per line.
func LoadMatrix(path string) (*RatingTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	var (
		data    []float64
		numRows int
		numCols int
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if numCols == 0 {
			numCols = len(fields)
		} else if len(fields) != numCols {
			return nil, errors.Errorf("%s: row %d has %d columns, expected %d",
				path, numRows+1, len(fields), numCols)
		}
		for _, field := range fields {
			value, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Trace(err)
			}
			data = append(data, value)
		}
		numRows++
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	if numRows == 0 {
		return nil, errors.Errorf("%s: empty matrix", path)
	}
	return NewRatingTable(mat.NewDense(numRows, numCols, data)), nil
}

// SaveMatrix writes a matrix in the same whitespace-delimited format read
// by LoadMatrix.
func SaveMatrix(path string, m mat.Matrix) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	n, d := m.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			if j > 0 {
				if _, err = writer.WriteString(" "); err != nil {
					return errors.Trace(err)
				}
			}
			if _, err = writer.WriteString(formatRating(m.At(i, j))); err != nil {
				return errors.Trace(err)
			}
		}
		if _, err = writer.WriteString("\n"); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(writer.Flush())
}

func formatRating(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// String renders dimensions and sparsity for logging.
func (table *RatingTable) String() string {
	return fmt.Sprintf("RatingTable(%d users, %d items, %d observed)",
		table.NumUsers(), table.NumItems(), table.NumObserved())
}
