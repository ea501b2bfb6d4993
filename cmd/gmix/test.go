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

package main

import (
	"fmt"

	"github.com/gmix-io/gmix/dataset"
	"github.com/gmix-io/gmix/model"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
)

var testCommand = &cobra.Command{
	Use:   "test INCOMPLETE_FILE COMPLETE_FILE",
	Short: "Fit on an incomplete matrix and report the error against a reference matrix",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(cmd)
		incomplete, err := dataset.LoadMatrix(args[0])
		if err != nil {
			return errors.Trace(err)
		}
		reference, err := dataset.LoadMatrix(args[1])
		if err != nil {
			return errors.Trace(err)
		}
		if incomplete.NumUsers() != reference.NumUsers() ||
			incomplete.NumItems() != reference.NumItems() {
			return errors.Errorf("matrix shapes differ: %v vs %v",
				incomplete, reference)
		}
		gmm, err := fitModel(cmd, incomplete)
		if err != nil {
			return errors.Trace(err)
		}
		completed, err := gmm.Complete(incomplete)
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Printf("RMSE = %v\n", model.RMSE(completed, reference.Ratings))
		fmt.Printf("MAE = %v\n", model.MAE(completed, reference.Ratings))
		return nil
	},
}
