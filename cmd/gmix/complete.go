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
	"github.com/gmix-io/gmix/base/log"
	"github.com/gmix-io/gmix/dataset"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var completeCommand = &cobra.Command{
	Use:   "complete INCOMPLETE_FILE OUTPUT_FILE",
	Short: "Fit on an incomplete matrix and write the completed matrix",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(cmd)
		incomplete, err := dataset.LoadMatrix(args[0])
		if err != nil {
			return errors.Trace(err)
		}
		gmm, err := fitModel(cmd, incomplete)
		if err != nil {
			return errors.Trace(err)
		}
		completed, err := gmm.Complete(incomplete)
		if err != nil {
			return errors.Trace(err)
		}
		if err = dataset.SaveMatrix(args[1], completed); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("completed matrix saved",
			zap.String("path", args[1]),
			zap.Int("n_imputed", incomplete.NumUsers()*incomplete.NumItems()-incomplete.NumObserved()))
		return nil
	},
}
