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
	"context"
	"fmt"
	"time"

	"github.com/gmix-io/gmix/base/log"
	"github.com/gmix-io/gmix/base/progress"
	"github.com/gmix-io/gmix/dataset"
	"github.com/gmix-io/gmix/model"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "0.1.0"

var rootCommand = &cobra.Command{
	Use:   "gmix",
	Short: "Rating matrix completion with Gaussian mixture models",
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Print the version of gmix",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().BoolP("verbose", "v", false, "use debug log mode")
	rootCommand.AddCommand(versionCommand, testCommand, completeCommand)
	for _, command := range []*cobra.Command{testCommand, completeCommand} {
		command.Flags().IntP("components", "k", 4, "number of mixture components")
		command.Flags().Int64("seed", 0, "random seed")
		command.Flags().Float64("min-variance", 0.25, "lower bound of component variances")
		command.Flags().Float64("tolerance", 1e-6, "relative log-likelihood tolerance")
		command.Flags().Int("max-iterations", 500, "hard cap of EM iterations")
	}
}

func setupLogger(cmd *cobra.Command) {
	debug, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	log.SetLogger(cmd.Root().PersistentFlags(), debug)
}

// fitModel fits a GMM on the table while rendering a progress bar fed by the
// fit span.
func fitModel(cmd *cobra.Command, table *dataset.RatingTable) (*model.GMM, error) {
	components, _ := cmd.Flags().GetInt("components")
	seed, _ := cmd.Flags().GetInt64("seed")
	minVariance, _ := cmd.Flags().GetFloat64("min-variance")
	tolerance, _ := cmd.Flags().GetFloat64("tolerance")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	gmm := model.NewGMM(model.Params{
		model.NComponents:   components,
		model.RandomState:   seed,
		model.MinVariance:   minVariance,
		model.Tolerance:     tolerance,
		model.MaxIterations: maxIterations,
	})
	tracer := progress.NewTracer("gmix")
	ctx, span := tracer.Start(context.Background(), cmd.Name(), 1)
	bar := progressbar.NewOptions(maxIterations,
		progressbar.OptionSetDescription("fit"),
		progressbar.OptionClearOnFinish())
	done := make(chan error, 1)
	go func() {
		_, err := gmm.Fit(ctx, table, model.NewFitConfig())
		done <- err
	}()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			_ = bar.Finish()
			span.End()
			if err != nil {
				return nil, errors.Trace(err)
			}
			return gmm, nil
		case <-ticker.C:
			for _, p := range tracer.List() {
				if p.Name == "GMM.Fit" {
					_ = bar.Set(p.Count)
				}
			}
		}
	}
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
