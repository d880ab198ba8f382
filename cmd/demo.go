/*
Copyright © 2021 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kikimo/spin-stresser/pkg/spinlock"
	"github.com/kikimo/spin-stresser/pkg/workload"
)

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Increment a shared counter from several goroutines once",
	Long: `demo starts --workers goroutines that each increment a counter guarded
by a spinlock --iter times, joins them and checks the final value is
workers*iter. The defaults are 10 workers and 100 iterations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunDemo(cmd.Context(), workloadConfig("demo"))
	},
}

// RunDemo runs a single counter workload on a SpinLock.
func RunDemo(ctx context.Context, cfg workload.Config) error {
	res, err := workload.Counter[int64](ctx, spinlock.New(int64(0)), cfg)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"workers":   cfg.Workers,
		"iter":      cfg.Iterations,
		"final":     res.Final,
		"maxInside": res.MaxInside,
	}).Info("demo done")
	if !res.OK() {
		return errors.Errorf("counter ended at %d, want %d", res.Final, res.Expected)
	}
	return nil
}

func init() {
	demoCmd.Flags().IntP("workers", "w", 10, "number of goroutines")
	demoCmd.Flags().IntP("iter", "i", 100, "increments per goroutine")
	bindFlag("demo.workers", demoCmd.Flags().Lookup("workers"))
	bindFlag("demo.iter", demoCmd.Flags().Lookup("iter"))
	rootCmd.AddCommand(demoCmd)
}
