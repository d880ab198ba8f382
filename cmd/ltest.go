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
	"time"

	"github.com/anishathalye/porcupine"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kikimo/spin-stresser/cmd/ltest"
)

// ltestCmd represents the ltest command
var ltestCmd = &cobra.Command{
	Use:   "ltest",
	Short: "Linearizability test using Porcupine",
	Long: `ltest has --clients goroutines issue --iter random get and increment
operations on a spinlock guarded counter, records the call and return of
each operation and checks the history for linearizability with porcupine.
With --html the history is also rendered to an HTML file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed := viper.GetInt64("ltest.seed")
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		report, err := ltest.RunLinearizabilityTestAndCheck(
			viper.GetInt("ltest.clients"),
			viper.GetInt("ltest.iter"),
			seed,
			viper.GetBool("ltest.html"),
		)
		if err != nil {
			return err
		}

		logger := log.WithFields(log.Fields{
			"result":     report.Result,
			"operations": report.Operations,
			"seed":       seed,
		})
		if report.HTMLPath != "" {
			logger = logger.WithField("path", report.HTMLPath)
		}
		logger.Info("check done")
		if report.Result != porcupine.Ok {
			return errors.Errorf("history is not linearizable: %s", report.Result)
		}
		return nil
	},
}

func init() {
	ltestCmd.Flags().IntP("clients", "c", 4, "number of concurrents")
	ltestCmd.Flags().IntP("iter", "i", 256, "number of iterations")
	ltestCmd.Flags().Int64("seed", 0, "random seed, 0 picks one from the clock")
	ltestCmd.Flags().Bool("html", false, "write the porcupine visualization to a temp file")
	for _, name := range []string{"clients", "iter", "seed", "html"} {
		bindFlag("ltest."+name, ltestCmd.Flags().Lookup(name))
	}
	rootCmd.AddCommand(ltestCmd)
}
