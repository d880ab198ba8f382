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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kikimo/spin-stresser/cmd/litmus"
)

// litmusCmd represents the litmus command
var litmusCmd = &cobra.Command{
	Use:   "litmus",
	Short: "Run the load buffering litmus test",
	Long: `litmus runs two goroutines, r1 = y; x = r1 and r2 = x; y = 42, --runs
times and prints how often each (r1, r2) outcome was seen.

In ordered mode the variables are sync/atomic values and r1 = r2 = 42 can
never happen. In relaxed mode they are plain memory and nothing forbids it,
though most hardware never shows it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := litmus.ParseMode(viper.GetString("litmus.mode"))
		if err != nil {
			return err
		}
		h, err := litmus.Run(mode, viper.GetInt("litmus.runs"))
		if err != nil {
			return err
		}

		for _, o := range h.Outcomes() {
			log.WithFields(log.Fields{"r1": o.R1, "r2": o.R2, "count": h[o]}).Info("outcome")
		}
		if n := h[litmus.Forbidden]; n > 0 {
			if mode == litmus.Ordered {
				return errors.Errorf("ordered mode produced %v %d times", litmus.Forbidden, n)
			}
			log.WithField("count", n).Warn("relaxed mode produced the forbidden outcome")
		}
		return nil
	},
}

func init() {
	litmusCmd.Flags().IntP("runs", "r", 100000, "number of runs")
	litmusCmd.Flags().StringP("mode", "m", string(litmus.Ordered), "ordered or relaxed")
	bindFlag("litmus.runs", litmusCmd.Flags().Lookup("runs"))
	bindFlag("litmus.mode", litmusCmd.Flags().Lookup("mode"))
	rootCmd.AddCommand(litmusCmd)
}
