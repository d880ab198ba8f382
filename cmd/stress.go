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
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kikimo/spin-stresser/pkg/metrics"
	"github.com/kikimo/spin-stresser/pkg/spinlock"
	"github.com/kikimo/spin-stresser/pkg/workload"
)

const metricsNamespace = "spin_stresser"

// StressOptions configures a stress run.
type StressOptions struct {
	Workload    workload.Config
	Trials      int
	Variant     string
	MetricsAddr string
}

// stressCmd represents the stress command
var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Repeat the counter workload and count trials that lost updates",
	Long: `stress runs the counter workload --trials times, each on a fresh lock of
the chosen --variant, and reports how many trials lost increments or saw
two goroutines inside the critical section at once.

The spin variant must never fail; the command exits non-zero if it does.
The relaxed variant releases the lock without ordering and may fail, but
passing on your hardware does not make it correct.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := StressOptions{
			Workload:    workloadConfig("stress"),
			Trials:      viper.GetInt("stress.trials"),
			Variant:     viper.GetString("stress.variant"),
			MetricsAddr: viper.GetString("stress.metrics-addr"),
		}
		_, err := RunStress(cmd.Context(), opt)
		return err
	},
}

// RunStress runs opt.Trials counter workloads and returns their summary.
func RunStress(ctx context.Context, opt StressOptions) (workload.Summary, error) {
	var m *metrics.Metrics
	if opt.MetricsAddr != "" {
		m = metrics.New(metricsNamespace)
	}
	newLocker, err := newLockerFactory(opt.Variant, lockerOptions(m, opt.Variant)...)
	if err != nil {
		return workload.Summary{}, err
	}

	if m != nil {
		srv, _, err := serveMetrics(opt.MetricsAddr, m)
		if err != nil {
			return workload.Summary{}, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("metrics server shutdown")
			}
		}()
	}

	logger := log.WithFields(log.Fields{
		"variant": opt.Variant,
		"workers": opt.Workload.Workers,
		"iter":    opt.Workload.Iterations,
		"trials":  opt.Trials,
	})
	logger.Info("stress started")
	start := time.Now()
	s, err := workload.Trials(ctx, opt.Workload, opt.Trials, newLocker)
	if err != nil {
		return s, err
	}

	logger = logger.WithFields(log.Fields{
		"elapsed":   time.Since(start),
		"failed":    s.Failed,
		"lost":      s.LostTotal,
		"maxInside": s.MaxInside,
	})
	switch {
	case s.OK():
		logger.Info("stress done")
	case opt.Variant == variantRelaxed:
		logger.Warn("relaxed release lost updates")
	default:
		logger.Error("spinlock lost updates")
		return s, errors.Errorf("%d of %d trials failed", s.Failed, s.Trials)
	}
	return s, nil
}

// lockerOptions returns no options when metrics are disabled.
func lockerOptions(m *metrics.Metrics, variant string) []spinlock.Option {
	if m == nil {
		return nil
	}
	return []spinlock.Option{spinlock.WithObserver(m.Observer(variant))}
}

// serveMetrics serves m on addr and returns the server and the address it
// actually listens on.
func serveMetrics(addr string, m *metrics.Metrics) (*http.Server, string, error) {
	reg := prometheus.NewRegistry()
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, "", errors.Wrap(err, "registering metrics")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", errors.Wrap(err, "listening for metrics")
	}
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server")
		}
	}()
	log.WithField("addr", ln.Addr().String()).Info("serving metrics")
	return srv, ln.Addr().String(), nil
}

func init() {
	stressCmd.Flags().IntP("workers", "w", 10, "number of goroutines per trial")
	stressCmd.Flags().IntP("iter", "i", 100, "increments per goroutine")
	stressCmd.Flags().IntP("trials", "t", 10000, "number of trials")
	stressCmd.Flags().StringP("variant", "v", variantSpin, "lock variant, spin or relaxed")
	stressCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	for _, name := range []string{"workers", "iter", "trials", "variant", "metrics-addr"} {
		bindFlag("stress."+name, stressCmd.Flags().Lookup(name))
	}
	rootCmd.AddCommand(stressCmd)
}
