package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kikimo/spin-stresser/pkg/spinlock"
	"github.com/kikimo/spin-stresser/pkg/workload"
)

// lock variants selectable from the command line
const (
	variantSpin    = "spin"
	variantRelaxed = "relaxed"
)

// bindFlag makes the flag readable through viper under key, so it can also
// come from the config file or SPINSTRESS_* environment variables.
func bindFlag(key string, flag *pflag.Flag) {
	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// workloadConfig reads workers and iterations for the command under prefix.
func workloadConfig(prefix string) workload.Config {
	return workload.Config{
		Workers:    viper.GetInt(prefix + ".workers"),
		Iterations: viper.GetInt(prefix + ".iter"),
	}
}

// newLockerFactory returns a constructor for fresh zeroed counters of the
// named variant.
func newLockerFactory(variant string, opts ...spinlock.Option) (func() workload.Locker[int64], error) {
	switch variant {
	case variantSpin:
		return func() workload.Locker[int64] { return spinlock.New(int64(0), opts...) }, nil
	case variantRelaxed:
		return func() workload.Locker[int64] { return spinlock.NewRelaxed(int64(0), opts...) }, nil
	}
	return nil, errors.Errorf("unknown variant %q, want %q or %q", variant, variantSpin, variantRelaxed)
}
