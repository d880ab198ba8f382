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

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kikimo/spin-stresser/pkg/spinlock"
)

const (
	deadlockReentry = "reentry"
	deadlockPanic   = "panic"
)

// deadlockCmd represents the deadlock command
var deadlockCmd = &cobra.Command{
	Use:   "deadlock",
	Short: "Show the two ways a spinlock stays held forever",
	Long: `deadlock demonstrates known limitations of the spinlock:

  reentry  calling WithLock again from inside the critical section
  panic    a panic inside the critical section skips the release

In both cases the next acquisition never completes. The command waits
--timeout for it and fails if it does complete. The stuck goroutine is
abandoned when the process exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := viper.GetString("deadlock.case")
		timeout := viper.GetDuration("deadlock.timeout")
		hung, err := RunDeadlock(kind, timeout)
		if err != nil {
			return err
		}
		if !hung {
			return errors.Errorf("%s case completed within %s", kind, timeout)
		}
		log.WithFields(log.Fields{"case": kind, "timeout": timeout}).Info("lock stayed held as expected")
		return nil
	},
}

// RunDeadlock triggers the named case and reports whether the following
// acquisition was still spinning after timeout.
func RunDeadlock(kind string, timeout time.Duration) (bool, error) {
	l := spinlock.New(0)
	done := make(chan struct{})

	switch kind {
	case deadlockReentry:
		go func() {
			l.Do(func(v *int) {
				l.Do(func(v *int) { *v++ })
			})
			close(done)
		}()
	case deadlockPanic:
		func() {
			defer func() {
				log.WithField("panic", recover()).Debug("recovered from critical section")
			}()
			l.Do(func(v *int) { panic("critical section failed") })
		}()
		go func() {
			l.Do(func(v *int) {})
			close(done)
		}()
	default:
		return false, errors.Errorf("unknown case %q, want %q or %q", kind, deadlockReentry, deadlockPanic)
	}

	select {
	case <-done:
		return false, nil
	case <-time.After(timeout):
		return true, nil
	}
}

func init() {
	deadlockCmd.Flags().String("case", deadlockReentry, "reentry or panic")
	deadlockCmd.Flags().Duration("timeout", 500*time.Millisecond, "how long to wait for the stuck acquisition")
	bindFlag("deadlock.case", deadlockCmd.Flags().Lookup("case"))
	bindFlag("deadlock.timeout", deadlockCmd.Flags().Lookup("timeout"))
	rootCmd.AddCommand(deadlockCmd)
}
