/*
Copyright © 2024 The conduction Authors

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
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/conduction/InputParameters"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "conduction",
	Short: "Steady state heat conduction on structured grids",
	Long: `
Assembles and solves the finite difference form of div(k grad T) = H on a
structured grid of one to three dimensions, with Dirichlet or flux conditions
on each face.

conduction solve --model crust --output crust`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.conduction.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".conduction")
	}
	viper.SetEnvPrefix("CONDUCTION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger(w io.Writer) (log *slog.Logger, err error) {
	var (
		level slog.Level
	)
	if err = level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return
	}
	log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return
}

var solverKeys = []string{
	"solver.preset", "solver.method", "solver.rtol", "solver.atol",
	"solver.max-iterations", "solver.preconditioner",
}

// solverParameters collects the solver keys from flags, environment and the
// config file. set is false when none of them was given.
func solverParameters() (sp *InputParameters.SolverParameters, set bool) {
	for _, key := range solverKeys {
		if viper.IsSet(key) {
			set = true
		}
	}
	sp = &InputParameters.SolverParameters{
		Preset:         viper.GetString("solver.preset"),
		Method:         viper.GetString("solver.method"),
		RTol:           viper.GetFloat64("solver.rtol"),
		ATol:           viper.GetFloat64("solver.atol"),
		MaxIterations:  viper.GetInt("solver.max-iterations"),
		Preconditioner: viper.GetString("solver.preconditioner"),
	}
	return
}

// mergeSolver lays the non zero fields of src over dst
func mergeSolver(dst, src *InputParameters.SolverParameters) *InputParameters.SolverParameters {
	if dst == nil {
		return src
	}
	m := *dst
	if src.Preset != "" {
		m.Preset = src.Preset
	}
	if src.Method != "" {
		m.Method = src.Method
	}
	if src.RTol != 0 {
		m.RTol = src.RTol
	}
	if src.ATol != 0 {
		m.ATol = src.ATol
	}
	if src.MaxIterations != 0 {
		m.MaxIterations = src.MaxIterations
	}
	if src.Preconditioner != "" {
		m.Preconditioner = src.Preconditioner
	}
	return &m
}
