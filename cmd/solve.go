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
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/conduction/InputParameters"
	"github.com/notargets/conduction/conduction"
	"github.com/notargets/conduction/export"
	"github.com/notargets/conduction/model_problems"
	"github.com/notargets/conduction/utils"
)

type Solve struct {
	InputFile  string
	Model      string
	Res        []int
	Partitions int
	Output     string
	Plot       string
	Profile    string
}

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a problem file or one of the canned model problems",
	Long: `
Builds the grid, assembles the operator and right hand side, and runs the
Krylov solver. Problem files are YAML, or HCL when named *.hcl.

conduction solve -I problem.yaml --output result --plot result.png
conduction solve --model plate --res 41,41 --method gmres`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		s := &Solve{}
		s.InputFile, _ = cmd.Flags().GetString("inputFile")
		s.Model, _ = cmd.Flags().GetString("model")
		s.Res, _ = cmd.Flags().GetIntSlice("res")
		s.Partitions, _ = cmd.Flags().GetInt("partitions")
		s.Output, _ = cmd.Flags().GetString("output")
		s.Plot, _ = cmd.Flags().GetString("plot")
		s.Profile, _ = cmd.Flags().GetString("profile")
		switch s.Profile {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
		default:
			return fmt.Errorf("unknown profile %q, should be cpu or mem", s.Profile)
		}
		log, err := newLogger(cmd.ErrOrStderr())
		if err != nil {
			return
		}
		return RunSolve(s, log)
	},
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().StringP("inputFile", "I", "", "YAML or HCL problem file")
	SolveCmd.Flags().StringP("model", "m", "rod", fmt.Sprintf("canned model problem, one of %v", model_problems.Names()))
	SolveCmd.Flags().IntSlice("res", nil, "nodes per axis for the canned model, x first")
	SolveCmd.Flags().IntP("partitions", "p", 0, "number of ranks the grid is split over")
	SolveCmd.Flags().StringP("output", "o", "", "container file for the mesh, temperature and heat flux")
	SolveCmd.Flags().String("plot", "", "PNG file for a temperature plot")
	SolveCmd.Flags().String("profile", "", "write a cpu or mem profile to the working directory")
	SolveCmd.Flags().String("preset", "", "solver tolerance preset, 2d or nd")
	SolveCmd.Flags().String("method", "", "Krylov method: bcgs, cg or gmres")
	SolveCmd.Flags().Float64("rtol", 0, "relative residual tolerance")
	SolveCmd.Flags().Float64("atol", 0, "absolute residual tolerance")
	SolveCmd.Flags().Int("max-iterations", 0, "iteration limit")
	SolveCmd.Flags().String("pc", "", "preconditioner: none or jacobi")
	for key, flag := range map[string]string{
		"solver.preset":         "preset",
		"solver.method":         "method",
		"solver.rtol":           "rtol",
		"solver.atol":           "atol",
		"solver.max-iterations": "max-iterations",
		"solver.preconditioner": "pc",
	} {
		_ = viper.BindPFlag(key, SolveCmd.Flags().Lookup(flag))
	}
}

func RunSolve(s *Solve, log *slog.Logger) (err error) {
	var (
		m *conduction.Model
		T []float64
	)
	if m, err = buildModel(s, log); err != nil {
		return
	}
	log.Info("model", "dim", m.Dim, "res", m.Res, "ranks", m.Ranks(), "nodes", m.NodeCount())
	if T, err = m.Solve(); err != nil {
		return
	}
	log.Debug("memory", "usage", utils.GetMemUsage())
	if len(s.Output) != 0 {
		if err = saveSolution(m, T, s.Output); err != nil {
			return
		}
		log.Info("wrote", "file", export.Filename(s.Output))
	}
	if len(s.Plot) != 0 {
		if err = plotSolution(m, T, s.Plot); err != nil {
			return
		}
		log.Info("plotted", "file", s.Plot)
	}
	return
}

func buildModel(s *Solve, log *slog.Logger) (m *conduction.Model, err error) {
	var (
		opts    = []conduction.Option{conduction.WithLogger(log)}
		sp, set = solverParameters()
		cp      *InputParameters.ConductionParameters
	)
	if s.Partitions > 0 {
		opts = append(opts, conduction.WithPartitions(s.Partitions))
	}
	if len(s.InputFile) == 0 {
		if set {
			cfg, err := model_problems.SolverConfig(sp)
			if err != nil {
				return nil, err
			}
			opts = append(opts, conduction.WithSolverConfig(cfg))
		}
		return model_problems.ByName(s.Model, s.Res, opts...)
	}
	if cp, err = InputParameters.Load(s.InputFile); err != nil {
		return
	}
	if set {
		cp.Solver = mergeSolver(cp.Solver, sp)
	}
	if log.Enabled(context.Background(), slog.LevelDebug) {
		cp.Print()
	}
	return model_problems.NewFromParameters(cp, log, opts...)
}

func saveSolution(m *conduction.Model, T []float64, filename string) (err error) {
	var (
		q [][]float64
	)
	if q, err = m.HeatFlux(); err != nil {
		return
	}
	// A fresh container each run, SaveMesh truncates
	if err = m.SaveMesh(filename); err != nil {
		return
	}
	if err = m.SaveField(filename, nil, map[string][]float64{
		"temperature": T,
		"diffusivity": m.Diffusivity(),
		"heat_source": m.HeatSources(),
	}); err != nil {
		return
	}
	return m.SaveVector(filename, nil, map[string][][]float64{"heat_flux": q})
}

// plotSolution draws a profile in 1D, a heat map in 2D and the temperature
// along the first grid line of the last axis in 3D
func plotSolution(m *conduction.Model, T []float64, filename string) error {
	switch m.Dim {
	case 1:
		return export.PlotProfile(filename, "Temperature", "x", "T",
			export.Series{Name: "T", X: m.AxisCoordinates(0), Y: T})
	case 2:
		return export.PlotHeatMap(filename, "Temperature", m.AxisCoordinates(0), m.AxisCoordinates(1), T)
	default:
		var (
			z      = m.AxisCoordinates(m.Dim - 1)
			stride = m.NodeCount() / len(z)
			col    = make([]float64, len(z))
		)
		for k := range col {
			col[k] = T[k*stride]
		}
		return export.PlotProfile(filename, "Temperature", "z", "T",
			export.Series{Name: "T(z)", X: z, Y: col})
	}
}
