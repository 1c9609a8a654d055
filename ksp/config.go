package ksp

import (
	"fmt"
	"strings"
)

const (
	BCGS  = "bcgs"
	CG    = "cg"
	GMRES = "gmres"
)

const (
	PCNone   = "none"
	PCJacobi = "jacobi"
)

type Config struct {
	Method         string  `yaml:"method"`
	RTol           float64 `yaml:"rtol"`
	ATol           float64 `yaml:"atol"`
	MaxIterations  int     `yaml:"max-iterations"`
	Restart        int     `yaml:"restart"` // GMRES restart length
	Preconditioner string  `yaml:"preconditioner"`
}

var (
	// Preset2D are the tolerances historically used by the 2D engine
	Preset2D = Config{
		Method:         BCGS,
		RTol:           1.e-10,
		ATol:           1.e-50,
		MaxIterations:  10000,
		Restart:        30,
		Preconditioner: PCNone,
	}
	// PresetND asks for a relative reduction below round off, in practice the
	// solve runs until MaxIterations unless the absolute floor is met
	PresetND = Config{
		Method:         BCGS,
		RTol:           1.e-20,
		ATol:           1.e-50,
		MaxIterations:  10000,
		Restart:        30,
		Preconditioner: PCNone,
	}
)

func DefaultConfig() Config { return Preset2D }

func PresetByName(name string) (cfg Config, err error) {
	switch strings.ToLower(name) {
	case "2d", "":
		cfg = Preset2D
	case "nd":
		cfg = PresetND
	default:
		err = fmt.Errorf("unknown solver preset %q, should be one of 2d, nd", name)
	}
	return
}

func (cfg Config) Validate() (err error) {
	switch cfg.Method {
	case BCGS, CG, GMRES:
	default:
		return fmt.Errorf("unknown solver method %q, should be one of %s, %s, %s", cfg.Method, BCGS, CG, GMRES)
	}
	switch cfg.Preconditioner {
	case PCNone, PCJacobi, "":
	default:
		return fmt.Errorf("unknown preconditioner %q, should be one of %s, %s", cfg.Preconditioner, PCNone, PCJacobi)
	}
	switch {
	case cfg.RTol < 0 || cfg.ATol < 0:
		err = fmt.Errorf("tolerances must be non negative, have rtol %g and atol %g", cfg.RTol, cfg.ATol)
	case cfg.MaxIterations < 1:
		err = fmt.Errorf("max iterations must be positive, have %d", cfg.MaxIterations)
	case cfg.Method == GMRES && cfg.Restart < 1:
		err = fmt.Errorf("gmres restart must be positive, have %d", cfg.Restart)
	}
	return
}

func (cfg Config) Print() {
	fmt.Printf("Method = %s, Preconditioner = %s\n", cfg.Method, cfg.Preconditioner)
	fmt.Printf("RTol = %8.3g, ATol = %8.3g, MaxIterations = %d\n", cfg.RTol, cfg.ATol, cfg.MaxIterations)
}
