package types

import (
	"fmt"
	"strings"
)

type BCFLAG uint8

const (
	BC_None BCFLAG = iota
	BC_Dirichlet
	BC_Flux
)

var BCNameMap = map[string]BCFLAG{
	"dirichlet": BC_Dirichlet,
	"fixed":     BC_Dirichlet,
	"flux":      BC_Flux,
	"neumann":   BC_Flux,
	"neuman":    BC_Flux,
}

func (bf BCFLAG) String() string {
	switch bf {
	case BC_None:
		return "None"
	case BC_Dirichlet:
		return "Dirichlet"
	case BC_Flux:
		return "Flux"
	}
	return fmt.Sprintf("BCFLAG(%d)", bf)
}

// NewBCFLAG parses a boundary kind, case insensitive
func NewBCFLAG(name string) (bf BCFLAG, err error) {
	var ok bool
	if bf, ok = BCNameMap[strings.ToLower(strings.TrimSpace(name))]; !ok {
		err = fmt.Errorf("unknown boundary kind %q", name)
	}
	return
}
