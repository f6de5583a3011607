// Package geo maps Brazilian states (UF) to their IBGE macro-regions.
package geo

import "github.com/dalemusser/churchhub/internal/app/system/normalize"

// Macro is an IBGE macro-region code.
type Macro string

const (
	Norte       Macro = "N"
	Nordeste    Macro = "NE"
	CentroOeste Macro = "CO"
	Sudeste     Macro = "SE"
	Sul         Macro = "S"
)

var ufMacro = map[string]Macro{
	"AC": Norte, "AM": Norte, "AP": Norte, "PA": Norte, "RO": Norte, "RR": Norte, "TO": Norte,
	"AL": Nordeste, "BA": Nordeste, "CE": Nordeste, "MA": Nordeste, "PB": Nordeste,
	"PE": Nordeste, "PI": Nordeste, "RN": Nordeste, "SE": Nordeste,
	"DF": CentroOeste, "GO": CentroOeste, "MT": CentroOeste, "MS": CentroOeste,
	"ES": Sudeste, "MG": Sudeste, "RJ": Sudeste, "SP": Sudeste,
	"PR": Sul, "RS": Sul, "SC": Sul,
}

var macroNames = map[Macro]string{
	Norte:       "Norte",
	Nordeste:    "Nordeste",
	CentroOeste: "Centro-Oeste",
	Sudeste:     "Sudeste",
	Sul:         "Sul",
}

// MacroForUF returns the macro-region of uf. Case and surrounding space are
// ignored.
func MacroForUF(uf string) (Macro, bool) {
	m, ok := ufMacro[normalize.UF(uf)]
	return m, ok
}

// IsUF reports whether uf is one of the 27 federative units.
func IsUF(uf string) bool {
	_, ok := MacroForUF(uf)
	return ok
}

// Name returns the Portuguese name of m.
func (m Macro) Name() string { return macroNames[m] }
