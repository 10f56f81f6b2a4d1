// Package store exports built problems as JSON and keeps them on disk.
package store

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/san-kum/dynopt/internal/nlp"
)

// Float is a float64 that survives JSON with infinite values, written as
// "inf" and "-inf".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	switch v := float64(f); {
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(v):
		return []byte(`"nan"`), nil
	default:
		return json.Marshal(v)
	}
}

func (f *Float) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := parseFloat(s)
		*f = Float(v)
		return err
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

func parseFloat(s string) (float64, error) {
	switch s {
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type PhaseSummary struct {
	Index     int     `json:"index"`
	Model     string  `json:"model"`
	NX        int     `json:"nx"`
	NU        int     `json:"nu"`
	NShooting int     `json:"n_shooting"`
	FinalTime float64 `json:"final_time"`
}

type Variable struct {
	Name  string `json:"name"`
	Lower Float  `json:"lower"`
	Upper Float  `json:"upper"`
	Guess Float  `json:"guess"`
}

type Row struct {
	Residual string `json:"residual,omitempty"`
	Lower    Float  `json:"lower"`
	Upper    Float  `json:"upper"`
	Value    *Float `json:"value,omitempty"`
}

type ExportData struct {
	Name           string         `json:"name"`
	Phases         []PhaseSummary `json:"phases"`
	NumVars        int            `json:"num_vars"`
	NumConstraints int            `json:"num_constraints"`
	Objective      string         `json:"objective,omitempty"`
	Variables      []Variable     `json:"variables"`
	Constraints    []Row          `json:"constraints"`
}

// ExportOptions controls how much of the symbolic problem is written.
type ExportOptions struct {
	// Symbolic writes the residual and objective expressions.
	Symbolic bool
	// Values holds g at the initial guess, written next to each row.
	Values []float64
}

func NewExport(name string, prob *nlp.Problem, phases []*nlp.Phase, opts ExportOptions) *ExportData {
	data := &ExportData{
		Name:           name,
		NumVars:        prob.NumVars(),
		NumConstraints: prob.NumConstraints(),
		Variables:      make([]Variable, prob.NumVars()),
		Constraints:    make([]Row, prob.NumConstraints()),
	}
	for _, p := range phases {
		data.Phases = append(data.Phases, PhaseSummary{
			Index:     p.Index,
			Model:     p.Model.Name(),
			NX:        p.NX(),
			NU:        p.NU(),
			NShooting: p.NShooting,
			FinalTime: p.FinalTime,
		})
	}
	for i, v := range prob.Vars {
		data.Variables[i] = Variable{
			Name:  v.Name(),
			Lower: Float(prob.Lbx[i]),
			Upper: Float(prob.Ubx[i]),
			Guess: Float(prob.X0[i]),
		}
	}
	for i := range prob.G {
		row := Row{Lower: Float(prob.Lbg[i]), Upper: Float(prob.Ubg[i])}
		if opts.Symbolic {
			row.Residual = prob.G[i].String()
		}
		if i < len(opts.Values) {
			v := Float(opts.Values[i])
			row.Value = &v
		}
		data.Constraints[i] = row
	}
	if opts.Symbolic && prob.F != nil {
		data.Objective = prob.F.String()
	}
	return data
}

func ExportJSON(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

func ExportJSONStdout(data *ExportData) error {
	return WriteJSON(os.Stdout, data)
}

func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
