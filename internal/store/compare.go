package store

import "fmt"

// Difference is one disagreement between two runs of the same program.
type Difference struct {
	Field string `json:"field"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: want %q, got %q", d.Field, d.Want, d.Got)
}

// Compare checks that got reproduces want: same program, same result and the
// same specializations in the same discovery order. Identifiers, seq and
// step counts are not compared.
//
// Returns nil when the runs agree.
func Compare(want, got *Run) []Difference {
	var diffs []Difference
	check := func(field, w, g string) {
		if w != g {
			diffs = append(diffs, Difference{Field: field, Want: w, Got: g})
		}
	}

	check("program_hash", want.ProgramHash, got.ProgramHash)
	check("entry", want.Entry, got.Entry)
	check("status", want.Status, got.Status)
	check("outcome", want.Outcome, got.Outcome)
	check("error_code", want.ErrorCode, got.ErrorCode)
	check("assembled", want.Assembled, got.Assembled)
	check("specializations", fmt.Sprint(len(want.Specializations)), fmt.Sprint(len(got.Specializations)))

	n := min(len(want.Specializations), len(got.Specializations))
	for i := range n {
		w, g := want.Specializations[i], got.Specializations[i]
		prefix := fmt.Sprintf("specializations[%d]", i)
		check(prefix+".function", w.Function, g.Function)
		check(prefix+".signature_hash", w.SignatureHash, g.SignatureHash)
		check(prefix+".outcome_hash", w.OutcomeHash, g.OutcomeHash)
	}
	return diffs
}
