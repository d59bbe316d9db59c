/*
rules.go - Ordered, first-match-wins classification pipeline

PURPOSE:
  Classifies each input into exactly one outcome by evaluating a fixed,
  ordered list of rules. The first rule that matches decides; when none
  matches, the pipeline's Fallback applies. Classification is therefore
  total over the input domain.

WHY A LIST?
  New outcomes are inserted by adding a rule at the right position, not by
  restructuring nested conditionals. The rule order IS the priority order.

STATEFUL RULES:
  A rule may close over state owned by the caller (e.g. a per-request
  counter). Inputs must then be fed in a deterministic order; the pipeline
  itself never reorders.

EXAMPLE:
  p := generic.Pipeline[int, string]{
      Fallback: "other",
      Rules: []generic.Rule[int, string]{
          {Name: "zero", Match: func(n int) (string, bool) { return "zero", n == 0 }},
          {Name: "even", Match: func(n int) (string, bool) { return "even", n%2 == 0 }},
      },
  }
  p.Classify(0) // "zero", "zero"
  p.Classify(3) // "other", ""

SEE ALSO:
  - payroll/punishment.go: absence tier pipeline
*/
package generic

// =============================================================================
// RULE PIPELINE
// =============================================================================

// Rule maps an input to an outcome when Match reports true.
type Rule[E any, T any] struct {
	Name  string
	Match func(E) (T, bool)
}

// Pipeline evaluates Rules in order. First match wins.
type Pipeline[E any, T any] struct {
	Rules    []Rule[E, T]
	Fallback T
}

// Classify returns the outcome for e and the name of the rule that decided.
// The rule name is empty when the fallback applied.
func (p Pipeline[E, T]) Classify(e E) (T, string) {
	for _, r := range p.Rules {
		if out, ok := r.Match(e); ok {
			return out, r.Name
		}
	}
	return p.Fallback, ""
}
