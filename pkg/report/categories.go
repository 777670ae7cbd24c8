package report

import "strings"

// Failure categories, matched in this order against the lowercased error
// message and type of each remaining failure.
const (
	CategoryTimeout        = "timeout"
	CategoryAssertion      = "assertion"
	CategoryConnection     = "connection"
	CategoryAuthentication = "authentication"
	CategoryValidation     = "validation"
	CategoryNil            = "nil"
	CategoryOther          = "other"
)

var categoryRules = []struct {
	name    string
	needles []string
}{
	{CategoryTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{CategoryAssertion, []string{"assertion", "expected"}},
	{CategoryConnection, []string{"connection", "unable to connect", "connect:"}},
	{CategoryAuthentication, []string{"auth", "unauthorized", "forbidden", "401", "403"}},
	{CategoryNil, []string{"nullpointer", "nil pointer", "nil map"}},
	{CategoryValidation, []string{"validation", "invalid"}},
	{CategoryNil, []string{"null"}},
}

// Category classifies a failure by its error text.
func Category(message, errType string) string {
	hay := strings.ToLower(message + " " + errType)
	for _, rule := range categoryRules {
		for _, n := range rule.needles {
			if strings.Contains(hay, n) {
				return rule.name
			}
		}
	}
	return CategoryOther
}

// Categorize counts failures per category. Categories with no failures are
// omitted.
func Categorize(failures []Scenario) map[string]int {
	out := make(map[string]int)
	for _, sc := range failures {
		var msg, typ string
		switch {
		case !sc.Error.Empty():
			msg, typ = sc.Error.Message, sc.Error.Type
		case sc.FailingStep != nil && !sc.FailingStep.Error.Empty():
			msg, typ = sc.FailingStep.Error.Message, sc.FailingStep.Error.Type
		}
		out[Category(msg, typ)]++
	}
	return out
}
