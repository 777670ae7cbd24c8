package report

import (
	"sort"
	"strings"

	"github.com/dkoosis/verdict/pkg/ledger"
)

// Manifest lists the identities of scenarios still failing after
// reconciliation, sorted, space-separated and newline-terminated. An
// all-passing report yields an empty manifest.
func Manifest(r *Report) []byte {
	var ids []string
	for _, f := range r.Features {
		for _, sc := range f.Failures {
			ids = append(ids, sc.Identity)
		}
	}
	return joinManifest(ids)
}

// SummaryManifest lists the locations a retry summary still records as
// failing, in the same format as Manifest.
func SummaryManifest(s *ledger.Summary) []byte {
	var ids []string
	for _, sc := range s.Scenarios {
		if sc.FinalStatus != ledger.StatusPassed {
			ids = append(ids, sc.Location)
		}
	}
	return joinManifest(ids)
}

func joinManifest(ids []string) []byte {
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)
	return []byte(strings.Join(ids, " ") + "\n")
}
