package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/dkoosis/verdict/internal/atomicfile"
)

// ErrNoSummary is returned by ReadSummary when no summary file exists.
var ErrNoSummary = errors.New("no retry summary")

// MalformedSummaryError reports a summary file that exists but cannot be used.
type MalformedSummaryError struct {
	Path string
	Err  error
}

func (e *MalformedSummaryError) Error() string {
	return fmt.Sprintf("malformed retry summary %s: %v", e.Path, e.Err)
}

func (e *MalformedSummaryError) Unwrap() error { return e.Err }

// Summary is the persisted form of a ledger session, read by a later process
// to reconcile a report.
type Summary struct {
	TotalScenarios              int               `json:"totalScenarios"`
	ScenariosPassedFirstAttempt int               `json:"scenariosPassedFirstAttempt"`
	ScenariosPassedAfterRetry   int               `json:"scenariosPassedAfterRetry"`
	ScenariosStillFailing       int               `json:"scenariosStillFailing"`
	Scenarios                   []SummaryScenario `json:"scenarios"`
}

// SummaryScenario is one ledger entry in the persisted summary.
type SummaryScenario struct {
	Name            string `json:"name"`
	Location        string `json:"location"`
	TotalAttempts   int    `json:"totalAttempts"`
	FailedAttempts  int    `json:"failedAttempts"`
	PassedOnAttempt *int   `json:"passedOnAttempt"`
	FinalStatus     string `json:"finalStatus"`
	LastError       string `json:"lastError,omitempty"`
}

// BuildSummary condenses ledger entries into a Summary, ordered by location.
func BuildSummary(entries map[string]Entry) *Summary {
	s := &Summary{Scenarios: make([]SummaryScenario, 0, len(entries))}
	for id, e := range entries {
		sc := SummaryScenario{
			Name:           e.Name,
			Location:       id,
			TotalAttempts:  e.TotalAttempts,
			FailedAttempts: e.FailedAttempts(),
			FinalStatus:    e.FinalStatus,
			LastError:      e.LastError,
		}
		if e.PassedOnAttempt != nil {
			n := *e.PassedOnAttempt
			sc.PassedOnAttempt = &n
		}
		s.Scenarios = append(s.Scenarios, sc)

		switch {
		case !e.Passed():
			s.ScenariosStillFailing++
		case e.PassedOnAttempt != nil && *e.PassedOnAttempt > 1:
			s.ScenariosPassedAfterRetry++
		default:
			s.ScenariosPassedFirstAttempt++
		}
	}
	s.TotalScenarios = len(s.Scenarios)
	sort.Slice(s.Scenarios, func(i, j int) bool {
		return s.Scenarios[i].Location < s.Scenarios[j].Location
	})
	return s
}

// ReadSummary loads a persisted summary. A missing file yields ErrNoSummary;
// unreadable or invalid content yields a *MalformedSummaryError.
func ReadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoSummary, path)
	}
	if err != nil {
		return nil, &MalformedSummaryError{Path: path, Err: err}
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &MalformedSummaryError{Path: path, Err: err}
	}
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if sc.Location == "" {
			return nil, &MalformedSummaryError{Path: path, Err: fmt.Errorf("scenario %d has no location", i)}
		}
		sc.FinalStatus = normalizeFinal(sc.FinalStatus)
	}
	return &s, nil
}

// WriteSummary persists s atomically, creating parent directories.
func WriteSummary(path string, s *Summary) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, 0o644)
}

// Marshal encodes s as indented JSON with a trailing newline.
func (s *Summary) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding retry summary: %w", err)
	}
	return append(data, '\n'), nil
}

// normalizeFinal maps any spelling of passed to StatusPassed and everything
// else to StatusFailed.
func normalizeFinal(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), StatusPassed) {
		return StatusPassed
	}
	return StatusFailed
}
