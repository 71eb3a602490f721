package pipeline

import (
	"github.com/baibhavbaidya/researchmind-backend/internal/retriever"
)

// Stage is a position in the research state machine.
type Stage int

const (
	StageSearch Stage = iota
	StageSummarize
	StageCritique
	StageFactCheck
	StageSynthesize
	StageDone
	StageFailed
)

var stageNames = [...]string{"Search", "Summarize", "Critique", "FactCheck", "Synthesize", "Done", "Failed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no stage follows s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Summary is the query-focused digest of one retained result.
type Summary struct {
	SourceLabel   string           `json:"source_label"`
	Text          string           `json:"summary_text"`
	URLOrFilename string           `json:"url_or_filename"`
	Title         string           `json:"title"`
	Origin        retriever.Origin `json:"origin"`
	Confidence    Confidence       `json:"confidence,omitempty"`
}

// Verdict is the critique of one summary. Summaries with Keep=false are
// removed before fact checking.
type Verdict struct {
	SourceLabel string     `json:"source_label"`
	Keep        bool       `json:"keep"`
	Reason      string     `json:"reason"`
	Confidence  Confidence `json:"confidence"`
	Rating      string     `json:"verdict"`
}

type ClaimStatus string

const (
	ClaimVerified   ClaimStatus = "verified"
	ClaimDisputed   ClaimStatus = "disputed"
	ClaimUnresolved ClaimStatus = "unresolved"
)

// Claim is an assertion grouped across the sources that make it.
type Claim struct {
	Text              string      `json:"text"`
	SupportingSources []string    `json:"supporting_source_labels"`
	Status            ClaimStatus `json:"status"`
}

// Request is the immutable input of one run.
type Request struct {
	RunID        string `json:"run_id"`
	UserID       string `json:"-"`
	Query        string `json:"query"`
	UseDocuments bool   `json:"use_documents"`
}

// State is the working set of one run. It is owned by that run only.
type State struct {
	RunID           string             `json:"run_id"`
	Query           string             `json:"query"`
	Stage           Stage              `json:"stage"`
	RetainedResults []retriever.Result `json:"retained_results"`
	Summaries       []Summary          `json:"summaries"`
	Verdicts        []Verdict          `json:"verdicts"`
	Claims          []Claim            `json:"claims"`
	FinalAnswer     string             `json:"final_answer"`
	SourcesCited    []string           `json:"sources_cited"`
	Notes           []string           `json:"notes,omitempty"`
}

func newState(req Request) State {
	return State{RunID: req.RunID, Query: req.Query, Stage: StageSearch}
}

// ClaimCounts tallies claims by status.
func (s State) ClaimCounts() map[ClaimStatus]int {
	counts := map[ClaimStatus]int{ClaimVerified: 0, ClaimDisputed: 0, ClaimUnresolved: 0}
	for _, c := range s.Claims {
		counts[c.Status]++
	}
	return counts
}

// CitedSummaries returns the summaries whose labels appear in SourcesCited.
func (s State) CitedSummaries() []Summary {
	cited := make(map[string]bool, len(s.SourcesCited))
	for _, l := range s.SourcesCited {
		cited[l] = true
	}
	var out []Summary
	for _, sum := range s.Summaries {
		if cited[sum.SourceLabel] {
			out = append(out, sum)
		}
	}
	return out
}
