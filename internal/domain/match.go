package domain

// Decision is the local scorer's verdict for a single candidate
type Decision string

const (
	DecisionFastPass Decision = "fast-pass"
	DecisionVerify   Decision = "verify"
	DecisionReject   Decision = "reject"
)

// SimilarityScore is derived from a (source, candidate) pair and never persisted
type SimilarityScore struct {
	TextSim   float64  `json:"textSim"`   // 0-1
	ImageSim  float64  `json:"imageSim"`  // 0-1
	Composite float64  `json:"composite"` // 0-100
	Decision  Decision `json:"decision"`
}

// ScoredCandidate pairs a filtered candidate with its local score.
// Index is the candidate's position in search relevance order.
type ScoredCandidate struct {
	Candidate Candidate
	Score     SimilarityScore
	Index     int
}

// Verdict is the normalized answer of the semantic verifier
type Verdict struct {
	IsMatch    bool    `json:"isMatch"`
	Confidence float64 `json:"confidence"` // 0-100
}

// VisualOption is one candidate offered to the visual verifier
type VisualOption struct {
	ID       string
	ImageURL string
	Title    string
}

// MatchResult is the accepted cheaper listing for a source item
type MatchResult struct {
	CandidateID    string   `json:"candidateId"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	Currency       Currency `json:"currency"`
	Savings        float64  `json:"savings"`
	DestinationURL string   `json:"destinationUrl"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// CompareResponse is the only shape that crosses the inbound boundary
type CompareResponse struct {
	Found bool         `json:"found"`
	Match *MatchResult `json:"match,omitempty"`
}

// NeutralVerdict is returned when the semantic verifier cannot answer.
// It keeps the pipeline moving without vouching for the candidate.
var NeutralVerdict = Verdict{IsMatch: true, Confidence: 50}
