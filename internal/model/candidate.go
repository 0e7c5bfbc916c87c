package model

// Candidate is an unverified business record produced by a single discovery
// source. Candidates are in-memory only; they exist between discovery and
// deduplication and are never persisted directly.
type Candidate struct {
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Website  string `json:"website,omitempty"`
	Source   string `json:"source"`
	SourceID string `json:"source_id,omitempty"`

	// Normalized fields, filled by the normalizer before deduplication.
	Domain          string `json:"domain,omitempty"`
	NormalizedPhone string `json:"normalized_phone,omitempty"`
	NormalizedName  string `json:"normalized_name,omitempty"`
}
