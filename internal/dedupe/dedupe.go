// Package dedupe merges candidates that represent the same business across
// discovery sources. It runs in-memory, once per job, before crawl fan-out.
package dedupe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/sells-group/prospector/internal/model"
)

// DefaultNameSimilarityThreshold is the Jaro-Winkler cutoff for the fuzzy
// name fallback. Exposed as a tunable; boundary behavior is covered by tests.
const DefaultNameSimilarityThreshold = 0.90

// addressSimilarityThreshold gates the address half of the fuzzy key. Looser
// than the name threshold: addresses from different directories disagree on
// suite numbers and abbreviations more than names do.
const addressSimilarityThreshold = 0.80

// jaroWinkler parameters per the canonical definition.
const (
	jwBoostThreshold = 0.7
	jwPrefixSize     = 4
)

// Merged is one deduplicated business: the conflict-resolved candidate plus
// the stable identity key leads are keyed by.
type Merged struct {
	Key       string
	Candidate model.Candidate
	Sources   []string
}

// Deduper clusters candidates by DedupKey and merges each cluster.
type Deduper struct {
	threshold float64
	priority  map[string]int
}

// New creates a Deduper. sourcePriority lists sources in descending
// priority; earlier sources win field conflicts. A threshold <= 0 falls
// back to the default.
func New(threshold float64, sourcePriority []string) *Deduper {
	if threshold <= 0 {
		threshold = DefaultNameSimilarityThreshold
	}
	prio := make(map[string]int, len(sourcePriority))
	for i, s := range sourcePriority {
		prio[s] = i
	}
	return &Deduper{threshold: threshold, priority: prio}
}

// Dedupe clusters and merges candidates. Candidates must already be
// normalized. The result is independent of input order: candidates are
// canonically sorted before clustering, so shuffled arrival from multiple
// sources yields an identical final set.
func (d *Deduper) Dedupe(candidates []model.Candidate) []Merged {
	sorted := make([]model.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := d.sourceRank(sorted[i].Source), d.sourceRank(sorted[j].Source)
		if pi != pj {
			return pi < pj
		}
		ci, cj := completeness(sorted[i]), completeness(sorted[j])
		if ci != cj {
			return ci > cj
		}
		if sorted[i].NormalizedName != sorted[j].NormalizedName {
			return sorted[i].NormalizedName < sorted[j].NormalizedName
		}
		return sorted[i].SourceID < sorted[j].SourceID
	})

	var clusters []*cluster
	byDomain := make(map[string]*cluster)
	byPhone := make(map[string]*cluster)

	for _, c := range sorted {
		target := d.findCluster(c, clusters, byDomain, byPhone)
		if target == nil {
			target = &cluster{}
			clusters = append(clusters, target)
		}
		target.members = append(target.members, c)
		if c.Domain != "" {
			byDomain[c.Domain] = target
		}
		if c.NormalizedPhone != "" {
			byPhone[c.NormalizedPhone] = target
		}
	}

	merged := make([]Merged, 0, len(clusters))
	for _, cl := range clusters {
		merged = append(merged, d.merge(cl.members))
	}
	return merged
}

type cluster struct {
	members []model.Candidate
}

// findCluster locates an existing cluster for a candidate: exact domain
// match first, then exact phone, then fuzzy name+address.
func (d *Deduper) findCluster(c model.Candidate, clusters []*cluster, byDomain, byPhone map[string]*cluster) *cluster {
	if c.Domain != "" {
		if cl, ok := byDomain[c.Domain]; ok {
			return cl
		}
	}
	if c.NormalizedPhone != "" {
		if cl, ok := byPhone[c.NormalizedPhone]; ok {
			return cl
		}
	}
	if c.NormalizedName == "" {
		return nil
	}
	for _, cl := range clusters {
		for _, m := range cl.members {
			if d.fuzzyMatch(c, m) {
				return cl
			}
		}
	}
	return nil
}

// fuzzyMatch applies the name+address fallback key: Jaro-Winkler name
// similarity at or above the threshold, with compatible addresses. A missing
// address on either side does not block the match; two conflicting addresses
// do.
func (d *Deduper) fuzzyMatch(a, b model.Candidate) bool {
	if a.NormalizedName == "" || b.NormalizedName == "" {
		return false
	}
	if smetrics.JaroWinkler(a.NormalizedName, b.NormalizedName, jwBoostThreshold, jwPrefixSize) < d.threshold {
		return false
	}
	if a.Address == "" || b.Address == "" {
		return true
	}
	addrA := strings.ToUpper(a.Address)
	addrB := strings.ToUpper(b.Address)
	return smetrics.JaroWinkler(addrA, addrB, jwBoostThreshold, jwPrefixSize) >= addressSimilarityThreshold
}

// merge collapses a cluster into one candidate: union of non-empty fields,
// higher-priority source winning conflicts. Members arrive pre-sorted by
// priority and completeness, so "first non-empty wins" implements the policy.
func (d *Deduper) merge(members []model.Candidate) Merged {
	out := members[0]
	sources := []string{members[0].Source}
	for _, m := range members[1:] {
		if out.Address == "" {
			out.Address = m.Address
		}
		if out.Phone == "" {
			out.Phone = m.Phone
			out.NormalizedPhone = m.NormalizedPhone
		}
		if out.Website == "" {
			out.Website = m.Website
			out.Domain = m.Domain
		}
		sources = append(sources, m.Source)
	}
	return Merged{Key: Key(out), Candidate: out, Sources: sources}
}

// Key derives the stable dedup key for a merged candidate: normalized
// domain, falling back to normalized phone, falling back to the canonical
// name+address pair. Lead identity across jobs depends on this format
// staying stable.
func Key(c model.Candidate) string {
	if c.Domain != "" {
		return "domain:" + c.Domain
	}
	if c.NormalizedPhone != "" {
		return "phone:" + c.NormalizedPhone
	}
	return fmt.Sprintf("name:%s|%s", c.NormalizedName, strings.ToUpper(c.Address))
}

// sourceRank returns the priority rank of a source; unknown sources sort
// after configured ones.
func (d *Deduper) sourceRank(source string) int {
	if r, ok := d.priority[source]; ok {
		return r
	}
	return len(d.priority) + 1
}

func completeness(c model.Candidate) int {
	n := 0
	for _, f := range []string{c.Name, c.Address, c.Phone, c.Website} {
		if f != "" {
			n++
		}
	}
	return n
}

// NameSimilarity exposes the underlying metric for boundary tests and
// threshold tuning.
func NameSimilarity(a, b string) float64 {
	return smetrics.JaroWinkler(a, b, jwBoostThreshold, jwPrefixSize)
}
