package dedupe

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/normalize"
)

var priority = []string{"places", "yelp", "nominatim"}

func cand(name, address, phone, website, source string) model.Candidate {
	c := model.Candidate{Name: name, Address: address, Phone: phone, Website: website, Source: source}
	normalize.Candidate(&c)
	return c
}

func TestDedupe_DomainCollapse(t *testing.T) {
	d := New(0, priority)
	cands := []model.Candidate{
		cand("Smile Dental", "12 Mall Road", "", "https://smiledental.com", "places"),
		cand("Smile Dental Clinic", "", "(412) 555-0134", "www.smiledental.com/home", "yelp"),
	}

	merged := d.Dedupe(cands)
	require.Len(t, merged, 1)
	assert.Equal(t, "domain:smiledental.com", merged[0].Key)
	// Union of non-empty fields: address from places, phone from yelp.
	assert.Equal(t, "12 Mall Road", merged[0].Candidate.Address)
	assert.Equal(t, "+14125550134", merged[0].Candidate.NormalizedPhone)
	// Higher-priority source wins the record.
	assert.Equal(t, "places", merged[0].Candidate.Source)
	assert.ElementsMatch(t, []string{"places", "yelp"}, merged[0].Sources)
}

func TestDedupe_PhoneFallback(t *testing.T) {
	d := New(0, priority)
	cands := []model.Candidate{
		cand("Smile Dental", "", "(412) 555-0134", "", "yelp"),
		cand("The Smile Dental Practice", "", "412-555-0134", "", "nominatim"),
	}

	merged := d.Dedupe(cands)
	require.Len(t, merged, 1)
	assert.Equal(t, "phone:+14125550134", merged[0].Key)
}

func TestDedupe_FuzzyNameFallback(t *testing.T) {
	d := New(0.90, priority)
	cands := []model.Candidate{
		cand("Smile Dental Clinic", "12 Mall Road Lahore", "", "", "places"),
		cand("Smile Dental Clinic LLC", "12 Mall Rd Lahore", "", "", "yelp"),
	}

	merged := d.Dedupe(cands)
	assert.Len(t, merged, 1)
}

func TestDedupe_FuzzyRespectsConflictingAddresses(t *testing.T) {
	d := New(0.90, priority)
	cands := []model.Candidate{
		cand("Smile Dental Clinic", "12 Mall Road, Lahore", "", "", "places"),
		cand("Smile Dental Clinic", "944 Liberty Ave, Pittsburgh PA", "", "", "yelp"),
	}

	merged := d.Dedupe(cands)
	assert.Len(t, merged, 2, "same name at different addresses is two businesses")
}

func TestDedupe_FuzzyMergesWhenAddressMissing(t *testing.T) {
	d := New(0.90, priority)

	// One side has no address: the name match alone decides.
	oneSided := d.Dedupe([]model.Candidate{
		cand("Smile Dental Clinic", "12 Mall Road, Lahore", "", "", "places"),
		cand("Smile Dental Clinic LLC", "", "", "", "yelp"),
	})
	assert.Len(t, oneSided, 1, "a missing address cannot veto a strong name match")

	// Neither side has an address.
	bothMissing := d.Dedupe([]model.Candidate{
		cand("Smile Dental Clinic", "", "", "", "places"),
		cand("Smile Dental Clinic LLC", "", "", "", "yelp"),
	})
	assert.Len(t, bothMissing, 1)
}

func TestDedupe_DistinctStayDistinct(t *testing.T) {
	d := New(0, priority)
	cands := []model.Candidate{
		cand("Smile Dental", "", "", "https://smiledental.com", "places"),
		cand("Bright Teeth", "", "", "https://brightteeth.example", "places"),
		cand("Gulberg Orthodontics", "", "(412) 555-0199", "", "yelp"),
	}

	merged := d.Dedupe(cands)
	assert.Len(t, merged, 3)
}

func TestDedupe_OrderIndependent(t *testing.T) {
	base := []model.Candidate{
		cand("Smile Dental", "12 Mall Road", "", "https://smiledental.com", "places"),
		cand("Smile Dental Clinic", "", "(412) 555-0134", "smiledental.com", "yelp"),
		cand("Bright Teeth", "", "", "https://brightteeth.example", "places"),
		cand("Gulberg Orthodontics", "1 Gulberg Blvd", "(412) 555-0199", "", "yelp"),
		cand("Gulberg Orthodontics PLLC", "1 Gulberg Boulevard", "412 555 0199", "", "nominatim"),
	}

	keysOf := func(ms []Merged) []string {
		var keys []string
		for _, m := range ms {
			keys = append(keys, m.Key)
		}
		sort.Strings(keys)
		return keys
	}

	d := New(0, priority)
	want := keysOf(d.Dedupe(base))
	require.Len(t, want, 3)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]model.Candidate, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, keysOf(d.Dedupe(shuffled)), "shuffle %d", i)
	}
}

func TestDedupe_ThresholdBoundary(t *testing.T) {
	a := cand("Smile Dental Clinic", "", "", "", "places")
	b := cand("Smile Dental Centre", "", "", "", "yelp")
	sim := NameSimilarity(a.NormalizedName, b.NormalizedName)
	require.Greater(t, sim, 0.0)
	require.Less(t, sim, 1.0)

	// Just below the pair's similarity: they merge.
	loose := New(sim-0.01, priority)
	assert.Len(t, loose.Dedupe([]model.Candidate{a, b}), 1)

	// Just above: they stay distinct.
	strict := New(sim+0.01, priority)
	assert.Len(t, strict.Dedupe([]model.Candidate{a, b}), 2)

	// Exactly at the threshold: inclusive match.
	exact := New(sim, priority)
	assert.Len(t, exact.Dedupe([]model.Candidate{a, b}), 1)
}

func TestKey_Fallbacks(t *testing.T) {
	withDomain := cand("A", "", "", "https://a.example", "places")
	assert.Equal(t, "domain:a.example", Key(withDomain))

	withPhone := cand("A", "", "(412) 555-0100", "", "places")
	assert.Equal(t, "phone:+14125550100", Key(withPhone))

	nameOnly := cand("Acme Services", "5 Main St", "", "", "places")
	assert.Equal(t, "name:ACME SERVICES|5 MAIN ST", Key(nameOnly))
}

func TestDedupe_Empty(t *testing.T) {
	d := New(0, priority)
	assert.Empty(t, d.Dedupe(nil))
}
