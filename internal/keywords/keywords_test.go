package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "whats the best column", Normalize("  What's the BEST   column?\n"))
	assert.Equal(t, "c18 vs c8", Normalize("C18 vs. C8!!"))
	assert.Equal(t, "", Normalize("?!..."))
}

func TestExtract_DropsShortAndStopWords(t *testing.T) {
	got := Extract("What is the best column for peptide separation?")
	assert.Equal(t, []string{"best", "column", "peptide", "separation"}, got)
}

func TestExtract_SortedAndUnique(t *testing.T) {
	got := Extract("column column guard Column GUARD")
	assert.Equal(t, []string{"column", "guard"}, got)
}

func TestCacheKey_InsensitiveToWording(t *testing.T) {
	a := "What's the BEST column?"
	b := "what is the best column"
	c := "column, best?"

	assert.Equal(t, Extract(a), Extract(b))
	assert.Equal(t, CacheKey(a), CacheKey(b))
	assert.Equal(t, CacheKey(a), CacheKey(c))
	assert.Len(t, CacheKey(a), 64)
	assert.NotEqual(t, CacheKey(a), CacheKey("best guard column"))
}

func TestIsPersonalized(t *testing.T) {
	cases := map[string]bool{
		"How much does this column cost?":              true,
		"Can I get a quote for 10 columns":             true,
		"Which column suits my assay":                  true,
		"Our laboratory runs UHPLC":                    true,
		"How long is shipping to Germany?":             true,
		"Does customs clearance take long":             true,
		"Which column is best for peptide separation?": false,
		"Explain the difference between C18 and C8":    false,
	}
	for q, want := range cases {
		assert.Equal(t, want, IsPersonalized(q), q)
	}
}

func TestIsPricingQuery(t *testing.T) {
	assert.True(t, IsPricingQuery("How much does the Kinetex C18 column cost?"))
	assert.True(t, IsPricingQuery("what is the price of a guard cartridge"))
	assert.True(t, IsPricingQuery("Any discount for bulk?"))
	assert.False(t, IsPricingQuery("What column is best for peptide separation?"))
	assert.True(t, IsPricingQuery("HOW MUCH for the 150 mm version"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity([]string{"a", "b"}, []string{"b", "a"}))
	assert.Equal(t, 0.0, Similarity([]string{"a"}, []string{"b"}))
	assert.InDelta(t, 1.0/3.0, Similarity([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
	assert.Equal(t, 0.0, Similarity(nil, nil))
}
