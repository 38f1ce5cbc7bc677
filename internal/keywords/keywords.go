// Package keywords turns free-text advisor questions into stable cache keys.
//
// Two questions share a key when they reduce to the same keyword set, regardless
// of case, punctuation, word order or filler words.
package keywords

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minKeywordLen = 3

var stopWords = toSet(
	// articles, pronouns, auxiliaries
	"the", "and", "for", "are", "was", "were", "been", "being", "but", "not", "nor",
	"you", "your", "yours", "she", "her", "his", "him", "its", "they", "them", "their",
	"this", "that", "these", "those", "there", "here", "who", "whom", "whose",
	"what", "whats", "which", "when", "where", "why", "how", "hows",
	"does", "did", "doing", "done", "has", "have", "had", "having", "will", "would",
	"can", "could", "should", "shall", "may", "might", "must",
	"with", "from", "into", "onto", "about", "over", "under", "than", "then", "also",
	"just", "very", "some", "any", "all", "each", "more", "most", "other", "such",
	"only", "own", "same", "too", "out", "off", "again", "there", "theres", "thats",
	"isnt", "arent", "dont", "doesnt", "cant", "wont", "ill", "ive", "youre",
	"our", "ours", "mine",
	// generic request verbs
	"need", "needs", "want", "wants", "help", "please", "tell", "know", "looking",
	"recommend", "suggest", "give", "get", "find", "like", "would",
)

var personalMarkers = toSet(
	"my", "mine", "our", "ours",
	"price", "prices", "pricing", "cost", "costs", "quote", "quotes", "quotation",
	"order", "orders", "ordering", "buy", "buying", "purchase", "payment", "payments", "invoice",
	"ship", "shipping", "shipped", "shipment", "delivery", "deliver", "customs",
	"company", "laboratory", "lab", "institute", "university",
)

var pricingMarkers = toSet(
	"price", "prices", "pricing", "cost", "costs", "quote", "quotes", "quotation",
	"discount", "discounts",
)

// Normalize lowercases q, strips punctuation and collapses whitespace.
func Normalize(q string) string {
	var b strings.Builder
	b.Grow(len(q))
	for _, r := range strings.ToLower(q) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Extract returns the sorted, de-duplicated keywords of q.
func Extract(q string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, tok := range strings.Fields(Normalize(q)) {
		if utf8.RuneCountInString(tok) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// HashKeywords returns the hex SHA-256 of the space-joined keyword list.
func HashKeywords(kw []string) string {
	sum := sha256.Sum256([]byte(strings.Join(kw, " ")))
	return hex.EncodeToString(sum[:])
}

func CacheKey(q string) string {
	return HashKeywords(Extract(q))
}

// IsPersonalized reports whether q carries possessive, commercial, logistics or
// organisation markers. Such questions are never cached.
func IsPersonalized(q string) bool {
	return containsAny(q, personalMarkers)
}

// IsPricingQuery reports whether q asks about prices or quotes.
func IsPricingQuery(q string) bool {
	n := Normalize(q)
	if strings.Contains(" "+n+" ", " how much ") {
		return true
	}
	return containsAny(q, pricingMarkers)
}

// Similarity is the Jaccard index of two keyword sets. Two empty sets score 0.
func Similarity(a, b []string) float64 {
	set := toSet(a...)
	union := len(set)
	inter := 0
	seen := map[string]struct{}{}
	for _, k := range b {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := set[k]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func containsAny(q string, set map[string]struct{}) bool {
	for _, tok := range strings.Fields(Normalize(q)) {
		if _, ok := set[tok]; ok {
			return true
		}
	}
	return false
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
