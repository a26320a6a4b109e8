package similarity

import (
	"strings"
	"unicode/utf8"
)

// DefaultCommonPhraseLength is the minimum shared prefix or suffix length,
// in runes, for HasCommonPhrases.
const DefaultCommonPhraseLength = 5

// keyTermPunctuation is trimmed from both ends of every extracted key term.
const keyTermPunctuation = ".,/#!$%^&*;:{}=-_`~()"

// stopWords are English function words that never count as key terms.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"about": {}, "like": {}, "through": {}, "over": {}, "before": {}, "between": {},
	"after": {}, "since": {}, "without": {}, "under": {}, "within": {}, "along": {},
	"following": {}, "across": {}, "behind": {}, "beyond": {}, "plus": {}, "except": {},
	"up": {}, "out": {}, "around": {}, "down": {}, "off": {}, "above": {}, "near": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "shall": {}, "should": {}, "may": {}, "might": {},
	"must": {}, "can": {}, "could": {}, "of": {},
	"that": {}, "this": {}, "these": {}, "those": {}, "it": {}, "its": {}, "it's": {},
	"they": {}, "them": {}, "their": {}, "theirs": {},
	"we": {}, "us": {}, "our": {}, "ours": {},
	"you": {}, "your": {}, "yours": {},
	"he": {}, "him": {}, "his": {}, "she": {}, "her": {}, "hers": {},
}

// FeatureTerms is the dictionary of product-feature phrases. When both texts
// mention the same phrase the pair is treated as a strong duplicate signal.
// Order matters: the first shared phrase is the one reported.
var FeatureTerms = []string{
	"dark mode",
	"light mode",
	"theme",
	"login",
	"sign in",
	"authentication",
	"search",
	"filter",
	"sort",
	"export",
	"import",
	"download",
	"notification",
	"alert",
	"message",
	"profile",
	"account",
	"user",
	"dashboard",
	"analytics",
	"report",
}

// ExtractKeyTerms lower-cases text, splits it on whitespace, drops tokens of
// two runes or fewer and stop words, then trims punctuation from both ends of
// each surviving token. Order and duplicates are preserved.
func ExtractKeyTerms(text string) []string {
	tokens := tokenize(text)
	terms := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		term := strings.Trim(tok, keyTermPunctuation)
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}

	return terms
}

// ShareKeyTerms reports whether at least minShared key terms of a also occur
// among the key terms of b. Repeated terms in a count once per occurrence.
func ShareKeyTerms(a, b string, minShared int) bool {
	termsB := ExtractKeyTerms(b)
	if len(termsB) == 0 {
		return minShared <= 0
	}

	present := make(map[string]struct{}, len(termsB))
	for _, t := range termsB {
		present[t] = struct{}{}
	}

	shared := 0
	for _, t := range ExtractKeyTerms(a) {
		if _, ok := present[t]; ok {
			shared++
		}
	}

	return shared >= minShared
}

// ContainsSubstring reports whether either string, lower-cased, contains the other.
// The empty string is contained in every string.
func ContainsSubstring(a, b string) bool {
	la := strings.ToLower(a)
	lb := strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// HasCommonPhrases reports whether the lower-cased strings share a prefix or a
// suffix of at least minLength runes.
func HasCommonPhrases(a, b string, minLength int) bool {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))
	n := min(len(ra), len(rb))

	prefix := 0
	for prefix < n && ra[prefix] == rb[prefix] {
		prefix++
	}
	if prefix >= minLength {
		return true
	}

	suffix := 0
	for suffix < n && ra[len(ra)-1-suffix] == rb[len(rb)-1-suffix] {
		suffix++
	}

	return suffix >= minLength
}

// SharedFeatureTerm returns the first dictionary phrase contained in both
// texts. Inputs are expected lower-cased. It returns "" when none is shared.
func SharedFeatureTerm(a, b string) string {
	for _, term := range FeatureTerms {
		if strings.Contains(a, term) && strings.Contains(b, term) {
			return term
		}
	}
	return ""
}

// combinedText is the lower-cased "title description" form used for feature matching.
func combinedText(title, description string) string {
	return strings.ToLower(title + " " + description)
}
