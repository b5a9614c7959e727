package analysis

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
)

const minTokenLen = 2

// stopwords are dropped before any frequency counting.
var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "all": {},
	"also": {}, "am": {}, "amid": {}, "an": {}, "and": {}, "any": {},
	"are": {}, "as": {}, "at": {}, "be": {}, "because": {}, "been": {},
	"before": {}, "being": {}, "below": {}, "between": {}, "both": {},
	"but": {}, "by": {}, "can": {}, "could": {}, "did": {}, "do": {},
	"does": {}, "doing": {}, "down": {}, "during": {}, "each": {},
	"few": {}, "for": {}, "from": {}, "further": {}, "had": {}, "has": {},
	"have": {}, "having": {}, "he": {}, "her": {}, "here": {}, "hers": {},
	"him": {}, "his": {}, "how": {}, "i": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "itself": {}, "just": {},
	"last": {}, "may": {}, "me": {}, "mn": {}, "more": {}, "most": {},
	"my": {}, "new": {}, "no": {}, "nor": {}, "not": {}, "now": {},
	"of": {}, "off": {}, "on": {}, "once": {}, "one": {}, "only": {},
	"or": {}, "other": {}, "our": {}, "out": {}, "over": {}, "own": {},
	"per": {}, "said": {}, "same": {}, "she": {}, "should": {}, "so": {},
	"some": {}, "such": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "through": {}, "to": {}, "too": {},
	"under": {}, "until": {}, "up": {}, "us": {}, "very": {}, "was": {},
	"we": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "who": {}, "whom": {}, "why": {},
	"will": {}, "with": {}, "would": {}, "year": {}, "you": {},
	"your": {},
}

// positiveWords and negativeWords form the fixed business-news sentiment
// lexicon. Scores are the balance of hits, so unknown words stay neutral.
var positiveWords = map[string]struct{}{
	"accelerate": {}, "agreement": {}, "approval": {}, "award": {},
	"awarded": {}, "boom": {}, "boost": {}, "breakthrough": {},
	"deal": {}, "dividend": {}, "expand": {}, "expansion": {},
	"gain": {}, "gains": {}, "grow": {}, "growth": {}, "high": {},
	"improve": {}, "improved": {}, "inaugurate": {}, "increase": {},
	"invest": {}, "investment": {}, "launch": {}, "milestone": {},
	"opportunity": {}, "partnership": {}, "profit": {}, "profitable": {},
	"rally": {}, "rebound": {}, "record": {}, "recovery": {},
	"rise": {}, "rises": {}, "rose": {}, "soar": {}, "strong": {},
	"success": {}, "successful": {}, "surge": {}, "surged": {},
	"surplus": {}, "upgrade": {}, "wins": {}, "won": {},
}

var negativeWords = map[string]struct{}{
	"bankruptcy": {}, "collapse": {}, "concern": {}, "crash": {},
	"crisis": {}, "cut": {}, "cuts": {}, "decline": {}, "declined": {},
	"default": {}, "deficit": {}, "delay": {}, "delayed": {},
	"dispute": {}, "downgrade": {}, "downturn": {}, "drop": {},
	"dropped": {}, "fall": {}, "falls": {}, "fell": {}, "fine": {},
	"fined": {}, "fraud": {}, "halt": {}, "halted": {}, "layoffs": {},
	"loss": {}, "losses": {}, "low": {}, "miss": {}, "missed": {},
	"penalty": {}, "plunge": {}, "plunged": {}, "probe": {},
	"recession": {}, "risk": {}, "risks": {}, "sanction": {},
	"sanctions": {}, "shortage": {}, "shortfall": {}, "slump": {},
	"struggle": {}, "suspend": {}, "suspended": {}, "warn": {},
	"warned": {}, "weak": {}, "worse": {},
}

// topicLexicon maps indicator tokens to Gulf business sectors.
var topicLexicon = map[string]string{
	"adnoc": "energy", "aramco": "energy", "barrel": "energy",
	"crude": "energy", "drilling": "energy", "gas": "energy",
	"hydrogen": "energy", "lng": "energy", "oil": "energy",
	"opec": "energy", "petrochemical": "energy", "pipeline": "energy",
	"refinery": "energy", "renewable": "energy", "solar": "energy",
	"wind": "energy",

	"bank": "finance", "banking": "finance", "bond": "finance",
	"bonds": "finance", "dividend": "finance", "equity": "finance",
	"fintech": "finance", "fund": "finance", "funds": "finance",
	"investment": "finance", "investor": "finance", "investors": "finance",
	"ipo": "finance", "lending": "finance", "shares": "finance",
	"sukuk": "finance", "takaful": "finance",

	"construction": "construction", "contractor": "construction",
	"developer": "construction", "gigaproject": "construction",
	"housing": "construction", "infrastructure": "construction",
	"megaproject": "construction", "neom": "construction",
	"property": "construction", "realty": "construction",
	"skyscraper": "construction", "tower": "construction",

	"aircraft": "aviation", "airbus": "aviation", "airline": "aviation",
	"airlines": "aviation", "airport": "aviation", "aviation": "aviation",
	"boeing": "aviation", "carrier": "aviation", "flight": "aviation",
	"flights": "aviation", "passenger": "aviation", "passengers": "aviation",

	"ai": "technology", "blockchain": "technology", "cloud": "technology",
	"cyber": "technology", "cybersecurity": "technology",
	"datacenter": "technology", "digital": "technology",
	"robotics": "technology", "semiconductor": "technology",
	"software": "technology", "startup": "technology",
	"startups": "technology", "telecom": "technology",

	"decree": "policy", "law": "policy", "legislation": "policy",
	"ministry": "policy", "regulation": "policy", "regulator": "policy",
	"regulatory": "policy", "reform": "policy", "tariff": "policy",
	"tariffs": "policy", "tax": "policy", "vat": "policy",
	"visa": "policy", "visas": "policy",
}

// tokenize lowercases text and splits it into counting-worthy tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < minTokenLen {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

// keywordFrequencies counts tokens across the given texts and returns the
// top entries, ordered by count descending then keyword ascending.
func keywordFrequencies(texts []string, limit int) []domain.KeywordCount {
	counts := map[string]int{}
	for _, text := range texts {
		for _, tok := range tokenize(text) {
			counts[tok]++
		}
	}
	out := make([]domain.KeywordCount, 0, len(counts))
	for word, n := range counts {
		out = append(out, domain.KeywordCount{Keyword: word, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sentimentScore balances lexicon hits into [-1, 1]. Text with no hits
// scores zero.
func sentimentScore(text string) float64 {
	var pos, neg int
	for _, tok := range tokenize(text) {
		if _, ok := positiveWords[tok]; ok {
			pos++
		}
		if _, ok := negativeWords[tok]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

const sentimentBand = 0.15

// sentimentLabel buckets a score into positive, negative or neutral.
func sentimentLabel(score float64) string {
	switch {
	case score > sentimentBand:
		return "positive"
	case score < -sentimentBand:
		return "negative"
	default:
		return "neutral"
	}
}

// topicsOf returns the sectors indicated by the text, alphabetically.
func topicsOf(text string) []string {
	seen := map[string]struct{}{}
	for _, tok := range tokenize(text) {
		if topic, ok := topicLexicon[tok]; ok {
			seen[topic] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for topic := range seen {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// topicCounts tallies how many articles touch each sector, ordered by count
// descending then topic ascending.
func topicCounts(perArticleTopics [][]string) []domain.TopicCount {
	counts := map[string]int{}
	for _, topics := range perArticleTopics {
		for _, topic := range topics {
			counts[topic]++
		}
	}
	out := make([]domain.TopicCount, 0, len(counts))
	for topic, n := range counts {
		out = append(out, domain.TopicCount{Topic: topic, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}
