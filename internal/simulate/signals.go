package simulate

import (
	"regexp"
	"strings"
)

// patternFamilies maps signal names to regex families. A signal whose
// name matches a family is evaluated by regex; anything else falls back
// to fuzzy token matching over the signal phrase.
var patternFamilies = map[string]*regexp.Regexp{
	"email": regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	// Digit runs with at most two separator characters between digits.
	// Year ranges like "2023 - 2024" break on the wide separators, and
	// matchSignal still requires phoneMinDigits digits in the run. The
	// trailing guard keeps "increase of 1,000,000%" out.
	"phone":         regexp.MustCompile(`(?:\+?\d(?:[\s.()\-]{0,2}\d)+)(?:[^%\d]|$)`),
	"address":       regexp.MustCompile(`(?i)\d{1,5}\s+[A-Za-z0-9.\s]+(?:street|st\.?|avenue|ave\.?|road|rd\.?|boulevard|blvd\.?|drive|dr\.?|lane|ln\.?|suite|floor)\b`),
	"pricing":       regexp.MustCompile(`(?i)(?:[$€£]\s?\d[\d,]*(?:\.\d{1,2})?|\d[\d,]*\s?(?:USD|EUR|GBP)|per\s+(?:month|year|user|seat)|/mo\b|/yr\b|free\s+(?:plan|tier|trial))`),
	"testimonial":   regexp.MustCompile(`(?i)(?:"[^"]{20,300}"\s*[-–—]\s*[A-Z][a-z]+|testimonial|case\s+study|customer\s+stor(?:y|ies)|review(?:s|ed)\s+by)`),
	"founding_year": regexp.MustCompile(`(?i)(?:founded|established|since|est\.?)\s+(?:in\s+)?(?:19|20)\d{2}`),
	"social_proof":  regexp.MustCompile(`(?i)(?:\d[\d,]*\+?\s+(?:customers|users|clients|companies|teams|downloads)|trusted\s+by|used\s+by|rated\s+\d(?:\.\d)?\s*/\s*5|\d(?:\.\d)?\s+stars)`),
	"integration":   regexp.MustCompile(`(?i)(?:integrat(?:es?|ion)\s+with|connects?\s+(?:to|with)|works\s+with|API|webhook|plugin|zapier|slack|salesforce|hubspot)`),
}

const (
	fuzzyMatchRatio = 0.6
	fuzzyMinWordLen = 3
	evidenceWindow  = 120
	phoneMinDigits  = 7
)

// matchSignal evaluates one named signal against text. Returns whether it
// was found and an evidence excerpt around the first match.
func matchSignal(signal, text string) (bool, string) {
	name := strings.ToLower(signal)
	if re, ok := patternFamilies[name]; ok {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if name == "phone" && digitCount(text[loc[0]:loc[1]]) < phoneMinDigits {
				continue
			}
			return true, excerpt(text, loc[0], loc[1])
		}
		return false, ""
	}
	return fuzzyMatch(signal, text)
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// fuzzyMatch requires ≥60% of the signal phrase's words (length ≥3) to
// appear in the text. Evidence is the window around the first matched word.
func fuzzyMatch(phrase, text string) (bool, string) {
	lower := strings.ToLower(text)
	words := strings.Fields(strings.ToLower(phrase))

	var total, matched, firstIdx int
	firstIdx = -1
	for _, w := range words {
		w = strings.Trim(w, ".,:;!?\"'()")
		if len(w) < fuzzyMinWordLen {
			continue
		}
		total++
		if i := strings.Index(lower, w); i >= 0 {
			matched++
			if firstIdx < 0 || i < firstIdx {
				firstIdx = i
			}
		}
	}
	if total == 0 {
		return false, ""
	}
	if float64(matched)/float64(total) < fuzzyMatchRatio {
		return false, ""
	}
	return true, excerpt(text, firstIdx, firstIdx)
}

func excerpt(text string, start, end int) string {
	lo := start - evidenceWindow/2
	if lo < 0 {
		lo = 0
	}
	hi := end + evidenceWindow/2
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}
