package store

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// MaxKeywords caps how many tokens a similarity lookup ORs together.
const MaxKeywords = 10

// stopWords are common Portuguese function words ignored by keyword extraction.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		o a e é de do da em um uma para com não na no se que por mais como
		mas foi ao ele das tem à seu sua ou ser quando muito há nos já está
		eu também só pelo pela até isso ela entre era depois sem mesmo aos
		ter seus suas numa pelos pelas sobre ante`) {
		stopWords[w] = struct{}{}
	}
}

// ExtractKeywords splits text on whitespace and keeps the first MaxKeywords
// tokens longer than two characters that are not stop words. Tokens keep
// their case since turn lookups match case-sensitively; stop words are
// checked lower-cased. Punctuation stays attached to its token.
func ExtractKeywords(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopWords[strings.ToLower(w)]; stop {
			continue
		}
		out = append(out, w)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// IndexKeywords is ExtractKeywords lower-cased, the form stored in a
// document's keyword list.
func IndexKeywords(text string) []string {
	keywords := ExtractKeywords(text)
	for i, kw := range keywords {
		keywords[i] = strings.ToLower(kw)
	}
	return keywords
}

// TurnHash is the dedup key of a conversation turn.
func TurnHash(userMessage, response string) string {
	return ContentHash(userMessage + response)
}

// ContentHash is the hex md5 of s. It is a uniqueness key, not a security primitive.
func ContentHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
