package rapid

import (
	"sort"
	"strings"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

// languageAliases maps lowercase user tokens to the canonical codes the
// engine accepts. Loaded once, never mutated.
var languageAliases = map[string]string{
	"en":  "en",
	"eng": "en",
	"ch":  "ch",
	"zh":  "ch",
	"zho": "ch",
	"chi": "ch",
	"jpn": "japan",
	"ja":  "japan",
	"kor": "korean",
	"ko":  "korean",
	"ara": "arabic",
	"ar":  "arabic",
	"ell": "el",
	"el":  "el",
	"tha": "th",
	"th":  "th",
	"tam": "ta",
	"ta":  "ta",
	"tel": "te",
	"te":  "te",
	"rus": "cyrillic",
	"ru":  "cyrillic",
	"ukr": "cyrillic",
	"uk":  "cyrillic",
	"deu": "latin",
	"de":  "latin",
	"fra": "latin",
	"fr":  "latin",
	"spa": "latin",
	"es":  "latin",
	"ita": "latin",
	"it":  "latin",
	"por": "latin",
	"pt":  "latin",
}

// canonicalLanguages is the set of codes the engine accepts directly.
var canonicalLanguages = map[string]struct{}{
	"ch":          {},
	"ch_doc":      {},
	"en":          {},
	"arabic":      {},
	"chinese_cht": {},
	"cyrillic":    {},
	"devanagari":  {},
	"japan":       {},
	"korean":      {},
	"ka":          {},
	"latin":       {},
	"ta":          {},
	"te":          {},
	"eslav":       {},
	"th":          {},
	"el":          {},
}

// supportedLanguages returns the sorted union of alias tokens and canonical
// codes.
func supportedLanguages() []string {
	set := make(map[string]struct{}, len(languageAliases)+len(canonicalLanguages))
	for alias := range languageAliases {
		set[alias] = struct{}{}
	}
	for code := range canonicalLanguages {
		set[code] = struct{}{}
	}
	langs := make([]string, 0, len(set))
	for lang := range set {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// normalizeLanguage resolves a user token to a canonical code. Canonical
// input passes through unchanged.
func normalizeLanguage(token string) (string, error) {
	lowered := strings.ToLower(token)
	normalized, ok := languageAliases[lowered]
	if !ok {
		normalized = lowered
	}
	if _, ok := canonicalLanguages[normalized]; !ok {
		return "", &ocr.ValidationError{
			Backend:            backendName,
			Language:           token,
			NormalizedLanguage: normalized,
			SupportedLanguages: supportedLanguages(),
		}
	}
	return normalized, nil
}
