package nlp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Token is a span of the original text. Start and End are byte offsets.
type Token struct {
	Text  string
	Norm  string
	Start int
	End   int
	Alpha bool
	Punct bool
}

type normalizer struct {
	tag language.Tag
}

func newNormalizer(lang string) normalizer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	return normalizer{tag: tag}
}

// normalize composes accents and lowercases. A cases.Caser holds state, so
// one is built per call.
func (n normalizer) normalize(s string) string {
	return cases.Lower(n.tag).String(norm.NFC.String(s))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// tokenize splits text into word runs and single punctuation tokens. A '.' or
// ',' between two digits stays inside the number ("38,5"), and a '-' between
// two letters stays inside the compound ("pós-operatório").
func tokenize(text string, n normalizer) []Token {
	var tokens []Token
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case isWordRune(r):
			start := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if isWordRune(r) {
					i += size
					continue
				}
				if (r == '.' || r == ',' || r == '-') && i > start && i+size < len(text) {
					prev, _ := utf8.DecodeLastRuneInString(text[:i])
					next, _ := utf8.DecodeRuneInString(text[i+size:])
					if r == '-' && unicode.IsLetter(prev) && unicode.IsLetter(next) {
						i += size
						continue
					}
					if r != '-' && unicode.IsDigit(prev) && unicode.IsDigit(next) {
						i += size
						continue
					}
				}
				break
			}
			tokens = append(tokens, newToken(text, start, i, n))
		default:
			tokens = append(tokens, Token{
				Text:  text[i : i+size],
				Norm:  text[i : i+size],
				Start: i,
				End:   i + size,
				Punct: unicode.IsPunct(r) || unicode.IsSymbol(r),
			})
			i += size
		}
	}
	return tokens
}

func newToken(text string, start, end int, n normalizer) Token {
	word := text[start:end]
	return Token{
		Text:  word,
		Norm:  n.normalize(word),
		Start: start,
		End:   end,
		Alpha: strings.IndexFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) && r != '-' }) < 0,
	}
}
