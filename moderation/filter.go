// Package moderation masks disallowed words in message bodies before
// they are persisted or pushed. Matching runs on a normalized shadow of
// the text (lowercased, leet-mapped, noise stripped) while masking is
// applied to the original runes, so spacing and casing survive.
package moderation

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

//go:embed words/*.txt
var wordFiles embed.FS

type Filter struct {
	machine *goahocorasick.Machine
	mask    rune
}

// Result is the outcome of one filtering pass.
type Result struct {
	Body   string
	Lang   string // ISO 639-1 of the detected language, may be empty
	Masked int    // number of masked spans
}

func NewFilter(words []string, mask rune) (*Filter, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("filter needs at least one word")
	}
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		normalized, _ := normalize([]rune(w))
		if len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, fmt.Errorf("building word automaton: %w", err)
	}
	return &Filter{machine: machine, mask: mask}, nil
}

// NewDefaultFilter builds a filter from the embedded word lists.
func NewDefaultFilter(mask rune) (*Filter, error) {
	entries, err := wordFiles.ReadDir("words")
	if err != nil {
		return nil, err
	}
	var words []string
	for _, entry := range entries {
		f, err := wordFiles.Open("words/" + entry.Name())
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				words = append(words, line)
			}
		}
		_ = f.Close()
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	return NewFilter(words, mask)
}

// Apply masks every disallowed span and tags the detected language.
func (f *Filter) Apply(body string) Result {
	original := []rune(body)
	shadow, origIdx := normalize(original)

	result := Result{Body: body}
	if info := whatlanggo.Detect(body); info.IsReliable() {
		result.Lang = info.Lang.Iso6391()
	}
	if len(shadow) == 0 {
		return result
	}

	for _, term := range f.machine.MultiPatternSearch(shadow, false) {
		start := term.Pos
		end := start + len(term.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			original[i] = f.mask
		}
		result.Masked++
	}
	if result.Masked > 0 {
		result.Body = string(original)
	}
	return result
}

// normalize lowercases, folds leet substitutions, and drops punctuation
// and spacing. origIdx maps every shadow position back to the original
// rune index so masks land on the right characters.
func normalize(input []rune) (shadow []rune, origIdx []int) {
	for i, r := range input {
		r = foldLeet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		shadow = append(shadow, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return shadow, origIdx
}

func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}
