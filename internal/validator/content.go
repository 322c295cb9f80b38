package validator

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"
)

// DefaultBlockedTerms are rejected in report titles and descriptions.
var DefaultBlockedTerms = []string{
	// joking
	"funny", "joke", "lol", "haha", "prank", "troll",
	// adult content
	"adult", "explicit", "nsfw", "porn", "sex", "nude",
	// toxic
	"hate", "stupid", "idiot", "loser", "dumb", "moron",
	// profanity
	"damn", "hell", "crap", "shit", "fuck", "asshole", "bitch",
}

// ContentValidator rejects report text that contains blocked terms.
// Terms match whole words only, so "shell" or "Sussex" pass.
type ContentValidator struct {
	terms map[string]struct{}
	mu    sync.RWMutex
}

func NewContentValidator(terms []string) *ContentValidator {
	v := &ContentValidator{terms: make(map[string]struct{}, len(terms))}
	v.Add(terms...)
	return v
}

// LoadTermsFile adds one term per line from path. Blank lines and # comments are skipped.
func (v *ContentValidator) LoadTermsFile(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read blocked terms: %w", err)
	}

	v.Add(terms...)
	return len(terms), nil
}

func (v *ContentValidator) Add(terms ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			v.terms[t] = struct{}{}
		}
	}
}

// FindBlocked returns the first blocked term found in any of texts.
func (v *ContentValidator) FindBlocked(texts ...string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, text := range texts {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if _, blocked := v.terms[w]; blocked {
				return w, true
			}
		}
	}
	return "", false
}
