// Package words supplies the challenge material for duels: random picks
// from the Italian dictionary file paired with the accepted English
// translations fetched from the MyMemory API.
package words

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Challenge is one duel word with every translation accepted as correct.
type Challenge struct {
	Word     string
	Accepted []string
}

// Accepts reports whether answer is a correct translation. The answer goes
// through the same normalization as the fetched translations, so casing and
// punctuation don't matter.
func (c Challenge) Accepts(answer string) bool {
	return slices.Contains(c.Accepted, Normalize(answer))
}

// Provider yields challenge batches. The match orchestrator depends on this
// instead of the concrete Source so tests can fix the word list.
type Provider interface {
	Batch(ctx context.Context, n int) ([]Challenge, error)
}

// Source picks random dictionary words and translates them.
type Source struct {
	words      []string
	translator *Translator
}

// NewSource loads the dictionary file, one word per line, blank lines
// skipped. An empty dictionary is a startup error.
func NewSource(path string, translator *Translator) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary %s: %w", path, err)
	}
	defer f.Close()

	var words []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word != "" && !seen[word] {
			seen[word] = true
			words = append(words, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dictionary %s: %w", path, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("dictionary %s has no words", path)
	}

	return &Source{words: words, translator: translator}, nil
}

// Len returns the dictionary size.
func (s *Source) Len() int {
	return len(s.words)
}

// Batch returns n distinct random words with their translations. The
// translation requests run concurrently; the first failure cancels the rest.
func (s *Source) Batch(ctx context.Context, n int) ([]Challenge, error) {
	if n > len(s.words) {
		return nil, fmt.Errorf("dictionary has %d words, %d requested", len(s.words), n)
	}

	picked := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(picked) < n {
		word := s.words[rand.IntN(len(s.words))]
		if seen[word] {
			continue
		}
		seen[word] = true
		picked = append(picked, word)
	}

	challenges := make([]Challenge, n)
	g, gctx := errgroup.WithContext(ctx)
	for i, word := range picked {
		g.Go(func() error {
			accepted, err := s.translator.Translate(gctx, word)
			if err != nil {
				return fmt.Errorf("translating %q: %w", word, err)
			}
			challenges[i] = Challenge{Word: word, Accepted: accepted}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return challenges, nil
}
