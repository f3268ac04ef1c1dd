// Package strategy finds a playable track by repeatedly searching a catalog with varied terms.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"songswipe/internal/core"
)

// DefaultQualifiers broaden artist-name terms.
var DefaultQualifiers = []string{"", "live", "remix", "acoustic"}

// Attempt describes one search round, handed to the Reporter.
type Attempt struct {
	Number   int
	Term     string
	Offset   int
	Results  int
	Playable int
	Err      error
}

// Reporter observes attempts. It must not block.
type Reporter func(Attempt)

// Policy is the pure part of the strategy: how many tries, which term, which result counts as success.
type Policy struct {
	MaxAttempts int
	Limit       int
	// MaxOffset bounds the random pagination offset; zero disables pagination
	MaxOffset int
	// SelectTerm picks the next term; defaults to a uniform choice
	SelectTerm func(rng *rand.Rand, terms []string) string
	// Accept is the success predicate; defaults to core.Track.Playable
	Accept func(core.Track) bool
}

// DefaultPolicy returns the policy configured for the pipeline.
func DefaultPolicy(config *core.PipelineConfig) Policy {
	return Policy{
		MaxAttempts: config.MaxAttempts,
		Limit:       config.SearchLimit,
		MaxOffset:   config.MaxSearchOffset,
	}
}

// Strategy is safe for concurrent use.
type Strategy struct {
	searcher core.TrackSearcher
	policy   Policy
	report   Reporter

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a strategy over one catalog. rng must not be shared with other goroutines.
func New(searcher core.TrackSearcher, policy Policy, rng *rand.Rand, report Reporter) *Strategy {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = core.DefaultMaxAttempts
	}
	if policy.Limit <= 0 {
		policy.Limit = core.DefaultSearchLimit
	}
	if policy.SelectTerm == nil {
		policy.SelectTerm = UniformTerm
	}
	if policy.Accept == nil {
		policy.Accept = core.Track.Playable
	}
	if report == nil {
		report = func(Attempt) {}
	}
	return &Strategy{searcher: searcher, policy: policy, report: report, rng: rng}
}

// UniformTerm picks a term uniformly at random.
func UniformTerm(rng *rand.Rand, terms []string) string {
	return terms[rng.Intn(len(terms))]
}

// FindPlayable searches until one accepted track is found and returns it.
// Provider failures and empty pages only consume an attempt; exhaustion yields core.ErrNoPlayableTrackFound.
func (s *Strategy) FindPlayable(ctx context.Context, terms []string) (core.Track, error) {
	if len(terms) == 0 {
		return core.Track{}, fmt.Errorf("%w: no search terms", core.ErrNoPlayableTrackFound)
	}

	var lastErr error
	for n := 1; n <= s.policy.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return core.Track{}, err
		}

		term, offset := s.next(terms)
		attempt := Attempt{Number: n, Term: term, Offset: offset}

		results, err := s.searcher.SearchByQuery(ctx, term, offset, s.policy.Limit)
		if err != nil {
			attempt.Err = err
			s.report(attempt)
			if ctx.Err() != nil {
				return core.Track{}, ctx.Err()
			}
			if !errors.Is(err, core.ErrProviderUnavailable) {
				err = fmt.Errorf("%w: %w", core.ErrProviderUnavailable, err)
			}
			lastErr = err
			continue
		}

		accepted := make([]core.Track, 0, len(results))
		for _, t := range results {
			if s.policy.Accept(t) {
				accepted = append(accepted, t)
			}
		}
		attempt.Results = len(results)
		attempt.Playable = len(accepted)
		s.report(attempt)

		if len(accepted) > 0 {
			return accepted[s.intn(len(accepted))], nil
		}
	}

	if lastErr != nil {
		return core.Track{}, fmt.Errorf("%w after %d attempts (last error: %w)", core.ErrNoPlayableTrackFound, s.policy.MaxAttempts, lastErr)
	}
	return core.Track{}, fmt.Errorf("%w after %d attempts", core.ErrNoPlayableTrackFound, s.policy.MaxAttempts)
}

func (s *Strategy) next(terms []string) (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	term := s.policy.SelectTerm(s.rng, terms)
	offset := 0
	if s.policy.MaxOffset > 0 {
		offset = s.rng.Intn(s.policy.MaxOffset)
	}
	return term, offset
}

func (s *Strategy) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// CandidateTerms derives search terms from seed artist names combined with qualifiers.
// Without seeds it returns the fallback vocabulary.
func CandidateTerms(seeds []core.Artist, qualifiers, fallback []string) []string {
	if len(seeds) == 0 {
		return append([]string(nil), fallback...)
	}

	if len(qualifiers) == 0 {
		qualifiers = []string{""}
	}

	terms := make([]string, 0, len(seeds)*len(qualifiers))
	seen := make(map[string]struct{})
	for _, artist := range seeds {
		if artist.DisplayName == "" {
			continue
		}
		for _, q := range qualifiers {
			term := artist.DisplayName
			if q != "" {
				term += " " + q
			}
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return append([]string(nil), fallback...)
	}
	return terms
}
