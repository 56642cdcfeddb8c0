package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"editorial-workflow-api/config"
)

// MatchTarget is the part of a submission the matcher looks at.
type MatchTarget struct {
	Keywords []string
	Category string
}

// Candidate is one reviewer in the pool, with pre-computed expertise vectors.
type Candidate struct {
	ReviewerID      uint
	Expertise       []string
	Keywords        []string
	OpenAssignments int
	AvgRating       float64
	RatingCount     int
	// OldestOpenAssignedAt is when the reviewer's oldest pending assignment
	// was made; nil when nothing is pending.
	OldestOpenAssignedAt *time.Time
}

// ScoreBreakdown holds each term before weighting.
type ScoreBreakdown struct {
	Overlap  float64 `json:"overlap"`
	Workload float64 `json:"workload"`
	Quality  float64 `json:"quality"`
	Recency  float64 `json:"recency"`
}

// Suggestion is one ranked reviewer.
type Suggestion struct {
	ReviewerID      uint           `json:"reviewer_id"`
	MatchScore      float64        `json:"match_score"`
	Available       bool           `json:"available"`
	OpenAssignments int            `json:"open_assignments"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
}

// Suggest ranks pool against target. It has no side effects and the same
// inputs always produce the same order. Candidates scoring below minScore are
// dropped; limit <= 0 returns every remaining candidate.
func Suggest(target MatchTarget, pool []Candidate, limit int, minScore float64, cfg config.MatchingConfig, now time.Time) []Suggestion {
	terms := normalizeTerms(append(append([]string(nil), target.Keywords...), target.Category))

	out := make([]Suggestion, 0, len(pool))
	for _, c := range pool {
		b := ScoreBreakdown{
			Overlap:  jaccard(terms, normalizeTerms(append(append([]string(nil), c.Expertise...), c.Keywords...))),
			Workload: workloadTerm(c.OpenAssignments, cfg.MaxConcurrent),
			Quality:  qualityTerm(c, cfg),
			Recency:  recencyTerm(c.OldestOpenAssignedAt, cfg.StaleAfter, now),
		}
		score := cfg.KeywordWeight*b.Overlap +
			cfg.WorkloadWeight*b.Workload +
			cfg.QualityWeight*b.Quality +
			cfg.RecencyWeight*b.Recency
		score = clamp01(score)
		if score < minScore {
			continue
		}
		out = append(out, Suggestion{
			ReviewerID:      c.ReviewerID,
			MatchScore:      score,
			Available:       c.OpenAssignments < cfg.MaxConcurrent,
			OpenAssignments: c.OpenAssignments,
			Breakdown:       b,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.OpenAssignments != b.OpenAssignments {
			return a.OpenAssignments < b.OpenAssignments
		}
		if a.Breakdown.Quality != b.Breakdown.Quality {
			return a.Breakdown.Quality > b.Breakdown.Quality
		}
		return a.ReviewerID < b.ReviewerID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func normalizeTerms(raw []string) map[string]struct{} {
	set := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func workloadTerm(open, maxConcurrent int) float64 {
	if maxConcurrent <= 0 {
		return 0
	}
	return math.Max(0, 1-float64(open)/float64(maxConcurrent))
}

func qualityTerm(c Candidate, cfg config.MatchingConfig) float64 {
	if c.RatingCount == 0 || cfg.RatingScale <= 0 {
		return clamp01(cfg.DefaultQuality)
	}
	return clamp01(c.AvgRating / float64(cfg.RatingScale))
}

// recencyTerm is 1 while the oldest pending assignment is younger than
// staleAfter, then decays exponentially with one staleAfter as time constant.
func recencyTerm(oldestOpen *time.Time, staleAfter time.Duration, now time.Time) float64 {
	if oldestOpen == nil || staleAfter <= 0 {
		return 1
	}
	age := now.Sub(*oldestOpen)
	if age <= staleAfter {
		return 1
	}
	return math.Exp(-float64(age-staleAfter) / float64(staleAfter))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
