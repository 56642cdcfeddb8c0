package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// MatchingConfig carries the reviewer-matching weights and thresholds.
type MatchingConfig struct {
	KeywordWeight  float64       `env:"MATCH_WEIGHT_KEYWORD"  envDefault:"0.5" yaml:"keyword_weight"`
	WorkloadWeight float64       `env:"MATCH_WEIGHT_WORKLOAD" envDefault:"0.2" yaml:"workload_weight"`
	QualityWeight  float64       `env:"MATCH_WEIGHT_QUALITY"  envDefault:"0.2" yaml:"quality_weight"`
	RecencyWeight  float64       `env:"MATCH_WEIGHT_RECENCY"  envDefault:"0.1" yaml:"recency_weight"`
	MaxConcurrent  int           `env:"MATCH_MAX_CONCURRENT"  envDefault:"5"   yaml:"max_concurrent"`
	StaleAfter     time.Duration `env:"MATCH_STALE_AFTER"     envDefault:"720h" yaml:"stale_after"`
	DefaultQuality float64       `env:"MATCH_DEFAULT_QUALITY" envDefault:"0.5" yaml:"default_quality"`
	RatingScale    int           `env:"MATCH_RATING_SCALE"    envDefault:"5"   yaml:"rating_scale"`
}

// AuditRetryConfig bounds the audit writer's retry loop.
type AuditRetryConfig struct {
	MaxTries       uint          `env:"WORKFLOW_AUDIT_MAX_TRIES"       envDefault:"4"`
	InitialBackoff time.Duration `env:"WORKFLOW_AUDIT_INITIAL_BACKOFF" envDefault:"100ms"`
	MaxBackoff     time.Duration `env:"WORKFLOW_AUDIT_MAX_BACKOFF"     envDefault:"2s"`
}

// MinReviewersFloor is the smallest round the editorial policy allows.
// Configuration may raise it, never lower it.
const MinReviewersFloor = 2

// WorkflowConfig holds every tunable of the editorial workflow engine.
type WorkflowConfig struct {
	MinReviewers    int           `env:"WORKFLOW_MIN_REVIEWERS"    envDefault:"2"`
	ReviewDue       time.Duration `env:"WORKFLOW_REVIEW_DUE"       envDefault:"504h"`
	ConflictRetries int           `env:"WORKFLOW_CONFLICT_RETRIES" envDefault:"3"`
	NotifyTimeout   time.Duration `env:"WORKFLOW_NOTIFY_TIMEOUT"   envDefault:"30s"`
	MatchingFile    string        `env:"MATCHING_CONFIG_FILE"`

	Audit    AuditRetryConfig
	Matching MatchingConfig
}

// DefaultMatchingConfig returns the documented default weights.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		KeywordWeight:  0.5,
		WorkloadWeight: 0.2,
		QualityWeight:  0.2,
		RecencyWeight:  0.1,
		MaxConcurrent:  5,
		StaleAfter:     30 * 24 * time.Hour,
		DefaultQuality: 0.5,
		RatingScale:    5,
	}
}

// DefaultWorkflowConfig mirrors the envDefault tags for callers that skip the environment.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MinReviewers:    2,
		ReviewDue:       21 * 24 * time.Hour,
		ConflictRetries: 3,
		NotifyTimeout:   30 * time.Second,
		Audit: AuditRetryConfig{
			MaxTries:       4,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
		Matching: DefaultMatchingConfig(),
	}
}

// LoadWorkflowConfig parses the environment and applies MATCHING_CONFIG_FILE when set.
func LoadWorkflowConfig() (WorkflowConfig, error) {
	var cfg WorkflowConfig
	if err := env.Parse(&cfg); err != nil {
		return WorkflowConfig{}, fmt.Errorf("parse workflow env: %w", err)
	}
	if strings.TrimSpace(cfg.MatchingFile) != "" {
		raw, err := os.ReadFile(cfg.MatchingFile)
		if err != nil {
			return WorkflowConfig{}, fmt.Errorf("read matching config: %w", err)
		}
		matching, err := ApplyMatchingYAML(cfg.Matching, raw)
		if err != nil {
			return WorkflowConfig{}, err
		}
		cfg.Matching = matching
	}
	if err := cfg.Validate(); err != nil {
		return WorkflowConfig{}, err
	}
	return cfg, nil
}

// matchingOverride lets a YAML file set only the keys it names.
type matchingOverride struct {
	KeywordWeight  *float64       `yaml:"keyword_weight"`
	WorkloadWeight *float64       `yaml:"workload_weight"`
	QualityWeight  *float64       `yaml:"quality_weight"`
	RecencyWeight  *float64       `yaml:"recency_weight"`
	MaxConcurrent  *int           `yaml:"max_concurrent"`
	StaleAfter     *time.Duration `yaml:"stale_after"`
	DefaultQuality *float64       `yaml:"default_quality"`
	RatingScale    *int           `yaml:"rating_scale"`
}

// ApplyMatchingYAML overlays the keys present in raw onto base.
func ApplyMatchingYAML(base MatchingConfig, raw []byte) (MatchingConfig, error) {
	var override matchingOverride
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return base, fmt.Errorf("parse matching config: %w", err)
	}
	out := base
	if override.KeywordWeight != nil {
		out.KeywordWeight = *override.KeywordWeight
	}
	if override.WorkloadWeight != nil {
		out.WorkloadWeight = *override.WorkloadWeight
	}
	if override.QualityWeight != nil {
		out.QualityWeight = *override.QualityWeight
	}
	if override.RecencyWeight != nil {
		out.RecencyWeight = *override.RecencyWeight
	}
	if override.MaxConcurrent != nil {
		out.MaxConcurrent = *override.MaxConcurrent
	}
	if override.StaleAfter != nil {
		out.StaleAfter = *override.StaleAfter
	}
	if override.DefaultQuality != nil {
		out.DefaultQuality = *override.DefaultQuality
	}
	if override.RatingScale != nil {
		out.RatingScale = *override.RatingScale
	}
	return out, nil
}

func (c MatchingConfig) Validate() error {
	weights := []float64{c.KeywordWeight, c.WorkloadWeight, c.QualityWeight, c.RecencyWeight}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return errors.New("matching weights must not be negative")
		}
		sum += w
	}
	if sum == 0 {
		return errors.New("at least one matching weight must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return errors.New("max_concurrent must be positive")
	}
	if c.RatingScale <= 0 {
		return errors.New("rating_scale must be positive")
	}
	if c.DefaultQuality < 0 || c.DefaultQuality > 1 {
		return errors.New("default_quality must be within [0,1]")
	}
	return nil
}

func (c WorkflowConfig) Validate() error {
	if c.MinReviewers < MinReviewersFloor {
		return fmt.Errorf("WORKFLOW_MIN_REVIEWERS must be at least %d", MinReviewersFloor)
	}
	if c.ConflictRetries < 1 {
		return errors.New("WORKFLOW_CONFLICT_RETRIES must be at least 1")
	}
	if c.Audit.MaxTries == 0 {
		return errors.New("WORKFLOW_AUDIT_MAX_TRIES must be at least 1")
	}
	return c.Matching.Validate()
}
