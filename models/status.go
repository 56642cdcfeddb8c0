package models

import (
	"fmt"
	"strings"
)

// SubmissionStatus is the lifecycle state of a manuscript.
type SubmissionStatus string

const (
	StatusNew          SubmissionStatus = "NEW"
	StatusDeskReject   SubmissionStatus = "DESK_REJECT"
	StatusUnderReview  SubmissionStatus = "UNDER_REVIEW"
	StatusRevision     SubmissionStatus = "REVISION"
	StatusAccepted     SubmissionStatus = "ACCEPTED"
	StatusRejected     SubmissionStatus = "REJECTED"
	StatusInProduction SubmissionStatus = "IN_PRODUCTION"
	StatusPublished    SubmissionStatus = "PUBLISHED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []SubmissionStatus{
	StatusNew,
	StatusDeskReject,
	StatusUnderReview,
	StatusRevision,
	StatusAccepted,
	StatusRejected,
	StatusInProduction,
	StatusPublished,
}

func (s SubmissionStatus) Valid() bool {
	for _, candidate := range AllStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves this status.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case StatusDeskReject, StatusRejected, StatusPublished:
		return true
	}
	return false
}

func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	status := SubmissionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown submission status %q", raw)
	}
	return status, nil
}

// RoundStatus tracks a review round from creation to decision.
type RoundStatus string

const (
	// RoundDraft is a round spawned by a revision decision that has no assignments yet.
	RoundDraft   RoundStatus = "DRAFT"
	RoundOpen    RoundStatus = "OPEN"
	RoundDecided RoundStatus = "DECIDED"
)

// Recommendation is a reviewer's verdict on a manuscript.
type Recommendation string

const (
	RecommendAccept Recommendation = "ACCEPT"
	RecommendMinor  Recommendation = "MINOR"
	RecommendMajor  Recommendation = "MAJOR"
	RecommendReject Recommendation = "REJECT"
)

func ParseRecommendation(raw string) (Recommendation, error) {
	rec := Recommendation(strings.ToUpper(strings.TrimSpace(raw)))
	switch rec {
	case RecommendAccept, RecommendMinor, RecommendMajor, RecommendReject:
		return rec, nil
	}
	return "", fmt.Errorf("unknown recommendation %q", raw)
}

// Decision is an editor's ruling closing a round. It shares its labels with
// Recommendation but drives the state machine.
type Decision string

const (
	DecisionAccept Decision = "ACCEPT"
	DecisionMinor  Decision = "MINOR"
	DecisionMajor  Decision = "MAJOR"
	DecisionReject Decision = "REJECT"
)

func ParseDecision(raw string) (Decision, error) {
	d := Decision(strings.ToUpper(strings.TrimSpace(raw)))
	switch d {
	case DecisionAccept, DecisionMinor, DecisionMajor, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("unknown decision %q", raw)
}

// TargetStatus maps a decision onto the submission status it produces.
func (d Decision) TargetStatus() (SubmissionStatus, error) {
	switch d {
	case DecisionAccept:
		return StatusAccepted, nil
	case DecisionReject:
		return StatusRejected, nil
	case DecisionMinor, DecisionMajor:
		return StatusRevision, nil
	}
	return "", fmt.Errorf("unknown decision %q", string(d))
}

// RequestsRevision reports whether the decision spawns another round.
func (d Decision) RequestsRevision() bool {
	return d == DecisionMinor || d == DecisionMajor
}
