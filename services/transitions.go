package services

import "editorial-workflow-api/models"

type edge struct {
	from models.SubmissionStatus
	to   models.SubmissionStatus
}

// edgeCapabilities is the transition table. An edge is legal iff it has an
// entry; holding any listed capability permits it.
var edgeCapabilities = map[edge][]Capability{
	{models.StatusNew, models.StatusDeskReject}:         {CapDecide, CapAdmin},
	{models.StatusNew, models.StatusUnderReview}:        {CapDecide, CapAdmin},
	{models.StatusUnderReview, models.StatusRevision}:   {CapDecide, CapAdmin},
	{models.StatusUnderReview, models.StatusAccepted}:   {CapDecide, CapAdmin},
	{models.StatusUnderReview, models.StatusRejected}:   {CapDecide, CapAdmin},
	{models.StatusRevision, models.StatusUnderReview}:   {CapSubmit, CapDecide, CapAdmin},
	{models.StatusRevision, models.StatusRejected}:      {CapDecide, CapAdmin},
	{models.StatusAccepted, models.StatusInProduction}:  {CapLayout, CapAdmin},
	{models.StatusInProduction, models.StatusPublished}: {CapLayout, CapAdmin},
}

// IsValidTransition reports whether from -> to is an edge of the lifecycle.
func IsValidTransition(from, to models.SubmissionStatus) bool {
	_, ok := edgeCapabilities[edge{from, to}]
	return ok
}

// AllowedTargets lists the statuses reachable in one step from status, in lifecycle order.
func AllowedTargets(from models.SubmissionStatus) []models.SubmissionStatus {
	var out []models.SubmissionStatus
	for _, to := range models.AllStatuses {
		if IsValidTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}

// EdgeCapabilities returns the capabilities any of which permits from -> to.
func EdgeCapabilities(from, to models.SubmissionStatus) []Capability {
	return edgeCapabilities[edge{from, to}]
}

// targetCapabilities is the union of capabilities over every edge into to.
// It drives the gate that runs before the submission is even loaded.
func targetCapabilities(to models.SubmissionStatus) []Capability {
	seen := map[Capability]bool{}
	var out []Capability
	for _, from := range models.AllStatuses {
		for _, c := range edgeCapabilities[edge{from, to}] {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// transitionCapabilities gates a transition whose target no edge leads to.
var transitionCapabilities = []Capability{CapDecide, CapLayout, CapAdmin}

// DecisionEdge reports whether from -> to closes a review round and therefore
// must go through Decide rather than a plain transition.
func DecisionEdge(from, to models.SubmissionStatus) bool {
	return from == models.StatusUnderReview && IsValidTransition(from, to)
}
