package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
)

// WorkflowService is the part of services.WorkflowEngine the HTTP layer uses.
type WorkflowService interface {
	Config() config.WorkflowConfig
	Submit(ctx context.Context, actor models.Actor, in services.SubmitInput) (*models.Submission, error)
	GetSubmission(ctx context.Context, actor models.Actor, submissionID uint) (*models.Submission, error)
	Transition(ctx context.Context, actor models.Actor, in services.TransitionInput) (*models.Submission, error)
	OpenRound(ctx context.Context, actor models.Actor, in services.OpenRoundInput) (*models.ReviewRound, error)
	AddReviewer(ctx context.Context, actor models.Actor, submissionID uint, roundNo int, reviewerID uint) (*models.ReviewAssignment, error)
	IsRoundComplete(ctx context.Context, submissionID uint, roundNo int) (bool, error)
	Decide(ctx context.Context, actor models.Actor, in services.DecideInput) (*services.DecisionResult, error)
	SuggestReviewers(ctx context.Context, actor models.Actor, submissionID uint, limit int, minScore float64) ([]services.Suggestion, error)
	AttachFile(ctx context.Context, actor models.Actor, in services.AttachFileInput) (*models.SubmissionAttachment, error)
	ListAttachments(ctx context.Context, actor models.Actor, submissionID uint) ([]models.SubmissionAttachment, error)
	SubmitReview(ctx context.Context, actor models.Actor, in services.SubmitReviewInput) (*models.ReviewAssignment, error)
	RateReview(ctx context.Context, actor models.Actor, assignmentID uint, rating int) (*models.ReviewAssignment, error)
	OverdueAssignments(ctx context.Context) ([]models.ReviewAssignment, error)
	ListReviewers(ctx context.Context, activeOnly bool) ([]models.ReviewerProfile, error)
	UpsertReviewerProfile(ctx context.Context, actor models.Actor, in services.ReviewerProfileInput) (*models.ReviewerProfile, error)
	Workload(ctx context.Context, actor models.Actor, reviewerID uint) (services.WorkloadStatus, error)
	QueryAudit(ctx context.Context, actor models.Actor, filter services.AuditFilter) ([]models.AuditRecord, error)
}

// WorkflowController exposes the editorial workflow engine over HTTP. The
// engine performs every permission check itself; handlers only decode input.
type WorkflowController struct {
	engine WorkflowService
}

func NewWorkflowController(engine WorkflowService) *WorkflowController {
	return &WorkflowController{engine: engine}
}

// retries is how often a handler reruns an operation that lost a version race.
// Transition is never retried: its caller supplied the version it expects.
func (ctl *WorkflowController) retries() int {
	return ctl.engine.Config().ConflictRetries
}

type createSubmissionRequest struct {
	Title             string   `json:"title" binding:"required"`
	Abstract          string   `json:"abstract"`
	AbstractSecondary *string  `json:"abstract_secondary"`
	Keywords          []string `json:"keywords"`
	CategoryID        *uint    `json:"category_id"`
	CategoryName      string   `json:"category_name"`
	SecurityLevel     int      `json:"security_level"`
}

// POST /api/v1/submissions
func (ctl *WorkflowController) CreateSubmission(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sub, err := ctl.engine.Submit(c.Request.Context(), actor, services.SubmitInput{
		Title:             req.Title,
		Abstract:          req.Abstract,
		AbstractSecondary: req.AbstractSecondary,
		Keywords:          req.Keywords,
		CategoryID:        req.CategoryID,
		CategoryName:      req.CategoryName,
		SecurityLevel:     req.SecurityLevel,
	})
	respond(c, http.StatusCreated, sub, err)
}

// GET /api/v1/submissions/:id
func (ctl *WorkflowController) GetSubmission(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	sub, err := ctl.engine.GetSubmission(c.Request.Context(), actor, id)
	respond(c, http.StatusOK, sub, err)
}

// GET /api/v1/submissions/:id/transitions
func (ctl *WorkflowController) AllowedTransitions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	sub, err := ctl.engine.GetSubmission(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	targets := []models.SubmissionStatus{}
	for _, to := range services.AllowedTargets(sub.Status) {
		if services.DecisionEdge(sub.Status, to) {
			continue
		}
		if services.HasAny(actor.Role, services.EdgeCapabilities(sub.Status, to)...) {
			targets = append(targets, to)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"status": sub.Status, "version": sub.Version, "targets": targets}})
}

type transitionRequest struct {
	Target          string `json:"target" binding:"required"`
	ExpectedVersion int    `json:"expected_version"`
	Reason          string `json:"reason"`
}

// POST /api/v1/submissions/:id/transitions
func (ctl *WorkflowController) TransitionSubmission(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	target, err := models.ParseSubmissionStatus(req.Target)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	sub, err := ctl.engine.Transition(c.Request.Context(), actor, services.TransitionInput{
		SubmissionID:    id,
		Target:          target,
		ExpectedVersion: req.ExpectedVersion,
		Reason:          req.Reason,
	})
	respond(c, http.StatusOK, sub, err)
}

type openRoundRequest struct {
	ReviewerIDs []uint `json:"reviewer_ids" binding:"required"`
}

// POST /api/v1/submissions/:id/rounds
func (ctl *WorkflowController) OpenRound(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req openRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	round, err := services.RetryOnConflict(c.Request.Context(), ctl.retries(), func(ctx context.Context) (*models.ReviewRound, error) {
		return ctl.engine.OpenRound(ctx, actor, services.OpenRoundInput{SubmissionID: id, ReviewerIDs: req.ReviewerIDs})
	})
	respond(c, http.StatusCreated, round, err)
}

type addReviewerRequest struct {
	ReviewerID uint `json:"reviewer_id" binding:"required"`
}

// POST /api/v1/submissions/:id/rounds/:round/reviewers
func (ctl *WorkflowController) AddReviewer(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	roundNo, ok := intParam(c, "round")
	if !ok {
		return
	}
	var req addReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := services.RetryOnConflict(c.Request.Context(), ctl.retries(), func(ctx context.Context) (*models.ReviewAssignment, error) {
		return ctl.engine.AddReviewer(ctx, actor, id, roundNo, req.ReviewerID)
	})
	respond(c, http.StatusCreated, a, err)
}

// GET /api/v1/submissions/:id/rounds/:round/complete
func (ctl *WorkflowController) RoundCompleteness(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	roundNo, ok := intParam(c, "round")
	if !ok {
		return
	}
	if _, err := ctl.engine.GetSubmission(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	complete, err := ctl.engine.IsRoundComplete(c.Request.Context(), id, roundNo)
	respond(c, http.StatusOK, gin.H{"submission_id": id, "round_no": roundNo, "complete": complete}, err)
}

type decideRequest struct {
	Decision string `json:"decision" binding:"required"`
	Note     string `json:"note"`
}

// POST /api/v1/submissions/:id/rounds/:round/decision
func (ctl *WorkflowController) Decide(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	roundNo, ok := intParam(c, "round")
	if !ok {
		return
	}
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	decision, err := models.ParseDecision(req.Decision)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := services.RetryOnConflict(c.Request.Context(), ctl.retries(), func(ctx context.Context) (*services.DecisionResult, error) {
		return ctl.engine.Decide(ctx, actor, services.DecideInput{
			SubmissionID: id,
			RoundNo:      roundNo,
			Decision:     decision,
			Note:         req.Note,
		})
	})
	respond(c, http.StatusCreated, res, err)
}

// GET /api/v1/submissions/:id/suggestions?limit=&min_score=
func (ctl *WorkflowController) SuggestReviewers(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	limit := 10
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	minScore := 0.0
	if raw := strings.TrimSpace(c.Query("min_score")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			badRequest(c, "min_score must be within [0,1]")
			return
		}
		minScore = v
	}
	out, err := ctl.engine.SuggestReviewers(c.Request.Context(), actor, id, limit, minScore)
	respond(c, http.StatusOK, out, err)
}

type attachRequest struct {
	AssignmentID *uint  `json:"assignment_id"`
	BlobRef      string `json:"blob_ref" binding:"required"`
	Kind         string `json:"kind" binding:"required"`
}

// POST /api/v1/submissions/:id/attachments
func (ctl *WorkflowController) AttachFile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	att, err := ctl.engine.AttachFile(c.Request.Context(), actor, services.AttachFileInput{
		SubmissionID: id,
		AssignmentID: req.AssignmentID,
		BlobRef:      req.BlobRef,
		Kind:         strings.ToLower(strings.TrimSpace(req.Kind)),
	})
	respond(c, http.StatusCreated, att, err)
}

// GET /api/v1/submissions/:id/attachments
func (ctl *WorkflowController) ListAttachments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	items, err := ctl.engine.ListAttachments(c.Request.Context(), actor, id)
	respond(c, http.StatusOK, items, err)
}

type submitReviewRequest struct {
	Recommendation string          `json:"recommendation" binding:"required"`
	Score          *float64        `json:"score"`
	Form           json.RawMessage `json:"form"`
}

// POST /api/v1/assignments/:id/review
func (ctl *WorkflowController) SubmitReview(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rec, err := models.ParseRecommendation(req.Recommendation)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := services.RetryOnConflict(c.Request.Context(), ctl.retries(), func(ctx context.Context) (*models.ReviewAssignment, error) {
		return ctl.engine.SubmitReview(ctx, actor, services.SubmitReviewInput{
			AssignmentID:   id,
			Recommendation: rec,
			Score:          req.Score,
			Form:           req.Form,
		})
	})
	respond(c, http.StatusOK, a, err)
}

type rateReviewRequest struct {
	Rating int `json:"rating" binding:"required"`
}

// POST /api/v1/assignments/:id/rating
func (ctl *WorkflowController) RateReview(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req rateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := ctl.engine.RateReview(c.Request.Context(), actor, id, req.Rating)
	respond(c, http.StatusOK, a, err)
}

// GET /api/v1/reviews/overdue
func (ctl *WorkflowController) ListOverdue(c *gin.Context) {
	items, err := ctl.engine.OverdueAssignments(c.Request.Context())
	respond(c, http.StatusOK, items, err)
}

// GET /api/v1/reviewers?active=1
func (ctl *WorkflowController) ListReviewers(c *gin.Context) {
	active := strings.TrimSpace(c.Query("active"))
	items, err := ctl.engine.ListReviewers(c.Request.Context(), active == "1" || strings.EqualFold(active, "true"))
	respond(c, http.StatusOK, items, err)
}

type reviewerProfileRequest struct {
	DisplayName string   `json:"display_name"`
	Expertise   []string `json:"expertise"`
	Keywords    []string `json:"keywords"`
	Active      *bool    `json:"active"`
}

// PUT /api/v1/reviewers/:id
func (ctl *WorkflowController) UpsertReviewer(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req reviewerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	profile, err := ctl.engine.UpsertReviewerProfile(c.Request.Context(), actor, services.ReviewerProfileInput{
		UserID:      id,
		DisplayName: req.DisplayName,
		Expertise:   req.Expertise,
		Keywords:    req.Keywords,
		Active:      req.Active,
	})
	respond(c, http.StatusOK, profile, err)
}

// GET /api/v1/reviewers/:id/workload
func (ctl *WorkflowController) GetWorkload(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	status, err := ctl.engine.Workload(c.Request.Context(), actor, id)
	respond(c, http.StatusOK, status, err)
}

// GET /api/v1/audit?actor_id=&action=&object_type=&object_id=&from=&to=&limit=
func (ctl *WorkflowController) QueryAudit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	filter := services.AuditFilter{
		ActionPrefix: strings.TrimSpace(c.Query("action")),
		ObjectType:   strings.TrimSpace(c.Query("object_type")),
		ObjectID:     strings.TrimSpace(c.Query("object_id")),
	}
	if raw := strings.TrimSpace(c.Query("actor_id")); raw != "" {
		id64, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid actor_id")
			return
		}
		id := uint(id64)
		filter.ActorID = &id
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, key+" must be RFC3339")
			return
		}
		*dst = &ts
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil {
		filter.Limit = v
	}
	records, err := ctl.engine.QueryAudit(c.Request.Context(), actor, filter)
	respond(c, http.StatusOK, records, err)
}
