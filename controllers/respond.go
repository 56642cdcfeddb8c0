package controllers

import (
	"log"
	"net/http"
	"strconv"

	"editorial-workflow-api/middleware"
	"editorial-workflow-api/models"
	"editorial-workflow-api/services"

	"github.com/gin-gonic/gin"
)

// statusForKind maps workflow error kinds onto HTTP statuses.
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindInsufficientReviewers:
		return http.StatusBadRequest
	case services.KindForbidden, services.KindNotAssignedReviewer:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidTransition, services.KindAlreadySubmitted, services.KindRoundIncomplete,
		services.KindDuplicateDecision, services.KindConcurrentModification, services.KindRoundConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	if we, ok := services.AsWorkflowError(err); ok {
		c.JSON(statusForKind(we.Kind), gin.H{"success": false, "error": we.Error(), "kind": we.Kind})
		return
	}
	log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
}

// respond writes data with status, or the error. A degraded audit trail is a
// warning: the mutation committed, so the caller still gets the data.
func respond(c *gin.Context, status int, data any, err error) {
	if err != nil && !services.IsWarning(err) {
		respondError(c, err)
		return
	}
	body := gin.H{"success": true, "data": data}
	if err != nil {
		body["warning"] = err.Error()
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
	}
	return actor, ok
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id64 == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id64), true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}
