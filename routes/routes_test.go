package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"editorial-workflow-api/controllers"

	"github.com/gin-gonic/gin"
)

func TestSetupRoutesRegistersWorkflowSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, Handlers{
		Auth:          controllers.NewAuthController(nil),
		Workflow:      controllers.NewWorkflowController(nil),
		Notifications: controllers.NewNotificationController(nil),
	})

	registered := map[string]bool{}
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/login",
		"GET /api/v1/health",
		"POST /api/v1/submissions",
		"GET /api/v1/submissions/:id",
		"POST /api/v1/submissions/:id/transitions",
		"POST /api/v1/submissions/:id/rounds",
		"POST /api/v1/submissions/:id/rounds/:round/reviewers",
		"GET /api/v1/submissions/:id/rounds/:round/complete",
		"POST /api/v1/submissions/:id/rounds/:round/decision",
		"GET /api/v1/submissions/:id/suggestions",
		"POST /api/v1/submissions/:id/attachments",
		"POST /api/v1/assignments/:id/review",
		"POST /api/v1/assignments/:id/rating",
		"GET /api/v1/reviews/overdue",
		"PUT /api/v1/reviewers/:id",
		"GET /api/v1/reviewers/:id/workload",
		"GET /api/v1/audit",
		"GET /api/v1/ops/monitor",
	} {
		if !registered[want] {
			t.Fatalf("route %s not registered", want)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/submissions/1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("protected route without token: %d", w.Code)
	}
}
