package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/apperrors"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/controllers"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/middleware"
	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubBulk struct {
	imports int
}

func (s *stubBulk) Supports(entity models.Entity) bool { return entity == models.EntitySales }

func (s *stubBulk) Import(context.Context, models.Entity, models.BulkImportRequest) (models.BulkResult, error) {
	s.imports++
	return models.BulkResult{Operation: models.BulkOperationImport, Total: 1, Created: 1, Errors: []models.BulkError{}}, nil
}

func (s *stubBulk) Delete(context.Context, models.Entity, []string) (models.BulkResult, error) {
	return models.BulkResult{Operation: models.BulkOperationDelete, Total: 1, Deleted: 1}, nil
}

func (s *stubBulk) ValidateImport(context.Context, models.Entity, []map[string]interface{}) (models.BulkValidationReport, error) {
	return models.BulkValidationReport{Total: 1, Valid: 1, Creates: 1}, nil
}

func newRouter(db Pinger, opts Options) (*gin.Engine, *stubBulk) {
	gin.SetMode(gin.TestMode)
	svc := &stubBulk{}
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	RegisterRoutes(r, controllers.NewBulkController(svc, nil, nil), db, opts)
	return r, svc
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(PingFunc(func(context.Context) error { return nil }), Options{})
	w := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK"}`, w.Body.String())

	r, _ = newRouter(PingFunc(func(context.Context) error { return errors.New("no primary") }), Options{})
	w = serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "DEGRADED")
}

func TestBulkRoutesMounted(t *testing.T) {
	r, svc := newRouter(nil, Options{RequestTimeout: time.Second, BulkRequestTimeout: time.Minute})

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodPost, "/api/v1/sales/bulk-import", `{"records":[{"plant":"P1"}]}`, http.StatusOK},
		{http.MethodPost, "/api/v1/sales/bulk-import/validate", `{"records":[{"plant":"P1"}]}`, http.StatusOK},
		{http.MethodPost, "/api/v1/sales/bulk-delete", `{"ids":["a"]}`, http.StatusOK},
		{http.MethodDelete, "/api/v1/sales/bulk-delete", `{"ids":["a"]}`, http.StatusOK},
		{http.MethodPost, "/api/v1/widgets/bulk-import", `{"records":[{"plant":"P1"}]}`, http.StatusNotFound},
		{http.MethodGet, "/api/v1/bulk-jobs/abc", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, 1, svc.imports)
}

func TestBulkLimiterRejectsWhenFull(t *testing.T) {
	limiter := middleware.NewBulkLimiter(1, 10*time.Millisecond)
	r, svc := newRouter(nil, Options{BulkLimiter: limiter})

	assert.True(t, limiter.TryAcquire())
	w := serve(r, http.MethodPost, "/api/v1/sales/bulk-import", `{"records":[{"plant":"P1"}]}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Zero(t, svc.imports)

	limiter.Release()
	w = serve(r, http.MethodPost, "/api/v1/sales/bulk-import", `{"records":[{"plant":"P1"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
}
