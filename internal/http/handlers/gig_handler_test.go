package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGigHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &GigHandler{svc: nil}
	r.POST("/gigs", handler.Create)

	req, _ := http.NewRequest("POST", "/gigs", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGigHandler_Get_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &GigHandler{svc: nil}
	r.GET("/gigs/:id", handler.Get)

	req, _ := http.NewRequest("GET", "/gigs/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGigHandler_ConfirmMatch_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &GigHandler{svc: nil}
	r.POST("/gigs/:id/confirm", handler.ConfirmMatch)

	postID := uuid.New()
	req, _ := http.NewRequest("POST", "/gigs/"+postID.String()+"/confirm", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
