package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/database/testutil"
	"github.com/hazardwatch/hazardwatch/internal/models"
)

func newReportRouter(t *testing.T, db *gorm.DB, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler, err := NewReportHandler(db, nil)
	require.NoError(t, err)

	router := gin.New()
	group := router.Group("/api/reports", asUser(userID, models.RoleUser))
	group.POST("", handler.Create)
	group.GET("", handler.List)
	group.GET("/nearby", handler.Nearby)
	group.GET("/:id", handler.Get)
	group.POST("/:id/upvote", handler.Upvote)
	group.POST("/:id/downvote", handler.Downvote)
	group.POST("/:id/comments", handler.AddComment)
	return router
}

func postBody(t *testing.T, payload any) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, postBody(t, payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateReportEndpoint(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	creator := seedUser(t, db, "creator", models.RoleUser)
	router := newReportRouter(t, db, creator.ID)

	rec := postJSON(t, router, "/api/reports", gin.H{
		"title":       "power lines down",
		"description": "sparking lines across the road",
		"category":    models.CategoryAccident,
		"severity":    models.SeverityHigh,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "Report submitted successfully")

	var stored models.IncidentReport
	require.NoError(t, db.First(&stored).Error)
	require.Equal(t, models.StatusPending, stored.Status)
	require.Equal(t, creator.ID, stored.UserID)
}

func TestCreateReportEndpointValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	creator := seedUser(t, db, "creator", models.RoleUser)
	router := newReportRouter(t, db, creator.ID)

	rec := postJSON(t, router, "/api/reports", gin.H{
		"description": "missing title and category",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/reports", gin.H{
		"title":       "odd event",
		"description": "something strange happened",
		"category":    "meteor",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVoteEndpoint(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	author := seedUser(t, db, "author", models.RoleUser)
	voter := seedUser(t, db, "voter", models.RoleUser)
	report := seedReport(t, db, author.ID)
	router := newReportRouter(t, db, voter.ID)

	rec := postJSON(t, router, "/api/reports/"+report.ID+"/upvote", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"upvotes":1`)

	rec = postJSON(t, router, "/api/reports/"+report.ID+"/upvote", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Vote removed")

	rec = postJSON(t, router, "/api/reports/"+report.ID+"/downvote", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"downvotes":1`)
}

func TestCommentEndpoint(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	author := seedUser(t, db, "author", models.RoleUser)
	commenter := seedUser(t, db, "commenter", models.RoleUser)
	report := seedReport(t, db, author.ID)
	router := newReportRouter(t, db, commenter.ID)

	rec := postJSON(t, router, "/api/reports/"+report.ID+"/comments", gin.H{"content": "avoid the area"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", commenter.ID).Error)
	require.Equal(t, 5, user.Points)
}

func TestNearbyEndpointRequiresCoordinates(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedUser(t, db, "user", models.RoleUser)
	router := newReportRouter(t, db, user.ID)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/nearby", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/nearby?latitude=12.97&longitude=77.59", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
