package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hazardwatch/hazardwatch/internal/database/testutil"
	"github.com/hazardwatch/hazardwatch/internal/middleware"
	"github.com/hazardwatch/hazardwatch/internal/models"
)

func newPointsRouter(t *testing.T, db *gorm.DB, userID, role string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler, err := NewPointsHandler(db)
	require.NoError(t, err)

	router := gin.New()
	api := router.Group("/api", asUser(userID, role))
	points := api.Group("/points")
	{
		points.GET("/me", handler.MySummary)
		points.GET("/user/:id", handler.Summary)
		points.POST("/award", middleware.RequireAdmin(), handler.Award)
	}
	api.GET("/leaderboard", handler.Leaderboard)
	return router
}

func TestPointsAwardAndSummary(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	admin := seedUser(t, db, "points-admin", models.RoleAdmin)
	member := seedUser(t, db, "points-member", models.RoleUser)

	router := newPointsRouter(t, db, admin.ID, models.RoleAdmin)

	rec := postJSON(t, router, "/api/points/award", map[string]any{
		"userId":      member.ID,
		"points":      60,
		"action":      models.ActionBonus,
		"description": "community cleanup drive",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/points/user/"+member.ID, nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Points int      `json:"points"`
			Badges []string `json:"badges"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 60, body.Data.Points)
	require.Contains(t, body.Data.Badges, "Bronze Reporter")
}

func TestPointsAwardRejectsNonAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	member := seedUser(t, db, "points-plain", models.RoleUser)

	router := newPointsRouter(t, db, member.ID, models.RoleUser)

	rec := postJSON(t, router, "/api/points/award", map[string]any{
		"userId": member.ID,
		"points": 10,
		"action": models.ActionBonus,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPointsAwardValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	admin := seedUser(t, db, "points-admin2", models.RoleAdmin)

	router := newPointsRouter(t, db, admin.ID, models.RoleAdmin)

	rec := postJSON(t, router, "/api/points/award", map[string]any{
		"userId": admin.ID,
		"points": 10,
		"action": "steal_points",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/points/award", map[string]any{
		"userId": admin.ID,
		"points": 0,
		"action": models.ActionBonus,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointsMySummary(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	member := seedUser(t, db, "points-self", models.RoleUser)

	router := newPointsRouter(t, db, member.ID, models.RoleUser)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/points/me", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			UserID   string `json:"userId"`
			Username string `json:"username"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, member.ID, body.Data.UserID)
	require.Equal(t, "points-self", body.Data.Username)
}

func TestLeaderboardEndpoint(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	admin := seedUser(t, db, "lead-admin", models.RoleAdmin)

	first := seedUser(t, db, "lead-first", models.RoleUser)
	second := seedUser(t, db, "lead-second", models.RoleUser)
	require.NoError(t, db.Model(first).UpdateColumn("points", 120).Error)
	require.NoError(t, db.Model(second).UpdateColumn("points", 45).Error)

	router := newPointsRouter(t, db, admin.ID, models.RoleAdmin)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Period      string `json:"period"`
			Leaderboard []struct {
				Username string `json:"username"`
				Points   int    `json:"points"`
			} `json:"leaderboard"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "all", body.Data.Period)
	require.Len(t, body.Data.Leaderboard, 2)
	require.Equal(t, "lead-first", body.Data.Leaderboard[0].Username)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/leaderboard?period=decade", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
