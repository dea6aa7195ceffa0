// Package apitest provides an in-memory stand-in for the simguard API,
// used by package tests across the client. It speaks the same REST
// contract and error envelope as the real server.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"simguard/client/internal/models"
)

type Server struct {
	httpServer *httptest.Server

	mu sync.Mutex

	// Credentials the fake accepts.
	Email    string
	Password string
	User     models.User

	// Tokens issued on login and required on protected routes.
	AccessToken  string
	RefreshToken string

	// TakenEmail makes register answer 409 for that address.
	TakenEmail string

	// ForceUnauthorized makes every request answer 401.
	ForceUnauthorized bool

	// Upload behaviour.
	NextSubmissionID int64
	UploadReject     string // non-empty: upload answers 422 with this detail

	// StatusScript is consumed one entry per poll; the last entry
	// repeats once exhausted.
	StatusScript []models.SubmissionStatus
	statusIndex  int
	FailMessage  string

	// StatusFail, when non-zero, makes the status endpoint answer that
	// code instead of the scripted status.
	StatusFail int

	// Report payload for completed submissions.
	Detail models.SubmissionDetail

	// Backing rows for history and delete.
	Submissions []models.SubmissionListItem

	// DeleteStatus, when non-zero, makes delete answer that code
	// instead of removing the row.
	DeleteStatus int

	hits map[string]int
}

func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		Email:            "ada@example.com",
		Password:         "correct horse",
		AccessToken:      "access-token-1",
		RefreshToken:     "refresh-token-1",
		NextSubmissionID: 101,
		hits:             make(map[string]int),
	}
	s.User = models.User{
		ID:           1,
		Email:        s.Email,
		FullName:     "Ada Lovelace",
		Plan:         models.UserPlanFree,
		AuthProvider: models.AuthProviderLocal,
		Verified:     true,
	}

	engine := gin.New()
	engine.Use(s.count, s.gate)

	v1 := engine.Group("/api/v1")
	v1.POST("/auth/login", s.login)
	v1.POST("/auth/register", s.register)

	authed := v1.Group("", s.requireAuth)
	authed.GET("/auth/me", s.me)
	authed.PUT("/auth/profile", s.updateProfile)
	authed.PUT("/auth/change-password", s.changePassword)
	authed.POST("/submissions/upload", s.upload)
	authed.GET("/submissions/:id/status", s.status)
	authed.GET("/submissions/:id/report", s.report)
	authed.GET("/submissions/history", s.history)
	authed.DELETE("/submissions/:id", s.deleteSubmission)

	s.httpServer = httptest.NewServer(engine)
	return s
}

// BaseURL is the versioned base path clients should point at.
func (s *Server) BaseURL() string {
	return s.httpServer.URL + "/api/v1"
}

func (s *Server) Close() {
	s.httpServer.Close()
}

// Hits returns how many requests matched the given "METHOD /full/path"
// route key.
func (s *Server) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// ResetStatusScript rewinds the scripted status sequence.
func (s *Server) ResetStatusScript(script ...models.SubmissionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusScript = script
	s.statusIndex = 0
}

func detail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": msg})
}

func (s *Server) count(c *gin.Context) {
	c.Next()
	if path := c.FullPath(); path != "" {
		s.mu.Lock()
		s.hits[c.Request.Method+" "+path]++
		s.mu.Unlock()
	}
}

func (s *Server) gate(c *gin.Context) {
	s.mu.Lock()
	forced := s.ForceUnauthorized
	s.mu.Unlock()
	if forced {
		detail(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	c.Next()
}

func (s *Server) requireAuth(c *gin.Context) {
	s.mu.Lock()
	want := "Bearer " + s.AccessToken
	s.mu.Unlock()
	if c.GetHeader("Authorization") != want {
		detail(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	c.Next()
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Email != s.Email || req.Password != s.Password {
		detail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
		"token_type":    "bearer",
		"user":          s.User,
	})
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	taken := s.TakenEmail
	s.mu.Unlock()

	if req.Email == taken {
		detail(c, http.StatusConflict, "Email already registered")
		return
	}
	if len(req.Password) < 8 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": []gin.H{
				{"loc": []string{"body", "password"}, "msg": "Password must be at least 8 characters"},
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account created. Please check your email to verify it."})
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.User)
}

func (s *Server) updateProfile(c *gin.Context) {
	var req struct {
		FullName string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.User.FullName = req.FullName
	c.JSON(http.StatusOK, s.User)
}

func (s *Server) changePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.CurrentPassword != s.Password {
		detail(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	s.Password = req.NewPassword
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (s *Server) upload(c *gin.Context) {
	s.mu.Lock()
	reject := s.UploadReject
	s.mu.Unlock()
	if reject != "" {
		detail(c, http.StatusUnprocessableEntity, reject)
		return
	}

	if _, err := c.FormFile("file1"); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Both files are required")
		return
	}
	if _, err := c.FormFile("file2"); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Both files are required")
		return
	}
	mode := c.PostForm("mode")
	if mode != string(models.ModeText) && mode != string(models.ModeCode) {
		detail(c, http.StatusUnprocessableEntity, "mode must be 'text' or 'code'")
		return
	}

	s.mu.Lock()
	id := s.NextSubmissionID
	s.NextSubmissionID++
	s.mu.Unlock()

	c.JSON(http.StatusAccepted, gin.H{
		"submission_id": id,
		"status":        models.StatusPending,
		"message":       "Submission accepted for analysis.",
	})
}

func (s *Server) status(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusNotFound, "Submission not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StatusFail != 0 {
		detail(c, s.StatusFail, "status unavailable")
		return
	}

	status := models.StatusPending
	if len(s.StatusScript) > 0 {
		idx := s.statusIndex
		if idx >= len(s.StatusScript) {
			idx = len(s.StatusScript) - 1
		}
		status = s.StatusScript[idx]
		s.statusIndex++
	}

	message := ""
	if status == models.StatusFailed {
		message = s.FailMessage
		if message == "" {
			message = "Analysis failed: Unknown error"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"submission_id": id,
		"status":        status,
		"message":       message,
	})
}

func (s *Server) report(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.Detail)
}

func (s *Server) history(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "8"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 8
	}
	mode := c.Query("mode")
	risk := c.Query("risk")
	sortOrder := c.DefaultQuery("sort", "desc")

	s.mu.Lock()
	rows := append([]models.SubmissionListItem(nil), s.Submissions...)
	s.mu.Unlock()

	filtered := rows[:0]
	for _, row := range rows {
		if mode != "" && string(row.Mode) != mode {
			continue
		}
		if risk != "" && (row.RiskLevel == nil || string(*row.RiskLevel) != risk) {
			continue
		}
		filtered = append(filtered, row)
	}

	desc := sortOrder != "asc"
	sort.Slice(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if desc {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if desc {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})

	total := len(filtered)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"submissions": filtered[start:end],
	})
}

func (s *Server) deleteSubmission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		detail(c, http.StatusNotFound, "Submission not found")
		return
	}

	s.mu.Lock()
	deleteStatus := s.DeleteStatus
	s.mu.Unlock()
	if deleteStatus != 0 {
		detail(c, deleteStatus, fmt.Sprintf("delete rejected with status %d", deleteStatus))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.Submissions[:0]
	found := false
	for _, row := range s.Submissions {
		if row.ID == id {
			found = true
			continue
		}
		kept = append(kept, row)
	}
	s.Submissions = kept
	if !found {
		detail(c, http.StatusNotFound, "Submission not found")
		return
	}
	c.Status(http.StatusNoContent)
}
