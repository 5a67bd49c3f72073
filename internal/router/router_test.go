package router

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/events"
	"github.com/noah-isme/classroom-api/internal/handler"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := t[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

var tokens = tokenTable{
	"alice-token": {UserID: "alice", Username: "alice", Role: models.RoleInstructor},
	"bob-token":   {UserID: "bob", Username: "bob", Role: models.RoleStudent},
	"carol-token": {UserID: "carol", Username: "carol", Role: models.RoleStudent},
}

type memoryAssignments struct {
	mu    sync.Mutex
	items []models.Assignment
}

func (m *memoryAssignments) Create(ctx context.Context, a *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *a)
	return nil
}

func (m *memoryAssignments) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryAssignments) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Assignment(nil), m.items...), len(m.items), nil
}

type roster map[models.UserRole][]string

func (r roster) ListActiveIDsByRole(ctx context.Context, role models.UserRole) ([]string, error) {
	return r[role], nil
}

type memoryNotifications struct {
	mu   sync.Mutex
	rows []models.Notification
}

func (m *memoryNotifications) InsertBatch(ctx context.Context, items []models.Notification) ([]string, error) {
	var inserted []string
	for i := range items {
		ok, _ := m.InsertIgnore(ctx, &items[i])
		if ok {
			inserted = append(inserted, items[i].UserID)
		}
	}
	return inserted, nil
}

func (m *memoryNotifications) InsertIgnore(ctx context.Context, n *models.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.EventID == n.EventID && r.UserID == n.UserID {
			return false, nil
		}
	}
	m.rows = append(m.rows, *n)
	return true, nil
}

func (m *memoryNotifications) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryNotifications) CountForUser(ctx context.Context, userID string) (int, int, error) {
	items, _ := m.ListForUser(ctx, userID, 0, 0)
	return len(items), len(items), nil
}

func (m *memoryNotifications) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.UserID)
	}
	sort.Strings(out)
	return out
}

type testStack struct {
	engine        *gin.Engine
	notifications *memoryNotifications
}

func buildRouter() testStack {
	gin.SetMode(gin.TestMode)

	notifications := &memoryNotifications{}
	inbox := service.NewNotificationService(notifications, nil, nil)
	fanOut := service.NewNotificationFanOut(roster{
		models.RoleStudent:    {"bob", "carol"},
		models.RoleInstructor: {"alice"},
	}, notifications, inbox, nil, nil, service.FanOutConfig{})
	publisher := events.NewSyncDispatcher(fanOut, nil)

	assignments := service.NewAssignmentService(&memoryAssignments{}, nil, publisher, nil, nil)
	metrics := service.NewMetricsService()

	engine := New(Options{Tokens: tokens, Metrics: metrics}, Handlers{
		Auth:          handler.NewAuthHandler(nil),
		Assignments:   handler.NewAssignmentHandler(assignments),
		Submissions:   handler.NewSubmissionHandler(nil),
		Announcements: handler.NewAnnouncementHandler(nil),
		Discussions:   handler.NewDiscussionHandler(nil),
		Notifications: handler.NewNotificationHandler(inbox),
		VoiceCalls:    handler.NewVoiceCallHandler(nil),
		Files:         handler.NewFileHandler(nil),
		Metrics:       handler.NewMetricsHandler(metrics, nil),
	})
	return testStack{engine: engine, notifications: notifications}
}

func performRequest(r http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var homework = []byte(`{"title":"HW1","description":"Read chapter 1","due_date":"2030-01-01T00:00:00Z"}`)

func TestAssignmentCreateNotifiesEveryStudent(t *testing.T) {
	stack := buildRouter()

	w := performRequest(stack.engine, http.MethodPost, "/api/assignments", "alice-token", homework)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"bob", "carol"}, stack.notifications.recipients())

	w = performRequest(stack.engine, http.MethodGet, "/api/notifications", "bob-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "bob", body.Data[0].UserID)
	assert.Contains(t, body.Data[0].Message, "HW1")
}

func TestStudentCannotCreateAssignment(t *testing.T) {
	stack := buildRouter()

	w := performRequest(stack.engine, http.MethodPost, "/api/assignments", "bob-token", homework)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, stack.notifications.recipients())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	stack := buildRouter()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/assignments"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPost, "/api/voice-call/token"},
		{http.MethodPatch, "/api/submissions/s1/grade"},
		{http.MethodGet, "/api/me"},
	}
	for _, tc := range cases {
		w := performRequest(stack.engine, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)

		w = performRequest(stack.engine, tc.method, tc.path, "forged", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}

func TestInstructorOnlyRoutesRejectStudents(t *testing.T) {
	stack := buildRouter()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPatch, "/api/submissions/s1/grade"},
		{http.MethodGet, "/api/assignments/a1/gradebook"},
		{http.MethodPost, "/api/announcements"},
		{http.MethodDelete, "/api/announcements/n1"},
		{http.MethodPut, "/api/discussions/d1"},
	}
	for _, tc := range cases {
		w := performRequest(stack.engine, tc.method, tc.path, "carol-token", []byte(`{}`))
		assert.Equal(t, http.StatusForbidden, w.Code, tc.path)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	stack := buildRouter()

	w := performRequest(stack.engine, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(stack.engine, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	performRequest(stack.engine, http.MethodGet, "/api/assignments", "bob-token", nil)
	w = performRequest(stack.engine, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/assignments")

	w = performRequest(stack.engine, http.MethodGet, "/docs/index.html", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
