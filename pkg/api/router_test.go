package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/grade-engine/pkg/api/dto"
	"github.com/LENAX/grade-engine/pkg/core/engine"
	"github.com/LENAX/grade-engine/pkg/core/events"
	"github.com/LENAX/grade-engine/pkg/core/graph"
	"github.com/LENAX/grade-engine/pkg/core/types"
	"github.com/LENAX/grade-engine/pkg/storage/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	repo, err := sqlite.NewRunRepoFromDSN(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	eng := engine.NewEngine(engine.WithRunRepository(repo), engine.WithEventBus(events.NewBus()))
	t.Cleanup(eng.Stop)

	g, err := graph.NewBuilder("echo").
		Input("subject").
		Context("upper", func(p types.Pass) (any, error) {
			s, err := types.ValueAs[string](p, "subject")
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(s, "bad") {
				return nil, errors.New("无法处理")
			}
			return strings.ToUpper(s), nil
		}, "subject").
		Evaluator("length", func(p types.Pass) (types.ScoreRecord, error) {
			s, err := types.ValueAs[string](p, "upper")
			if err != nil {
				return types.ScoreRecord{}, err
			}
			return types.ScoreRecord{Value: float64(len(s)), Justification: s}, nil
		}, "upper").
		Build()
	require.NoError(t, err)
	require.NoError(t, eng.RegisterPlan("echo", g))

	return SetupRouter(eng, "test"), eng
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) dto.APIResponse[T] {
	t.Helper()
	var resp dto.APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[dto.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Data.Status)
	assert.Equal(t, "test", resp.Data.Version)
	assert.Equal(t, 1, resp.Data.Plans)
}

func TestListPlans(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[dto.ListResponse[dto.PlanSummary]](t, w)
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "echo", resp.Data.Items[0].Name)
	assert.Equal(t, []string{"subject", "upper", "length"}, resp.Data.Items[0].Order)
}

func TestGradeAndGetRun(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/plans/echo/grade", dto.GradeRequest{Subject: "abc"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	run := decode[dto.RunDetail](t, w).Data
	assert.Equal(t, "SUCCEEDED", run.Status)
	assert.Equal(t, 3.0, run.Total)
	require.Len(t, run.Scores, 1)
	assert.Equal(t, "length", run.Scores[0].Criterion)

	w = doJSON(t, router, http.MethodGet, "/api/v1/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, run.ID, decode[dto.RunDetail](t, w).Data.ID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGradeErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/plans/echo/grade", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/plans/nope/grade", dto.GradeRequest{Subject: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/plans/echo/grade", dto.GradeRequest{Subject: "bad-input"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[dto.RunDetail](t, w)
	assert.Equal(t, 422, resp.Code)
	assert.Equal(t, "FAILED", resp.Data.Status)
	assert.Equal(t, "upper", resp.Data.FailedNode)
	assert.Equal(t, "context_init", resp.Data.ErrorKind)
	assert.Empty(t, resp.Data.Scores)
}

func TestBatchAndRuns(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/plans/echo/batch", dto.BatchGradeRequest{
		Subjects: []string{"a", "bb", "bad", "cccc"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	batch := decode[dto.BatchResponse](t, w).Data
	assert.Equal(t, 3, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Runs, 4)
	assert.Equal(t, "bad", batch.Runs[2].Subject)
	assert.Equal(t, "FAILED", batch.Runs[2].Status)

	w = doJSON(t, router, http.MethodGet, "/api/v1/plans/echo/runs?limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[dto.ListResponse[dto.RunDetail]](t, w).Data
	assert.Equal(t, 3, list.Total)
	assert.True(t, list.HasMore)

	w = doJSON(t, router, http.MethodGet, "/api/v1/plans/echo/runs?limit=3&offset=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = decode[dto.ListResponse[dto.RunDetail]](t, w).Data
	assert.Equal(t, 1, list.Total)
	assert.False(t, list.HasMore)

	w = doJSON(t, router, http.MethodGet, "/api/v1/plans/nope/runs", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/plans/echo/batch", dto.BatchGradeRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventStream(t *testing.T) {
	router, eng := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?types=pass.succeeded"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	run, err := eng.Grade(context.Background(), "echo", "hello")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var e events.GradeEvent
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, events.EventPassSucceeded, e.Type)
	assert.Equal(t, run.ID, e.RunID)
	assert.Equal(t, "hello", e.Subject)
}

func TestRecovery(t *testing.T) {
	router, _ := newTestRouter(t)
	router.GET("/panic", func(*gin.Context) { panic("boom") })

	w := doJSON(t, router, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 500, decode[any](t, w).Code)
}

func TestRouter_GradeAfterStop(t *testing.T) {
	router, eng := newTestRouter(t)
	eng.Stop()

	w := doJSON(t, router, http.MethodPost, "/api/v1/plans/echo/grade", dto.GradeRequest{Subject: "abc"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/plans/echo/batch", dto.BatchGradeRequest{Subjects: []string{"a"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
