package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"studydesk/internal/progress"
	"studydesk/internal/workspace"
)

func testOptions(t *testing.T, period time.Duration) workspace.Options {
	t.Helper()
	opts := workspace.DefaultOptions()
	opts.UploadPolicy.Period = period
	opts.UploadPolicy.Timeout = 0
	opts.GenerationPolicy.Period = period
	opts.GenerationPolicy.Timeout = 0
	opts.GenerationDelay = time.Millisecond
	opts.DataDir = t.TempDir()
	return opts
}

func setupRouter(t *testing.T, opts workspace.Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	testRouter := gin.New()
	testManager := workspace.NewManager(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		testManager.DisposeAll(ctx)
	})
	apiHandler := NewAPI(testManager)
	apiHandler.RegisterRoutes(testRouter)
	apiHandler.RegisterUIRoutes(testRouter)
	return testRouter
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", w.Body.String(), err)
	}
}

func createWorkspace(t *testing.T, router http.Handler) string {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/v1/workspaces", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	var resp workspaceResponse
	decode(t, w, &resp)
	if resp.ID == "" {
		t.Fatalf("expected non-empty workspace id")
	}
	return resp.ID
}

func TestCreateWorkspaceWhenBusy(t *testing.T) {
	opts := testOptions(t, time.Millisecond)
	opts.MaxWorkspaces = 1
	router := setupRouter(t, opts)

	createWorkspace(t, router)
	w := do(t, router, http.MethodPost, "/api/v1/workspaces", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestUnknownWorkspace(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Millisecond))

	for _, path := range []string{"/api/v1/workspaces/nope", "/api/v1/workspaces/nope/uploads", "/api/v1/workspaces/nope/assessments/x"} {
		w := do(t, router, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusNotFound, w.Code)
		}
	}
}

func TestListDocuments(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Millisecond))

	w := do(t, router, http.MethodGet, "/api/v1/documents", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp struct {
		Documents []map[string]any `json:"documents"`
	}
	decode(t, w, &resp)
	if len(resp.Documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(resp.Documents))
	}
}

func TestUploadCompletes(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Millisecond))
	ws := createWorkspace(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/uploads",
		`{"files":[{"name":"report.pdf","size_bytes":2500000}]}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, w.Code, w.Body.String())
	}
	var created struct {
		Uploads []uploadResponse `json:"uploads"`
	}
	decode(t, w, &created)
	if len(created.Uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(created.Uploads))
	}
	up := created.Uploads[0]
	if up.DocType != "PDF" || up.Size != "2.5 MB" || up.SizeClass != progress.SizeMedium {
		t.Fatalf("unexpected upload metadata: %+v", up)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		w = do(t, router, http.MethodGet, "/api/v1/workspaces/"+ws+"/uploads/"+up.ID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var got uploadResponse
		decode(t, w, &got)
		if got.Stage == progress.StageCompleted {
			if got.Progress != 100 || got.CompletedAt == nil {
				t.Fatalf("completed upload not finalized: %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("upload did not complete, last stage %s", got.Stage)
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = do(t, router, http.MethodGet, "/api/v1/workspaces/"+ws+"/sources", "")
	if !strings.Contains(w.Body.String(), up.ID) {
		t.Fatalf("expected completed upload among sources: %s", w.Body.String())
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Millisecond))
	ws := createWorkspace(t, router)

	cases := []string{
		`{"files":[]}`,
		`{"files":[{"name":"photo.png","size_bytes":10}]}`,
		`{"files":[{"name":"big.pdf","size_bytes":20000000}]}`,
		`{"files":[{"name":"  ","size_bytes":1}]}`,
		`not json`,
	}
	for _, body := range cases {
		w := do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/uploads", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", body, http.StatusBadRequest, w.Code)
		}
	}

	w := do(t, router, http.MethodGet, "/api/v1/workspaces/"+ws+"/uploads", "")
	var resp struct {
		Uploads []uploadResponse `json:"uploads"`
	}
	decode(t, w, &resp)
	if len(resp.Uploads) != 0 {
		t.Fatalf("expected no uploads, got %d", len(resp.Uploads))
	}
}

func TestFailAndRemoveUpload(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Hour))
	ws := createWorkspace(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/uploads",
		`{"files":[{"name":"a.txt","size_bytes":10},{"name":"b.docx","size_bytes":10}]}`)
	var created struct {
		Uploads []uploadResponse `json:"uploads"`
	}
	decode(t, w, &created)
	first, second := created.Uploads[0].ID, created.Uploads[1].ID

	w = do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/uploads/"+first+"/fail", `{"reason":"network lost"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var failed uploadResponse
	decode(t, w, &failed)
	if failed.Stage != progress.StageError || failed.Error != "network lost" {
		t.Fatalf("unexpected failed upload: %+v", failed)
	}

	w = do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/uploads/"+first+"/fail", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	w = do(t, router, http.MethodGet, "/api/v1/workspaces/"+ws+"/uploads/"+second, "")
	var other uploadResponse
	decode(t, w, &other)
	if other.Stage.Terminal() {
		t.Fatalf("failing one upload must not affect another: %+v", other)
	}

	w = do(t, router, http.MethodDelete, "/api/v1/workspaces/"+ws+"/uploads/"+first, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	w = do(t, router, http.MethodDelete, "/api/v1/workspaces/"+ws+"/uploads/"+first, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestGenerateValidation(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Millisecond))
	ws := createWorkspace(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/assessments",
		`{"question_types":["essay"],"count":10}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	var resp map[string]string
	decode(t, w, &resp)
	if resp["field"] != "source_id" || resp["error"] == "" {
		t.Fatalf("unexpected validation response: %v", resp)
	}

	w = do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/assessments",
		`{"source_id":"1","question_types":["essay"],"count":500}`)
	decode(t, w, &resp)
	if w.Code != http.StatusBadRequest || resp["field"] != "count" {
		t.Fatalf("expected count validation error, got %d %v", w.Code, resp)
	}
}

func TestExportBeforeReady(t *testing.T) {
	opts := testOptions(t, time.Millisecond)
	opts.GenerationDelay = time.Hour
	router := setupRouter(t, opts)
	ws := createWorkspace(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/assessments",
		`{"source_id":"1","question_types":["essay"],"count":5}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, w.Code)
	}
	var created map[string]any
	decode(t, w, &created)
	id, _ := created["id"].(string)

	w = do(t, router, http.MethodGet, "/api/v1/workspaces/"+ws+"/assessments/"+id+"/export", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
}

func TestGenerateAndExport(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Millisecond))
	ws := createWorkspace(t, router)

	w := do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/assessments",
		`{"source_id":"2","question_types":["multiple-choice","true-false"],"count":8,"difficulty":"hard"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	deadline := time.Now().Add(2 * time.Second)
	for {
		w = do(t, router, http.MethodGet, "/api/v1/workspaces/"+ws+"/assessments/"+created.ID, "")
		var got struct {
			Stage     progress.Stage   `json:"stage"`
			Questions []map[string]any `json:"questions"`
		}
		decode(t, w, &got)
		if got.Stage == progress.StageCompleted {
			if len(got.Questions) != 8 {
				t.Fatalf("expected 8 questions, got %d", len(got.Questions))
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("assessment did not complete, last stage %s", got.Stage)
		}
		time.Sleep(5 * time.Millisecond)
	}

	w = do(t, router, http.MethodGet, "/api/v1/workspaces/"+ws+"/assessments/"+created.ID+"/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "assessment-data-structures-guide.zip") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("expected zip body")
	}

	w = do(t, router, http.MethodDelete, "/api/v1/workspaces/"+ws+"/assessments/"+created.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
}

func TestDisposeWorkspace(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Hour))
	ws := createWorkspace(t, router)
	do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/uploads", `{"files":[{"name":"a.pdf","size_bytes":1}]}`)

	w := do(t, router, http.MethodDelete, "/api/v1/workspaces/"+ws, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	w = do(t, router, http.MethodGet, "/api/v1/workspaces/"+ws, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestEventsStream(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Millisecond))
	ws := createWorkspace(t, router)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/workspaces/"+ws+"/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	w := do(t, router, http.MethodPost, "/api/v1/workspaces/"+ws+"/uploads", `{"files":[{"name":"notes.txt","size_bytes":1}]}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, w.Code)
	}

	sawProgress := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event:progress" {
			sawProgress = true
		}
		if line == "event:complete" {
			if !sawProgress {
				t.Fatalf("complete arrived before any progress event")
			}
			return
		}
	}
	t.Fatalf("stream ended without a complete event: %v", scanner.Err())
}

func TestUIPages(t *testing.T) {
	router := setupRouter(t, testOptions(t, time.Hour))

	w := do(t, router, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Introduction to Machine Learning.pdf") {
		t.Fatalf("unexpected home page: %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/ui/workspaces", "")
	if w.Code != http.StatusFound {
		t.Fatalf("expected status %d, got %d", http.StatusFound, w.Code)
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "/ui/workspaces/") {
		t.Fatalf("unexpected redirect %q", location)
	}

	w = do(t, router, http.MethodGet, location, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "No uploads yet") {
		t.Fatalf("unexpected workspace page: %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/ui/workspaces/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
