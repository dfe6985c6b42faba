package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"imagehost-mcp/internal/imageurl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "sk-test-123"

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	ctype  string
	body   []byte
}

// fakeAPI 记录请求并按路径返回预设内容
type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newFakeAPI(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.requests = append(api.requests, recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			ctype:  r.Header.Get("Content-Type"),
			body:   body,
		})
		api.mu.Unlock()
		r.Body = io.NopCloser(bytes.NewReader(body))
		api.handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL + "/", APIKey: testKey})
	require.NoError(t, err)
	return api, client
}

func (a *fakeAPI) last() recorded {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func (a *fakeAPI) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewClientRequiresCredential(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://api.example.com"})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://api.example.com", APIKey: "   "})
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: testKey})
	assert.Error(t, err)
}

func TestListProjects(t *testing.T) {
	api, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"projects":[{"project":"blog","displayName":"Blog"},{"project":"shop","isDefault":true}]}`)
	})

	projects, raw, err := client.ListProjects(context.Background())

	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "blog", projects[0].ID)
	assert.True(t, projects[1].IsDefault)
	assert.JSONEq(t, `{"projects":[{"project":"blog","displayName":"Blog"},{"project":"shop","isDefault":true}]}`, string(raw))

	req := api.last()
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/account/projects", req.path)
	assert.Equal(t, "Bearer "+testKey, req.auth)
	assert.Equal(t, "application/json", req.ctype)
}

func TestListProjectsBareArray(t *testing.T) {
	_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"project":"only"}]`)
	})

	projects, _, err := client.ListProjects(context.Background())

	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "only", projects[0].ID)
}

func TestCreateProject(t *testing.T) {
	api, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"project":{"project":"blog"}}`)
	})
	isDefault := true

	raw, err := client.CreateProject(context.Background(), CreateProjectRequest{
		Project:     "blog",
		DisplayName: "Blog",
		IsDefault:   &isDefault,
	})

	require.NoError(t, err)
	assert.Contains(t, string(raw), `"success":true`)

	req := api.last()
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/account/projects", req.path)
	assert.JSONEq(t, `{"project":"blog","displayName":"Blog","isDefault":true}`, string(req.body))
}

func TestCreateProjectRequiresSuccessAndProject(t *testing.T) {
	for _, body := range []string{`{"success":false,"project":{"project":"x"}}`, `{"success":true}`, `{"success":true,"project":null}`} {
		_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, body)
		})
		_, err := client.CreateProject(context.Background(), CreateProjectRequest{Project: "x", DisplayName: "X"})
		assert.Error(t, err, body)
	}
}

func TestCreateProjectValidatesBeforeRequest(t *testing.T) {
	api, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})

	_, err := client.CreateProject(context.Background(), CreateProjectRequest{DisplayName: "X"})

	assert.Error(t, err)
	assert.Equal(t, 0, api.count())
}

func TestAccountPassThroughEndpoints(t *testing.T) {
	api, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"path":"`+r.URL.Path+`"}`)
	})
	ctx := context.Background()

	raw, err := client.GetProject(ctx, "blog")
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/account/projects/blog"}`, string(raw))

	raw, err = client.GetPlanUsage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/account/plan-usage"}`, string(raw))

	raw, err = client.GetCurrentPlan(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/account/current-plan"}`, string(raw))

	_, err = client.ListImages(ctx, 5, "blog")
	require.NoError(t, err)
	req := api.last()
	assert.Equal(t, "/content/images", req.path)
	assert.Equal(t, "limit=5&projectId=blog", req.query)

	_, err = client.ListImages(ctx, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "limit=20", api.last().query)
}

func TestOneShotCallWrapsStatusAndBody(t *testing.T) {
	_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, `{"error":"quota exceeded"}`)
	})

	_, err := client.GetPlanUsage(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "quota exceeded")
	assert.Contains(t, err.Error(), "402")
}

func TestFetchStatusReturnsRawResponse(t *testing.T) {
	api, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, `{"status":"PROCESSING"}`)
	})

	resp, err := client.FetchStatus(context.Background(), "demo/happy-duck_800x600/make-it-blue.png")

	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"status":"PROCESSING"}`, string(resp.Body))
	req := api.last()
	assert.Equal(t, "/content/request-json/demo/happy-duck_800x600/make-it-blue.png", req.path)
	assert.Equal(t, "Bearer "+testKey, req.auth)
}

func TestFetchStatusTransportError(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: testKey})
	require.NoError(t, err)

	_, err = client.FetchStatus(context.Background(), "demo/a_100x100.png")

	assert.Error(t, err)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestUploadImage(t *testing.T) {
	var (
		gotProject, gotPrompt, gotFilename, gotFileType string
		gotFile                                         []byte
	)
	api, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotProject = r.FormValue("project")
		gotPrompt = r.FormValue("prompt")
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotFile, _ = io.ReadAll(f)
		gotFilename = header.Filename
		gotFileType = header.Header.Get("Content-Type")
		writeJSON(w, http.StatusOK, `{"success":true,"content":{"prompt":"holiday-snap"}}`)
	})
	local := writeFile(t, "Holiday Snap.JPEG", []byte("jpeg-data"))

	result, err := client.UploadImage(context.Background(), UploadRequest{Project: "blog", FilePath: local})

	require.NoError(t, err)
	assert.Equal(t, "blog/holiday-snap.jpg", result.UploadedPath)
	assert.Equal(t, "jpg", result.Extension)
	assert.Equal(t, "blog", gotProject)
	assert.Equal(t, "holiday-snap", gotPrompt)
	assert.Equal(t, "holiday-snap.jpg", gotFilename)
	assert.Equal(t, "image/jpeg", gotFileType)
	assert.Equal(t, []byte("jpeg-data"), gotFile)

	req := api.last()
	assert.Equal(t, "/content/upload", req.path)
	assert.Equal(t, "Bearer "+testKey, req.auth)
	assert.Contains(t, req.ctype, "multipart/form-data")
}

func TestUploadImageKeepsReturnedPath(t *testing.T) {
	_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"content":{"prompt":"blog/beach.png"}}`)
	})
	local := writeFile(t, "IMG_1.png", []byte("png"))

	result, err := client.UploadImage(context.Background(), UploadRequest{Project: "blog", FilePath: local, Prompt: "Beach"})

	require.NoError(t, err)
	assert.Equal(t, "blog/beach.png", result.UploadedPath)
}

func TestUploadImageValidatesBeforeNetwork(t *testing.T) {
	api, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"content":{"prompt":"x"}}`)
	})

	_, err := client.UploadImage(context.Background(), UploadRequest{Project: "blog", FilePath: writeFile(t, "doc.pdf", []byte("%PDF"))})
	assert.ErrorIs(t, err, imageurl.ErrUnsupportedUploadType)

	_, err = client.UploadImage(context.Background(), UploadRequest{Project: "blog", FilePath: writeFile(t, "!!!.png", []byte("png"))})
	assert.ErrorIs(t, err, imageurl.ErrEmptySlug)

	_, err = client.UploadImage(context.Background(), UploadRequest{Project: "", FilePath: writeFile(t, "a.png", []byte("png"))})
	assert.ErrorIs(t, err, imageurl.ErrEmptyProject)

	assert.Equal(t, 0, api.count())
}

func TestUploadImageRequiresSuccessAndPath(t *testing.T) {
	bodies := []string{
		`{"success":false,"content":{"prompt":"x"}}`,
		`{"success":true}`,
		`{"success":true,"content":{"prompt":""}}`,
	}
	for _, body := range bodies {
		_, client := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, body)
		})
		_, err := client.UploadImage(context.Background(), UploadRequest{Project: "blog", FilePath: writeFile(t, "a.png", []byte("png"))})
		assert.Error(t, err, body)
	}
}

func TestProjectJSONShape(t *testing.T) {
	var p Project
	require.NoError(t, json.Unmarshal([]byte(`{"project":"blog","displayName":"Blog","isDefault":true}`), &p))
	assert.Equal(t, Project{ID: "blog", DisplayName: "Blog", IsDefault: true}, p)
}

func TestNormalizeUploadedPath(t *testing.T) {
	assert.Equal(t, "blog/snap.jpg", normalizeUploadedPath("snap", "blog", "jpg"))
	assert.Equal(t, "blog/snap.jpg", normalizeUploadedPath("/blog/snap/", "blog", "jpg"))
	assert.Equal(t, "other/snap.png", normalizeUploadedPath("other/snap.png", "blog", "jpg"))
}
