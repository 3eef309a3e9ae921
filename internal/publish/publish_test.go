package publish

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "render.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake mp4"), 0o644))
	return path
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentType("a.mp4"))
	assert.Equal(t, "video/quicktime", ContentType("a.MOV"))
	assert.Equal(t, "video/webm", ContentType("a.webm"))
	assert.Equal(t, "video/mp4", ContentType("a"))
}

func TestDirPublisher(t *testing.T) {
	dir := t.TempDir()
	p := NewDirPublisher(dir, "http://localhost:3003/output/", nil)

	link, err := p.Publish(context.Background(), writeVideo(t), "my clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3003/output/my%20clip.mp4", link)

	data, err := os.ReadFile(filepath.Join(dir, "my clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "fake mp4", string(data))
}

func TestDirPublisherMissingSource(t *testing.T) {
	p := NewDirPublisher(t.TempDir(), "http://x", nil)
	_, err := p.Publish(context.Background(), "/does/not/exist.mp4", "a.mp4")
	assert.True(t, errors.Is(err, ErrPublish))
}

func TestDirPublisherServesFileInPlace(t *testing.T) {
	dir := t.TempDir()
	rendered := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(rendered, []byte("rendered video bytes"), 0o644))
	p := NewDirPublisher(dir, "http://localhost:3003/output", nil)

	link, err := p.Publish(context.Background(), rendered, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3003/output/clip.mp4", link)

	data, err := os.ReadFile(rendered)
	require.NoError(t, err)
	assert.Equal(t, "rendered video bytes", string(data))
	assert.True(t, p.Retains(rendered))
	assert.False(t, p.Retains(writeVideo(t)))
}

type fakeDrive struct {
	mu             sync.Mutex
	uploads        int
	permissions    []map[string]interface{}
	deleted        []string
	failPermission bool
	omitLink       bool
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
		_, _ = io.Copy(io.Discard, r.Body)
		f.uploads++
		resp := map[string]interface{}{"id": "file123", "name": "out.mp4"}
		if !f.omitLink {
			resp["webViewLink"] = "https://drive.google.com/file/d/file123/view?usp=drivesdk"
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files/file123/permissions"):
		if f.failPermission {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"sharing disabled"}}`)
			return
		}
		var perm map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&perm)
		f.permissions = append(f.permissions, perm)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "anyoneWithLink"})
	case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/files/file123"):
		f.deleted = append(f.deleted, "file123")
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newDrivePublisher(t *testing.T, api *fakeDrive) *DrivePublisher {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	p, err := NewDrivePublisher(context.Background(), "folder1", nil,
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return p
}

func TestDrivePublisherUploadsAndShares(t *testing.T) {
	api := &fakeDrive{}
	p := newDrivePublisher(t, api)

	link, err := p.Publish(context.Background(), writeVideo(t), "out.mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/file123/view?usp=drivesdk", link)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 1, api.uploads)
	require.Len(t, api.permissions, 1)
	assert.Equal(t, "reader", api.permissions[0]["role"])
	assert.Equal(t, "anyone", api.permissions[0]["type"])
}

func TestDrivePublisherFallsBackToFileLink(t *testing.T) {
	p := newDrivePublisher(t, &fakeDrive{omitLink: true})

	link, err := p.Publish(context.Background(), writeVideo(t), "out.mp4")
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/file/d/file123/view", link)
}

func TestDrivePublisherShareFailureIsPublishError(t *testing.T) {
	api := &fakeDrive{failPermission: true}
	p := newDrivePublisher(t, api)

	_, err := p.Publish(context.Background(), writeVideo(t), "out.mp4")
	assert.True(t, errors.Is(err, ErrPublish))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"file123"}, api.deleted)
}

func TestNewDrivePublisherRequiresFolder(t *testing.T) {
	_, err := NewDrivePublisher(context.Background(), "", nil, option.WithoutAuthentication())
	assert.Error(t, err)
}
