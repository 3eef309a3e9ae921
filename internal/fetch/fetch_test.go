package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFileID(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "file share link", ref: "https://drive.google.com/file/d/1AbC_d-9/view?usp=sharing", want: "1AbC_d-9"},
		{name: "folder link", ref: "https://drive.google.com/drive/folders/F0lder_1", want: "F0lder_1"},
		{name: "open id", ref: "https://drive.google.com/open?id=XyZ123", want: "XyZ123"},
		{name: "uc link", ref: "https://drive.google.com/uc?export=download&id=Q-w_e", want: "Q-w_e"},
		{name: "docs d path", ref: "https://docs.google.com/d/DocId42/edit", want: "DocId42"},
		{name: "bare id", ref: "  bareId_123  ", want: "bareId_123"},
		{name: "escaped link", ref: "https%3A%2F%2Fdrive.google.com%2Ffile%2Fd%2Fesc123%2Fview", want: "esc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveFileID(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveFileIDUnresolvable(t *testing.T) {
	for _, ref := range []string{"", "https://example.com/some/image.jpg", "not an id!"} {
		_, err := ResolveFileID(ref)
		assert.True(t, errors.Is(err, ErrUnresolvable), "ref %q", ref)
	}
}

func newDriveServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var confirmHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/uc", func(w http.ResponseWriter, r *http.Request) {
		confirmed := r.URL.Query().Get("confirm") == "t"
		if confirmed {
			atomic.AddInt32(&confirmHits, 1)
		}
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))

		switch r.URL.Query().Get("id") {
		case "small":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "large":
			if !confirmed {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte("<html>virus scan warning</html>"))
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Disposition", `attachment; filename="song.mp3"`)
			_, _ = w.Write([]byte("mp3-bytes"))
		case "forbidden-then-ok":
			if !confirmed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte("mp4-bytes"))
		case "private":
			w.WriteHeader(http.StatusForbidden)
		case "always-html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>sign in</html>"))
		case "attachment-no-name":
			w.Header().Set("Content-Type", "video/webm")
			w.Header().Set("Content-Disposition", "attachment")
			_, _ = w.Write([]byte("webm-bytes"))
		case "unknown-type":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte("raw"))
		case "slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &confirmHits
}

func TestFetchDirectDownload(t *testing.T) {
	srv, confirmHits := newDriveServer(t)
	f := New(WithBaseURL(srv.URL))
	dir := t.TempDir()

	asset, err := f.Fetch(context.Background(), Request{Ref: "https://drive.google.com/file/d/small/view", Dir: dir, Name: "row_image", DefaultExt: ".jpg"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "row_image.png"), asset.Path)
	assert.EqualValues(t, len("png-bytes"), asset.Size)
	assert.Zero(t, atomic.LoadInt32(confirmHits))

	data, err := os.ReadFile(asset.Path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestFetchRetriesWithConfirmOnHTML(t *testing.T) {
	srv, confirmHits := newDriveServer(t)
	f := New(WithBaseURL(srv.URL))

	asset, err := f.Fetch(context.Background(), Request{Ref: "large", Dir: t.TempDir(), Name: "row_audio", DefaultExt: ".mp3"})
	require.NoError(t, err)
	assert.Equal(t, "song.mp3", asset.FileName)
	assert.Equal(t, ".mp3", filepath.Ext(asset.Path))
	assert.EqualValues(t, 1, atomic.LoadInt32(confirmHits))
}

func TestFetchRetriesWithConfirmOnForbidden(t *testing.T) {
	srv, confirmHits := newDriveServer(t)
	f := New(WithBaseURL(srv.URL))

	asset, err := f.Fetch(context.Background(), Request{Ref: "id=forbidden-then-ok", Dir: t.TempDir(), Name: "row_video", DefaultExt: ".mov"})
	require.NoError(t, err)
	assert.Equal(t, ".mp4", filepath.Ext(asset.Path))
	assert.EqualValues(t, 1, atomic.LoadInt32(confirmHits))
}

func TestFetchFallsBackToDefaultExtension(t *testing.T) {
	srv, _ := newDriveServer(t)
	f := New(WithBaseURL(srv.URL))

	asset, err := f.Fetch(context.Background(), Request{Ref: "unknown-type", Dir: t.TempDir(), Name: "x", DefaultExt: ".jpg"})
	require.NoError(t, err)
	assert.Equal(t, "x.jpg", filepath.Base(asset.Path))
}

func TestFetchWithoutRemoteFileNameUsesStoredName(t *testing.T) {
	srv, _ := newDriveServer(t)
	f := New(WithBaseURL(srv.URL))

	asset, err := f.Fetch(context.Background(), Request{Ref: "attachment-no-name", Dir: t.TempDir(), Name: "row_video", DefaultExt: ".mp4"})
	require.NoError(t, err)
	assert.Equal(t, "row_video.webm", asset.FileName)
	assert.Equal(t, filepath.Base(asset.Path), asset.FileName)
}

func TestFetchErrorTaxonomy(t *testing.T) {
	srv, _ := newDriveServer(t)
	f := New(WithBaseURL(srv.URL), WithTimeout(100*time.Millisecond))

	tests := []struct {
		ref  string
		want error
	}{
		{ref: "missing", want: ErrNotFound},
		{ref: "private", want: ErrAccessDenied},
		{ref: "always-html", want: ErrAccessDenied},
		{ref: "https://example.com/a.jpg", want: ErrUnresolvable},
		{ref: "slow", want: ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			dir := t.TempDir()
			_, err := f.Fetch(context.Background(), Request{Ref: tt.ref, Dir: dir, Name: "out", DefaultExt: ".bin"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			entries, readErr := os.ReadDir(dir)
			require.NoError(t, readErr)
			assert.Empty(t, entries, "failed downloads leave no files behind")
		})
	}
}

func TestFetchManyAllowsPartialSuccess(t *testing.T) {
	srv, _ := newDriveServer(t)
	f := New(WithBaseURL(srv.URL), WithConcurrency(2))
	dir := t.TempDir()

	results := f.FetchMany(context.Background(), []Request{
		{Ref: "small", Dir: dir, Name: "a", DefaultExt: ".jpg"},
		{Ref: "missing", Dir: dir, Name: "b", DefaultExt: ".mp4"},
		{Ref: "large", Dir: dir, Name: "c", DefaultExt: ".mp3"},
		{Ref: "private", Dir: dir, Name: "d", DefaultExt: ".mp3"},
	})

	assert.False(t, results.OK())
	require.Len(t, results.Succeeded, 2)
	require.Len(t, results.Failed, 2)
	assert.Equal(t, "small", results.Succeeded[0].Ref)
	assert.Equal(t, "large", results.Succeeded[1].Ref)
	assert.Equal(t, "missing", results.Failed[0].Ref)
	assert.True(t, errors.Is(results.Failed[0].Err, ErrNotFound))
	assert.True(t, errors.Is(results.Failed[1].Err, ErrAccessDenied))
}

func TestFetchManyEmpty(t *testing.T) {
	results := New().FetchMany(context.Background(), nil)
	assert.True(t, results.OK())
	assert.Empty(t, results.Succeeded)
}
