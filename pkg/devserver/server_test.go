// Test Type: Integration Test
// Description: Tests for the development server and its live reload channel

package devserver_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arthur-debert/sfcbuild/pkg/devserver"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/metrics"
	"github.com/arthur-debert/sfcbuild/pkg/watch"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*devserver.Server, *httptest.Server) {
	t.Helper()
	fs := filesystem.NewMemory()
	for rel, content := range map[string]string{
		"index.html":                  "<html><head></head><body><div id=\"app\"></div></body></html>",
		"main.js":                     "console.log(1)",
		"vendor/pdfjs-dist/pdf.mjs":   "export {}",
		"pdfjs-dist/cmaps/78-H.bcmap": "\x00\x01",
	} {
		require.NoError(t, afero.WriteFile(fs, "/proj/dist/"+rel, []byte(content), 0644))
	}
	collector := metrics.New()
	collector.AssetsCopied(1)
	s := devserver.New(devserver.Options{FS: fs, Dir: "/proj/dist", Metrics: collector})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServeFiles(t *testing.T) {
	_, ts := newServer(t)

	t.Run("index_gets_reload_script", func(t *testing.T) {
		for _, p := range []string{"/", "/index.html"} {
			resp, body := get(t, ts.URL+p)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, body, devserver.ReloadPath)
			assert.Less(t, strings.Index(body, devserver.ReloadPath), strings.Index(body, "</body>"))
			assert.Contains(t, resp.Header.Get("Cache-Control"), "no-cache")
		}
	})

	t.Run("modules_and_assets", func(t *testing.T) {
		resp, body := get(t, ts.URL+"/vendor/pdfjs-dist/pdf.mjs")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "export {}", body)
		assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))

		_, body = get(t, ts.URL+"/pdfjs-dist/cmaps/78-H.bcmap")
		assert.Equal(t, "\x00\x01", body)
	})

	t.Run("not_found", func(t *testing.T) {
		for _, p := range []string{"/missing.js", "/vendor/", "/../../etc/passwd"} {
			resp, _ := get(t, ts.URL+p)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, body := get(t, ts.URL+"/metrics")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "sfcbuild_assets_copied_total 1")
	})
}

func TestLiveReload(t *testing.T) {
	s, ts := newServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + devserver.ReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()
	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	s.Notify(watch.Event{Paths: []string{"/proj/src/App.vue"}})
	var msg devserver.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, devserver.Message{Type: devserver.MessageReload, Changed: []string{"/proj/src/App.vue"}}, msg)

	s.Notify(watch.Event{Err: errors.New("src/App.vue:3:1: unexpected token")})
	msg = devserver.Message{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, devserver.MessageError, msg.Type)
	assert.Contains(t, msg.Message, "unexpected token")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
