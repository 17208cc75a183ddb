// Package devserver serves an output directory during development and
// pushes reload events to open pages over a websocket.
package devserver

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arthur-debert/sfcbuild/pkg/errors"
	"github.com/arthur-debert/sfcbuild/pkg/filesystem"
	"github.com/arthur-debert/sfcbuild/pkg/logging"
	"github.com/arthur-debert/sfcbuild/pkg/metrics"
	"github.com/arthur-debert/sfcbuild/pkg/watch"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ReloadPath is the websocket endpoint pages connect to
const ReloadPath = "/__reload"

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

// reloadScript is injected into served documents only, never into the bundle
const reloadScript = `<script>(function () {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "` + ReloadPath + `");
  ws.onmessage = function (e) {
    var msg = JSON.parse(e.data);
    if (msg.type === "reload") { location.reload(); }
    if (msg.type === "error") { console.error("[sfcbuild] " + msg.message); }
  };
})();</script>
`

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Message is pushed to every connected page
type Message struct {
	Type    string   `json:"type"`
	Message string   `json:"message,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Message types
const (
	MessageReload = "reload"
	MessageError  = "error"
)

// Options configures a Server
type Options struct {
	FS afero.Fs

	// Dir is the absolute output directory
	Dir string

	Metrics *metrics.Collector
}

// Server serves a bundle with live reload
type Server struct {
	fs      afero.Fs
	dir     string
	metrics *metrics.Collector
	logger  zerolog.Logger

	mu      sync.Mutex
	clients map[chan Message]struct{}
}

// New creates a server; nothing listens until ListenAndServe
func New(opts Options) *Server {
	fs := opts.FS
	if fs == nil {
		fs = filesystem.NewOS()
	}
	return &Server{
		fs:      fs,
		dir:     opts.Dir,
		metrics: opts.Metrics,
		logger:  logging.GetLogger("devserver"),
		clients: make(map[chan Message]struct{}),
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(s.logRequests)

	r.Get(ReloadPath, s.serveReload)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/*", s.serveFile)
	return r
}

// ListenAndServe serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("Dev server shutdown")
		}
	}()

	s.logger.Info().Str("addr", addr).Str("dir", s.dir).Msg("Dev server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, errors.ErrServe, "dev server on %s failed", addr)
	}
	return nil
}

// Notify turns a rebuild into a message for every connected page
func (s *Server) Notify(ev watch.Event) {
	if ev.Err != nil {
		s.Broadcast(Message{Type: MessageError, Message: ev.Err.Error()})
		return
	}
	s.Broadcast(Message{Type: MessageReload, Changed: ev.Paths})
}

// Broadcast sends msg to every client. Slow clients miss messages rather
// than block the build.
func (s *Server) Broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- msg:
		default:
			s.logger.Debug().Msg("Dropping message for slow client")
		}
	}
}

// Clients returns the number of connected pages
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) subscribe() chan Message {
	ch := make(chan Message, 8)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan Message) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *Server) serveReload(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	// pages never send anything; reading only detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if rel == "" || strings.HasSuffix(r.URL.Path, "/") {
		rel = path.Join(rel, "index.html")
	}
	abs := filepath.Join(s.dir, filepath.FromSlash(rel))

	info, err := s.fs.Stat(abs)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if path.Ext(rel) == ".html" {
		doc, err := afero.ReadFile(s.fs, abs)
		if err != nil {
			http.Error(w, "cannot read "+rel, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(injectReload(doc))
		return
	}

	f, err := s.fs.Open(abs)
	if err != nil {
		http.Error(w, "cannot open "+rel, http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = f.Close()
	}()
	if ext := path.Ext(rel); ext == ".mjs" || ext == ".js" {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	}
	http.ServeContent(w, r, rel, info.ModTime(), f)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

func injectReload(doc []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(doc), []byte("</body>"))
	if i < 0 {
		return append(doc, reloadScript...)
	}
	out := make([]byte, 0, len(doc)+len(reloadScript))
	out = append(out, doc[:i]...)
	out = append(out, reloadScript...)
	return append(out, doc[i:]...)
}
