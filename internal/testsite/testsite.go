// Package testsite serves a local replica of the practice form so suites can
// run without network access.
package testsite

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// FormPath is where the form is served.
const FormPath = "/form-fields/"

// Tools lists the automation tools the replica shows, in page order.
var Tools = []string{"Selenium", "Playwright", "Cypress", "Appium", "Katalon Studio"}

//go:embed static/form-fields.html
var content embed.FS

// Handler returns the site's routes.
func Handler() http.Handler {
	page, err := fs.ReadFile(content, "static/form-fields.html")
	if err != nil {
		// The file is embedded at build time.
		panic(fmt.Sprintf("testsite: embedded form missing: %v", err))
	}

	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, FormPath, http.StatusFound)
	})
	r.Get(FormPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
	return r
}

// Server is a running replica bound to a loopback port.
type Server struct {
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
	done     chan struct{}
}

// Start serves the replica on 127.0.0.1 with an ephemeral port.
func Start(logger *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for test site: %w", err)
	}

	s := &Server{
		srv: &http.Server{
			Handler:           Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logger.Named("testsite"),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Test site stopped unexpectedly.", zap.Error(err))
		}
	}()

	s.logger.Info("Test site listening.", zap.String("url", s.FormURL()))
	return s, nil
}

// URL returns the base URL.
func (s *Server) URL() string { return "http://" + s.listener.Addr().String() }

// FormURL returns the URL of the form page.
func (s *Server) FormURL() string { return s.URL() + FormPath }

// Close stops the server and waits for the serve loop to exit.
func (s *Server) Close(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
