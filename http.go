package hookrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raphi011/hookrun/internal/html"
	"github.com/raphi011/hookrun/internal/model"
	"github.com/raphi011/hookrun/internal/storage"
	"github.com/robfig/cron/v3"
)

type MalformedRequestError struct {
	param string
}

func (e MalformedRequestError) Error() string {
	return "malformed request param: " + e.param
}

// Server runs the registered modules on request or on a schedule and
// keeps the history of all runs.
type Server struct {
	session *Session
	storage *storage.Storage
	port    int
	cron    *cron.Cron

	// runs share the session and are executed one at a time
	runMu sync.Mutex

	log *slog.Logger
}

// NewServer opens the run history in dbFilename. An empty filename keeps
// the history in memory.
func (s *Session) NewServer(dbFilename string, port int) (*Server, error) {
	store, err := storage.New(dbFilename, s.log)
	if err != nil {
		return nil, err
	}

	return &Server{
		session: s,
		storage: store,
		port:    port,
		cron:    cron.New(cron.WithSeconds()),
		log:     s.log.With("component", "server"),
	}, nil
}

func (srv *Server) Close() error {
	return srv.storage.Close()
}

// Handler returns the http routes of the server.
func (srv *Server) Handler() http.Handler {
	router := httprouter.New()

	router.GET("/runs", srv.ListRuns)
	router.POST("/runs", srv.StartRun)
	router.GET("/runs/:run-id", srv.GetRun)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}

// Serve starts the scheduled runs and serves http until ctx is done.
func (srv *Server) Serve(ctx context.Context) error {
	srv.cron.Start()
	defer srv.cron.Stop()

	httpServer := &http.Server{
		Addr:              "localhost:" + strconv.Itoa(srv.port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)

	go func() {
		srv.log.Info("serving test runs", "addr", httpServer.Addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	}
}

// Run executes all registered modules once and stores the run.
func (srv *Server) Run(ctx context.Context, triggeredBy string) (RunRecord, error) {
	srv.runMu.Lock()
	defer srv.runMu.Unlock()

	runner := srv.session.NewRunner()
	runner.Stream = io.Discard
	runner.TriggeredBy = triggeredBy

	start := time.Now()
	result := runner.Run(srv.session.Loader().LoadAll())
	end := time.Now()

	record := NewRunRecord(uuid.NewString(), triggeredBy, result, start, end)

	if err := srv.storage.SaveRun(ctx, record); err != nil {
		return RunRecord{}, fmt.Errorf("storing run: %w", err)
	}

	srv.log.Info("test run finished", "run", record.ID, "triggeredBy", triggeredBy, "successful", record.Successful)

	return record, nil
}

func (srv *Server) httpError(w http.ResponseWriter, err error) {
	var notFound model.NotFoundError
	var malformedRequest MalformedRequestError

	if errors.As(err, &notFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	} else if errors.As(err, &malformedRequest) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	srv.log.Error("request failed", "error", err)

	w.WriteHeader(http.StatusInternalServerError)
}

func (srv *Server) StartRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	record, err := srv.Run(r.Context(), "http")
	if err != nil {
		srv.httpError(w, err)
		return
	}

	srv.writeJSON(w, http.StatusCreated, record)
}

func (srv *Server) ListRuns(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	runs, err := srv.storage.LoadRuns(r.Context())
	if err != nil {
		srv.httpError(w, err)
		return
	}

	if wantsHTML(r) {
		srv.writeHTML(w, func(w io.Writer) error { return html.RenderRuns(runs, w) })
		return
	}

	srv.writeJSON(w, http.StatusOK, runs)
}

func (srv *Server) GetRun(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	runID := p.ByName("run-id")
	if _, err := uuid.Parse(runID); err != nil {
		srv.httpError(w, MalformedRequestError{param: "run-id"})
		return
	}

	run, err := srv.storage.LoadRun(r.Context(), runID)
	if err != nil {
		srv.httpError(w, err)
		return
	}

	if wantsHTML(r) {
		srv.writeHTML(w, func(w io.Writer) error { return html.RenderRun(run, w) })
		return
	}

	srv.writeJSON(w, http.StatusOK, run)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (srv *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err = w.Write(b); err != nil {
		srv.log.Warn("error writing body", "error", err)
	}
}

func (srv *Server) writeHTML(w http.ResponseWriter, render func(io.Writer) error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := render(w); err != nil {
		srv.log.Warn("error rendering html", "error", err)
	}
}
