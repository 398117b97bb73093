// Package archiver collects the results of extraction runs on a central
// host. Runs on analysis machines upload their scripts and run report
// through a RemoteStorage to a Server.
package archiver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/targodan/go-errors"
)

// MaxUploadSize is the maximum size of a single uploaded file.
const MaxUploadSize = 64 * 1024 * 1024

func handleError(c *gin.Context, status int, err error) bool {
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return true
	}
	return false
}

func sendOkay(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"error": nil})
}

// Server receives uploaded runs. Files of a run are collected in a hidden
// directory, which is renamed to the run ID once the run is closed.
type Server struct {
	router *gin.Engine
	server *http.Server
	outdir string

	runsMux  sync.RWMutex
	openRuns map[string]*runHandler
}

func NewServer(outdir string) *Server {
	router := gin.Default()

	s := &Server{
		router:   router,
		server:   &http.Server{Handler: router},
		outdir:   outdir,
		openRuns: make(map[string]*runHandler),
	}

	v1 := router.Group("/v1")
	v1.POST("/run", s.createRun)
	v1.PUT("/run/:run", s.closeRun)
	v1.PUT("/run/:run/*filepath", s.storeFile)

	return s
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and blocks until the server is shut down.
func (s *Server) Start(addr string) error {
	s.server.Addr = addr
	logrus.WithField("address", addr).Info("Archiver server listening.")
	return s.server.ListenAndServe()
}

// Shutdown stops the server and closes all open runs.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)

	s.runsMux.Lock()
	defer s.runsMux.Unlock()
	for id, run := range s.openRuns {
		err = errors.NewMultiError(err, run.Close())
		delete(s.openRuns, id)
	}
	return err
}

type CreateRunRequest struct {
	Name string `json:"name"`
}

func (s *Server) createRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := uuid.New().String()
	run, err := newRunHandler(s.outdir, runID)
	if handleError(c, http.StatusInternalServerError, err) {
		return
	}

	s.runsMux.Lock()
	s.openRuns[runID] = run
	s.runsMux.Unlock()

	logrus.WithFields(logrus.Fields{
		"runID": runID,
		"name":  req.Name,
	}).Info("Run created.")

	c.JSON(http.StatusOK, gin.H{
		"error": nil,
		"runID": runID,
	})
}

func (s *Server) getRun(runID string) (*runHandler, error) {
	s.runsMux.RLock()
	defer s.runsMux.RUnlock()

	run, exists := s.openRuns[runID]
	if !exists {
		return nil, fmt.Errorf("run with ID '%s' does not exist", runID)
	}
	return run, nil
}

func (s *Server) closeRun(c *gin.Context) {
	runID := c.Param("run")

	s.runsMux.Lock()
	run, exists := s.openRuns[runID]
	delete(s.openRuns, runID)
	s.runsMux.Unlock()

	if !exists {
		handleError(c, http.StatusNotFound, fmt.Errorf("run with ID '%s' does not exist", runID))
		return
	}
	if handleError(c, http.StatusInternalServerError, run.Close()) {
		return
	}
	logrus.WithField("runID", runID).Info("Run closed.")
	sendOkay(c)
}

func (s *Server) storeFile(c *gin.Context) {
	run, err := s.getRun(c.Param("run"))
	if handleError(c, http.StatusNotFound, err) {
		return
	}

	name, err := sanitizeFilename(c.Param("filepath"))
	if handleError(c, http.StatusBadRequest, err) {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
	data, err := c.GetRawData()
	if handleError(c, http.StatusBadRequest, err) {
		return
	}

	err = run.WriteFile(name, data)
	if handleError(c, http.StatusInternalServerError, err) {
		return
	}
	sendOkay(c)
}

// sanitizeFilename accepts plain file names only.
func sanitizeFilename(p string) (string, error) {
	name := strings.TrimPrefix(p, "/")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid file name '%s'", name)
	}
	return name, nil
}

type runHandler struct {
	mux     sync.Mutex
	swpDir  string
	doneDir string
	closed  bool
}

func newRunHandler(outdir, runID string) (*runHandler, error) {
	h := &runHandler{
		swpDir:  filepath.Join(outdir, "."+runID+".swp"),
		doneDir: filepath.Join(outdir, runID),
	}
	err := os.MkdirAll(h.swpDir, 0750)
	if err != nil {
		return nil, errors.Errorf("could not create run directory, reason: %w", err)
	}
	return h, nil
}

func (h *runHandler) WriteFile(name string, data []byte) error {
	h.mux.Lock()
	defer h.mux.Unlock()

	if h.closed {
		return errors.New("run is already closed")
	}
	return os.WriteFile(filepath.Join(h.swpDir, name), data, 0640)
}

func (h *runHandler) Close() error {
	h.mux.Lock()
	defer h.mux.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return os.Rename(h.swpDir, h.doneDir)
}
