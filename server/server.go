// Package server exposes the toolchain over HTTP and the Language Server
// Protocol.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tliron/commonlog"

	"github.com/chazu/mlbf/compiler"
	"github.com/chazu/mlbf/pkg/optimizer"
	"github.com/chazu/mlbf/store"
	"github.com/chazu/mlbf/vm"
)

var log = commonlog.GetLogger("mlbf.server")

const (
	// DefaultMaxOutput caps a run's output when Config.MaxOutput is zero.
	DefaultMaxOutput = 1 << 20

	minSweepInterval = time.Second
)

// ErrOutputLimit is returned by a run whose output outgrew Config.MaxOutput.
var ErrOutputLimit = errors.New("output limit exceeded")

// Config configures an HTTPServer.
type Config struct {
	Addr       string
	RunTimeout time.Duration // per-run limit, zero means none
	ProgramTTL time.Duration // idle programs are dropped after this long
	Level      int           // default optimization level
	Passes     []string
	TapeSize   int
	EOF        vm.EOFPolicy
	MaxOutput  int // bytes per run, DefaultMaxOutput when zero
}

// ServerOption configures an HTTPServer.
type ServerOption func(*HTTPServer)

// WithCache makes the server consult and fill a compile cache.
func WithCache(c *store.Store) ServerOption {
	return func(s *HTTPServer) { s.cache = c }
}

// HTTPServer is the compile-and-run playground.
type HTTPServer struct {
	Config

	programs *ProgramStore
	cache    *store.Store
	echo     *echo.Echo

	stopSweeper func()
}

// New creates an HTTPServer and starts its program sweeper.
func New(cfg Config, opts ...ServerOption) *HTTPServer {
	s := &HTTPServer{
		Config:   cfg,
		programs: NewProgramStore(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.POST("/programs", s.handleCompile)
	e.GET("/programs/:id/dump", s.handleDump)
	e.POST("/programs/:id/run", s.handleRun)
	e.DELETE("/programs/:id", s.handleRelease)
	s.echo = e

	if cfg.ProgramTTL > 0 {
		interval := max(cfg.ProgramTTL/4, minSweepInterval)
		s.stopSweeper = s.programs.StartSweeper(interval, cfg.ProgramTTL)
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Programs returns the server's program store.
func (s *HTTPServer) Programs() *ProgramStore {
	return s.programs
}

// Start listens on the configured address. Blocks until the server stops.
func (s *HTTPServer) Start() error {
	log.Noticef("playground listening on %s", s.Addr)
	err := s.echo.Start(s.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	return s.echo.Shutdown(ctx)
}

type compileRequest struct {
	Source string `json:"source"`
	Level  *int   `json:"level"`
}

type compileResponse struct {
	ID           string         `json:"id"`
	Instructions int            `json:"instructions"`
	Cached       bool           `json:"cached"`
	Stats        *statsResponse `json:"stats,omitempty"`
}

type statsResponse struct {
	Before  int            `json:"before"`
	After   int            `json:"after"`
	Applied map[string]int `json:"applied"`
}

type runRequest struct {
	Input string `json:"input"`
}

type runResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

func errorJSON(ectx echo.Context, code int, err error) error {
	return ectx.JSON(code, map[string]any{"error": err.Error()})
}

func (s *HTTPServer) handleCompile(ectx echo.Context) error {
	var req compileRequest
	if err := ectx.Bind(&req); err != nil {
		return errorJSON(ectx, http.StatusBadRequest, err)
	}

	level := s.Level
	if req.Level != nil {
		level = *req.Level
	}
	if level < 0 || level > 1 {
		return errorJSON(ectx, http.StatusBadRequest, errors.New("level must be 0 or 1"))
	}

	b, err := store.Compile(s.cache, req.Source, optimizer.Options{Level: level, Passes: s.Passes})
	if err != nil {
		var cerr *compiler.Error
		if errors.As(err, &cerr) {
			return ectx.JSON(http.StatusUnprocessableEntity, map[string]any{
				"error":  cerr.Err.Error(),
				"line":   cerr.Pos.Line,
				"column": cerr.Pos.Column,
			})
		}
		return errorJSON(ectx, http.StatusInternalServerError, err)
	}

	id := s.programs.Create(b.Program)
	resp := compileResponse{
		ID:           id,
		Instructions: b.Program.RealLen(),
		Cached:       b.Cached,
	}
	if b.Stats != nil {
		resp.Stats = &statsResponse{Before: b.Stats.Before, After: b.Stats.After, Applied: b.Stats.Applied}
	}
	log.Infof("compiled program %s (%d instructions)", id, resp.Instructions)
	return ectx.JSON(http.StatusCreated, resp)
}

func (s *HTTPServer) handleDump(ectx echo.Context) error {
	id := ectx.Param("id")
	p, done, ok := s.programs.Acquire(id)
	if !ok {
		return errorJSON(ectx, http.StatusNotFound, errUnknownProgram(id))
	}
	defer done()
	return ectx.String(http.StatusOK, p.Disassemble())
}

func (s *HTTPServer) handleRun(ectx echo.Context) error {
	id := ectx.Param("id")
	p, done, ok := s.programs.Acquire(id)
	if !ok {
		return errorJSON(ectx, http.StatusNotFound, errUnknownProgram(id))
	}
	defer done()

	var req runRequest
	if err := ectx.Bind(&req); err != nil {
		return errorJSON(ectx, http.StatusBadRequest, err)
	}

	ctx := ectx.Request().Context()
	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
		defer cancel()
	}

	limit := s.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}
	out := &limitedBuffer{limit: limit}
	m := vm.New(strings.NewReader(req.Input), out, vm.Options{TapeSize: s.TapeSize, EOF: s.EOF})
	if err := m.Run(ctx, p); err != nil {
		code := http.StatusUnprocessableEntity
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusRequestTimeout
		}
		log.Infof("run %s: %s", id, err)
		return ectx.JSON(code, runResponse{Output: out.String(), Error: err.Error()})
	}
	return ectx.JSON(http.StatusOK, runResponse{Output: out.String()})
}

func (s *HTTPServer) handleRelease(ectx echo.Context) error {
	id := ectx.Param("id")
	if !s.programs.Release(id) {
		return errorJSON(ectx, http.StatusNotFound, errUnknownProgram(id))
	}
	return ectx.NoContent(http.StatusNoContent)
}

func errUnknownProgram(id string) error {
	return fmt.Errorf("unknown program %q", id)
}

// limitedBuffer keeps at most limit bytes and fails writes past it.
type limitedBuffer struct {
	bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Len()
	if len(p) <= room {
		return b.Buffer.Write(p)
	}
	n, _ := b.Buffer.Write(p[:max(room, 0)])
	return n, ErrOutputLimit
}
