// Package server exposes the engine's session manager over the thin
// HTTP surface of spec §6: POST /infer (chunked ndjson stream), POST
// /fork, POST /drop — shown for completeness, same status as the
// request-framing contract in spec §6, which is explicitly out of scope
// as a protocol (spec §1).
//
// Grounded on gin usage across the teacher's server/routes.go (router
// setup, CORS middleware; no host checking is installed here) and runner/ollamarunner/runner_handlers.go's completion handler
// (chunked Transfer-Encoding, flush-per-fragment streaming); the ndjson
// per-chunk framing follows server/routes_misc.go's streamResponse
// helper.
package server

import (
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/larchlabs/forge/api"
	"github.com/larchlabs/forge/session"
)

// Server wires a session.Registry to a gin.Engine.
type Server struct {
	registry *session.Registry
	engine   *gin.Engine
}

// New builds a Server whose router is ready to serve; call Run (or use
// Handler for tests) to start it.
func New(registry *session.Registry, allowedOrigins []string) *Server {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	s := &Server{registry: registry, engine: r}

	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "forge is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "forge is running") })

	r.POST("/infer", s.handleInfer)
	r.POST("/fork", s.handleFork)
	r.POST("/drop", s.handleDrop)

	return s
}

// Handler returns the underlying http.Handler, for use with
// httptest.NewServer or net/http.Server directly.
func (s *Server) Handler() http.Handler { return s.engine }

// Run starts listening on addr, blocking until the listener errors.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleInfer(c *gin.Context) {
	var req api.InferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	messages := make([]session.Message, len(req.Inputs))
	for i, m := range req.Inputs {
		messages[i] = session.Message{Role: m.Role, Content: m.Content}
	}

	ch, skipped, err := s.registry.Infer(c.Request.Context(), req.SessionID, req.DialogPos, messages, session.SampleOverrides{
		Temperature: req.Temperature,
		TopK:        req.TopK,
		TopP:        req.TopP,
	})
	if err != nil {
		writeSessionError(c, err)
		return
	}

	if skipped {
		c.JSON(http.StatusOK, api.Fragment{Done: true, Skipped: true})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")

	c.Stream(func(w io.Writer) bool {
		frag, ok := <-ch
		if !ok {
			writeFragmentJSONTo(w, api.Fragment{Done: true})
			return false
		}
		writeFragmentJSONTo(w, api.Fragment{Content: frag})
		return true
	})
}

func (s *Server) handleFork(c *gin.Context) {
	var req api.ForkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.registry.Fork(req.SessionID, req.NewSessionID); err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleDrop(c *gin.Context) {
	var req api.DropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.registry.Drop(req.SessionID); err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
