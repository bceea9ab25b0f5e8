package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muurk/viera/internal/config"
	"github.com/muurk/viera/internal/keys"
	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/remote"
	"github.com/muurk/viera/internal/version"
)

// Source supplies the registered devices and the command table
type Source interface {
	DeviceNames() []string
	Device(name string) (*remote.Device, error)
	CommandTable() (*keys.Table, error)
}

var _ Source = (*config.Registry)(nil)

// Server is the REST front end
type Server struct {
	router *gin.Engine
	source Source
	http   *http.Server

	mu      sync.Mutex
	devices map[string]*remote.Device
}

// NewServer creates a server bound to addr. Call ListenAndServe to start it.
func NewServer(addr string, source Source) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		router:  router,
		source:  source,
		devices: make(map[string]*remote.Device),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/commands", s.listCommands)
	s.router.GET("/devices", s.listDevices)
	s.router.GET("/devices/:name", s.getDevice)
	s.router.POST("/devices/:name/commands/:command", s.sendCommand)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	logging.Info("REST API listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// device returns the cached handle for name
func (s *Server) device(name string) (*remote.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.devices[name]; ok {
		return d, nil
	}
	d, err := s.source.Device(name)
	if err != nil {
		return nil, err
	}
	s.devices[name] = d
	return d, nil
}

type deviceView struct {
	Name         string `json:"name"`
	Hostname     string `json:"hostname,omitempty"`
	ControlURL   string `json:"control_url,omitempty"`
	ServiceType  string `json:"service_type,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	Error        string `json:"error,omitempty"`
}

func newDeviceView(name string, d *remote.Device) deviceView {
	return deviceView{
		Name:         name,
		Hostname:     d.Hostname,
		ControlURL:   d.ControlURL,
		ServiceType:  d.ServiceType,
		FriendlyName: d.FriendlyName,
		ModelName:    d.ModelName,
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Full(),
	})
}

func (s *Server) listCommands(c *gin.Context) {
	table, err := s.source.CommandTable()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": table.Entries()})
}

func (s *Server) listDevices(c *gin.Context) {
	names := s.source.DeviceNames()
	views := make([]deviceView, 0, len(names))
	for _, name := range names {
		d, err := s.device(name)
		if err != nil {
			views = append(views, deviceView{Name: name, Error: err.Error()})
			continue
		}
		views = append(views, newDeviceView(name, d))
	}
	c.JSON(http.StatusOK, gin.H{"devices": views})
}

func (s *Server) getDevice(c *gin.Context) {
	name := c.Param("name")
	d, err := s.device(name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDeviceView(name, d))
}

func (s *Server) sendCommand(c *gin.Context) {
	name := c.Param("name")
	command := c.Param("command")

	var args []int
	if raw, ok := c.GetQuery("arg"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":    false,
				"error": "arg must be an integer",
			})
			return
		}
		args = append(args, n)
	}

	d, err := s.device(name)
	if err != nil {
		writeError(c, err)
		return
	}

	if _, err := d.Send(c.Request.Context(), command, args...); err != nil {
		logging.Warn("Command failed",
			zap.String("device", name),
			zap.String("command", command),
			zap.Error(err))
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"device":  name,
		"command": command,
	})
}

// statusClientClosedRequest reports a request abandoned by its client
const statusClientClosedRequest = 499

// statusFor maps an error to the response status
func statusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrDeviceNotFound), remote.IsUnknownCommand(err):
		return http.StatusNotFound
	case remote.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	}

	var e *remote.Error
	if errors.As(err, &e) {
		if e.Kind == remote.KindCanceled {
			return statusClientClosedRequest
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	body := gin.H{
		"ok":    false,
		"error": err.Error(),
	}
	var e *remote.Error
	if errors.As(err, &e) {
		body["kind"] = e.Kind.String()
	}
	c.JSON(statusFor(err), body)
}

// requestLogger logs each request through the application logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logging.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client", c.ClientIP()))
	}
}
