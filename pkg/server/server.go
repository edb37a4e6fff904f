// Package server exposes a read-only HTTP status API for a running
// capture driver. It never writes to the driver, so it needs no
// synchronization beyond what the driver's own accessors provide.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"cam-streamd/pkg/capture"
	"cam-streamd/pkg/utils"
	"cam-streamd/pkg/utils/ps"
)

type Server struct {
	driver  *capture.Driver
	logger  *zap.SugaredLogger
	session string
	started time.Time

	srv *http.Server
}

func New(driver *capture.Driver, port int, logger *zap.SugaredLogger) *Server {
	s := &Server{
		driver:  driver,
		logger:  logger,
		session: uuid.NewString(),
		started: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})

	apiRouter := r.Group("/api")
	apiRouter.GET("/status", s.getStatus)
	apiRouter.GET("/controls", s.getControls)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("status server: %s", err)
		}
	}()
	s.logger.Infof("status server listening on %s", s.srv.Addr)
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Errorf("status server shutdown: %s", err)
	}
}

type statusReport struct {
	Session string `json:"session"`
	Uptime  string `json:"uptime"`

	State  string `json:"state"`
	Stream string `json:"stream"`

	Frames      capture.Stats `json:"frames"`
	MappedBytes string        `json:"mappedBytes"`

	CPU    *ps.CPU    `json:"cpu,omitempty"`
	Memory *ps.Memory `json:"memory,omitempty"`
}

func (s *Server) getStatus(c *gin.Context) {
	report := statusReport{
		Session:     s.session,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		State:       s.driver.State().String(),
		Stream:      s.driver.StreamConfig().String(),
		Frames:      s.driver.Stats(),
		MappedBytes: humanize.IBytes(uint64(s.driver.MappedBytes())),
	}

	if cpu, err := ps.CPUStatus(); err == nil {
		report.CPU = &cpu
	}
	if memory, err := ps.MemoryStatus(); err == nil {
		report.Memory = &memory
	}

	c.JSON(http.StatusOK, jsend.Success(report))
}

type controlReport struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Min    string `json:"min"`
	Max    string `json:"max"`
	Def    string `json:"def"`
	Extent int    `json:"extent"`

	Staged string `json:"staged,omitempty"`
}

func (s *Server) getControls(c *gin.Context) {
	specs := s.driver.DeclaredControls()
	staged := s.driver.StagedControls()

	reports := make([]controlReport, 0, len(specs))
	for name, spec := range specs {
		r := controlReport{
			Name:   name,
			Type:   spec.Type.String(),
			Min:    spec.Min.String(),
			Max:    spec.Max.String(),
			Def:    spec.Def.String(),
			Extent: spec.Extent,
		}
		if val, ok := staged[name]; ok {
			r.Staged = val.String()
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Name < reports[j].Name })

	c.JSON(http.StatusOK, jsend.Success(reports))
}
