package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/notice"
	"github.com/trezcool/shala/core/report"
)

type (
	// Services are the core services exposed by the API.
	Services struct {
		Attendance attendance.Service
		Report     report.Service
		Notice     notice.Service
	}

	Server struct {
		conf       *core.Config
		logger     core.Logger
		translator ut.Translator
		svcs       Services
		app        *echo.Echo
		errors     chan error
		shutdown   chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, translator ut.Translator, svcs Services) *Server {
	s := &Server{
		conf:       conf,
		logger:     logger,
		translator: translator,
		svcs:       svcs,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(s.conf))
	authed := v1.Group("", jwt, roleMiddleware(identity.RolePrincipal, identity.RoleTeacher))

	registerAttendanceAPI(authed, s.svcs.Attendance)
	registerReportAPI(authed, s.svcs.Report, s.conf.Location())
	registerNoticeAPI(authed, s.svcs.Notice)
	registerStudyMessageAPI(authed, s.svcs.Notice)
}

// Start blocks until the server stops. Listening errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
