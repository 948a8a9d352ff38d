package dig_container

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shala/apps/api/echo"
	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/notice"
	"github.com/trezcool/shala/core/notify"
	"github.com/trezcool/shala/core/report"
	logsvc "github.com/trezcool/shala/services/logger"
	metricsvc "github.com/trezcool/shala/services/metrics"
	notifysvc "github.com/trezcool/shala/services/notify"
	"github.com/trezcool/shala/storage/database"
	sqlxrepos "github.com/trezcool/shala/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type NotifyLoggerParam struct {
	dig.In
	Logger core.Logger `name:"notifyLogger"`
}

func newRollbarLogger(conf *core.Config, prefix string, flags int) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, prefix, flags), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "API : ", log.LstdFlags)
}

func newDBLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func newNotifyLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "NOTIFY : ", log.LstdFlags|log.Lmicroseconds)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, sqlxrepos.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newMetrics(conf *core.Config) *metricsvc.Metrics {
	return metricsvc.New(strings.ToLower(conf.AppName))
}

func newSink(loggerParam NotifyLoggerParam, conf *core.Config, metrics *metricsvc.Metrics) (notify.Sink, error) {
	sink, err := notifysvc.NewSink(loggerParam.Logger, conf)
	if err != nil {
		return nil, err
	}
	return metrics.InstrumentSink(sink), nil
}

// newEventBus dispatches every event to the sink, and counts it.
func newEventBus(
	loggerParam NotifyLoggerParam,
	conf *core.Config,
	composer *notify.Composer,
	sink notify.Sink,
	metrics *metricsvc.Metrics,
) *notify.EventBus {
	return notify.NewEventBus(
		loggerParam.Logger,
		conf.Notify.Timeout,
		metrics.EventHandler(),
		notify.SinkHandler(composer, sink),
	)
}

func newDispatcher(bus *notify.EventBus) notify.Dispatcher {
	return bus
}

func newServices(attendanceSvc attendance.Service, reportSvc report.Service, noticeSvc notice.Service) echoapi.Services {
	return echoapi.Services{
		Attendance: attendanceSvc,
		Report:     reportSvc,
		Notice:     noticeSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newNotifyLogger, dig.Name("notifyLogger")))
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewStudentRepository))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository), new(report.Repository))))
	must(c.Provide(sqlxrepos.NewNoticeRepository))
	must(c.Provide(newMetrics))
	must(c.Provide(newSink))
	must(c.Provide(notify.NewComposer))
	must(c.Provide(newEventBus))
	must(c.Provide(newDispatcher))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(attendance.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(notice.NewService))
	must(c.Provide(newServices))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
