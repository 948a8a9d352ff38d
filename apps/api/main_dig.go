package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/shala/apps/api/di/dig"
	echoapi "github.com/trezcool/shala/apps/api/echo"
	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/notify"
	metricsvc "github.com/trezcool/shala/services/metrics"
	"github.com/trezcool/shala/storage/database"
)

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		bus *notify.EventBus,
		metrics *metricsvc.Metrics,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/vars - build & env, plus the expvar defaults.
		// /debug/readiness - 200 once the database answers.
		// /metrics - prometheus collectors (notifications, events).

		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		debugMux := http.NewServeMux()
		debugMux.Handle("/debug/vars", expvar.Handler())
		debugMux.Handle("/metrics", metrics.Handler())
		debugMux.HandleFunc("/debug/readiness", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := database.StatusCheck(ctx, db); err != nil {
				dbLogger.Error(fmt.Sprintf("readiness: %v", err), err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, debugMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}

			// pending notifications are delivered before the DB is closed
			bus.Wait()
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
