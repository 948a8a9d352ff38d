package main

import (
	"log"
	"os"

	"github.com/trezcool/shala/core"
	logsvc "github.com/trezcool/shala/services/logger"
	"github.com/trezcool/shala/storage/database"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:     db.DB,
		conf:   conf,
		logger: logger,
	}
	err = cli.run(os.Args)
	if cerr := db.Close(); cerr != nil {
		logger.Error("closing database", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
