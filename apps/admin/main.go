package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/elimu/core"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/storage/database"
)

func main() {
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	errAndDie(stdLogger, database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(conf)
	errAndDie(stdLogger, err)
	errAndDie(stdLogger, database.Ping(ctx, db))

	// start CLI
	cli := newCommandLine(db, logger, os.Stdout)
	err = cli.run(ctx, os.Args)

	_ = db.Close()
	logger.Close()
	if err != nil {
		stdLogger.Printf("error: %s\n", err)
		os.Exit(1)
	}
}

func errAndDie(logger *log.Logger, err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
