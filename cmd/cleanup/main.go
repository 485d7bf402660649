// Command cleanup runs the scheduled cleanups that are due now. It is meant
// to be invoked once a minute by cron.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mailsweep/internal/cache"
	"github.com/brandon/mailsweep/internal/config"
	"github.com/brandon/mailsweep/internal/email"
	"github.com/brandon/mailsweep/internal/schedule"
)

var schedulePath = flag.String("schedules", "", "Schedule file (default: SCHEDULE_PATH)")

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	path := *schedulePath
	if path == "" {
		path = cfg.SchedulePath
	}
	file, err := schedule.Load(path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load schedules")
	}

	loc, err := cfg.Scan.Location()
	if err != nil {
		logger.WithError(err).Fatal("Invalid time zone")
	}

	scanCache, err := cache.NewCache(cfg.CachePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize cache")
	}
	defer scanCache.Close()

	manager, err := email.NewManager(cfg, cache.NewStore(scanCache, logger), nil, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create email manager")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ran := schedule.NewRunner(manager, loc, logger).Run(ctx, file, time.Now())
	if ran == 0 {
		logger.Debug("No schedules due")
		return
	}

	if err := file.Save(path); err != nil {
		logger.WithError(err).Error("Failed to save schedules")
		return
	}
	logger.WithField("ran", ran).Info("Scheduled cleanups finished")
}
