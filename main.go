package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "0.1.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			dir := configDir()
			fmt.Printf("zipchord: initializing config in %s\n", dir)
			if err := initConfig(dir); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("zipchord: config initialized")
			return
		case "version":
			fmt.Printf("zipchord %s\n", version)
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "zipchord: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := LoadConfig(configDir(), log)

	dict := NewDictionary(cfg.DictionaryDir, log)
	if err := dict.Reload(); err != nil {
		log.Warnf("load dictionaries: %v", err)
	}
	lib := dict.Snapshot()
	if lib.Name != "" {
		log.Infof("loaded dictionary %q (%s, v%s): %d entries",
			lib.Name, lib.Language, lib.Version, lib.Len())
	} else {
		log.Infof("loaded %d dictionary entries", lib.Len())
	}
	if lib.Len() == 0 {
		log.Warnf("dictionary is empty; run 'zipchord init' to install the starter set")
	}

	sink, err := NewUinputSink(cfg.KeyTapDelay)
	if err != nil {
		return fmt.Errorf("open injection sink: %w", err)
	}
	// The multiplexer closes the sink on shutdown; this covers error
	// paths where the loop never gets that far.
	defer sink.Close()

	timing := NewTimingModel(cfg.Timing)
	tracker := NewTracker(timing, dict, NewSynthesizer(sink, log), log)

	events := make(chan KeyEvent, 64)
	gone := make(chan int, 8)
	devices := NewDeviceManager(events, gone, log)
	if err := devices.Discover(); err != nil {
		return fmt.Errorf("discover devices: %w", err)
	}

	mux := NewMultiplexer(devices, tracker, timing, dict, sink, events, gone, cfg.RescanInterval, log)

	go controlSignals(ctx, mux, log)

	log.Infof("started zipchord %s", version)

	errChan := make(chan error, 3)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := mux.Run(ctx); err != nil {
			errChan <- fmt.Errorf("event loop: %w", err)
		}
	}()

	go func() {
		defer wg.Done()
		if err := systemdNotifyLoop(ctx); err != nil {
			errChan <- fmt.Errorf("systemd notify: %w", err)
		}
	}()

	if watcher, err := NewDictWatcher(cfg.DictionaryDir, mux.Reload, log); err != nil {
		log.Warnf("dictionary watching disabled: %v", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				errChan <- fmt.Errorf("dictionary watcher: %w", err)
			}
		}()
	}

	err = <-errChan
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		wg.Wait()
		return nil
	}
	return err
}

// controlSignals handles the out-of-band control surface: SIGHUP
// reloads the dictionaries, SIGUSR1 resets the timing model.
func controlSignals(ctx context.Context, mux *Multiplexer, log *zap.SugaredLogger) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			switch sig {
			case syscall.SIGHUP:
				log.Infof("SIGHUP: reloading dictionaries")
				mux.Reload()
			case syscall.SIGUSR1:
				log.Infof("SIGUSR1: resetting timing model")
				mux.ResetTiming()
			}
		}
	}
}

func systemdNotifyLoop(ctx context.Context) error {
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		return fmt.Errorf("notify systemd: %w", err)
	}
	if !supported {
		return nil
	}

	t, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("check watchdog: %w", err)
	}
	if t == 0 {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t / 2):
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				return fmt.Errorf("notify watchdog: %w", err)
			}
		}
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.OutputPaths = []string{"stdout"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}
