package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/88448844/self-sovereign-identity-SSI/log"
	"github.com/88448844/self-sovereign-identity-SSI/metrics"
)

// FailOnError prints msg and err to stderr and exits 1, the same
// bail-out-of-main pattern every boulder-* binary uses instead of
// propagating a startup error up through main's return value.
func FailOnError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}

// VersionString produces a friendly version string for --version and
// startup log lines.
func VersionString() string {
	name := path.Base(os.Args[0])
	return fmt.Sprintf("%s (%s)", name, runtime.Version())
}

// StatsAndLogging builds the Prometheus scope and syslog-backed logger
// every binary starts with.
func StatsAndLogging(tag string) (metrics.Scope, log.Logger) {
	scope := metrics.NewPromScope(prometheus.DefaultRegisterer)
	logger := log.New(tag)
	return scope, logger
}

var signalToName = map[os.Signal]string{
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGHUP:  "SIGHUP",
}

// CatchSignals blocks until SIGTERM, SIGINT, or SIGHUP, runs callback,
// then exits. Command mains run this in its own goroutine while main
// waits on the HTTP listener.
func CatchSignals(logger log.Logger, callback func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	sig := <-sigChan
	logger.Info(fmt.Sprintf("caught %s", signalToName[sig]))

	if callback != nil {
		callback()
	}

	logger.Info("exiting")
	os.Exit(0)
}
