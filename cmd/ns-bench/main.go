// ns-bench runs the measurement suite described by a TOML configuration:
// for every configured sketch it builds the sketch, drives the declared
// tests over the record stream, prints the metric tables and forwards the
// reports to the configured sinks.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"SketchSpectra/internal/api"
	"SketchSpectra/internal/config"
	"SketchSpectra/internal/factory"
	"SketchSpectra/internal/measure"
	"SketchSpectra/internal/pkg/logger"
	"SketchSpectra/internal/writer"
)

func main() {
	configPath := flag.String("c", "sketch_config.toml", "path to the config file")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -c <config> [-v]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	logger.SetVerbose(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	var reports []*measure.Report
	for _, name := range factory.Known() {
		if !cfg.Has(name) {
			continue
		}
		report, err := factory.Run(cfg, name)
		if err != nil {
			logger.Fatalf("Running %s failed: %v", name, err)
		}
		report.Show()
		reports = append(reports, report)
	}
	if len(reports) == 0 {
		logger.Warningf("No sketch configured in %s.", *configPath)
	}

	out := cfg.Output()
	var sinks []writer.Writer
	if out.Text != "" {
		sinks = append(sinks, writer.NewTextWriter(out.Text))
	}
	if out.ClickHouse.Addr != "" {
		ch, err := writer.NewClickHouseWriter(out.ClickHouse)
		if err != nil {
			logger.Fatalf("ClickHouse sink: %v", err)
		}
		sinks = append(sinks, ch)
	}
	for _, sink := range sinks {
		if err := sink.Write(reports); err != nil {
			logger.Fatalf("Writing reports failed: %v", err)
		}
		sink.Close()
	}

	if out.API != "" {
		server := api.NewServer(out.API)
		server.SetReports(reports)
		server.Start()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Infof("Shutting down.")
	}
}
