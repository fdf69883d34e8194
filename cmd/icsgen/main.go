package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"icsgen/internal/config"
	"icsgen/internal/ics"
	appLog "icsgen/internal/log"
	"icsgen/internal/request"
	"icsgen/internal/web"
)

const version = "0.1.0"

// stdoutTarget as -out writes the document to stdout instead of a file.
const stdoutTarget = "-"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	once       bool
	out        string

	// params holds the event parameters given on the command line, keyed by
	// request parameter name. Only flags that were set are present.
	params url.Values
}

// eventFlags maps CLI flag names onto request parameter names.
var eventFlags = []struct {
	name, param, usage string
}{
	{"label", request.ParamLabel, "Event summary; also names the output file"},
	{"start", request.ParamStartDate, "Start date or date-time (ISO-8601)"},
	{"end", request.ParamEndDate, "End date or date-time (ISO-8601)"},
	{"duration", request.ParamDuration, "Duration when no end is given (e.g. PT1H, P3D)"},
	{"description", request.ParamDescription, "Event description"},
	{"location", request.ParamLocation, "Event location"},
	{"url", request.ParamURL, "Event URL"},
	{"organizer", request.ParamOrganizerMail, "Organizer e-mail address"},
	{"attendees", request.ParamAttendees, "Comma separated attendee e-mail addresses"},
	{"alarm", request.ParamAlarm, "Display reminder before start (e.g. PT30M)"},
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := config.LoadDotEnv(); err != nil {
		appLog.Error("failed to load .env", err)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("icsgen starting", "version", version)
	appLog.Debug("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"product_id", conf.ProductID,
		"line_ending", conf.LineEnding,
		"max_attendees", conf.MaxAttendees,
		"output_dir", conf.OutputDir,
		"basic_auth", conf.BasicAuth != nil,
		"once", flags.once,
	)

	if flags.once {
		if err := runOnce(conf, flags, os.Stdout); err != nil {
			appLog.Error("build failed", err)
			os.Exit(1)
		}
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := web.StartServer(ctx, conf, flags.debug, reg); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("icsgen exiting")
}

// runOnce builds a single document from the event flags and writes it to
// flags.out, conf.OutputDir or stdout.
func runOnce(conf *config.Config, flags flagConfig, stdout io.Writer) error {
	loc, err := conf.Location()
	if err != nil {
		return err
	}

	req, err := request.FromValues(flags.params, loc)
	if err != nil {
		return err
	}

	out, err := ics.NewBuilder(conf.BuilderOptions()...).Build(req)
	if err != nil {
		return err
	}

	target := flags.out
	if target == "" {
		target = conf.OutputDir
	}
	if target == stdoutTarget {
		_, err := out.WriteTo(stdout)
		return err
	}

	path, err := out.Save(target)
	if err != nil {
		return fmt.Errorf("save %s: %w", out.Filename, err)
	}
	appLog.Info("calendar written", "path", path, "uid", out.UID, "bytes", len(out.Data))
	return nil
}

func parseFlags(args []string) (flagConfig, error) {
	var cfg flagConfig
	fs := flag.NewFlagSet("icsgen", flag.ContinueOnError)

	fs.StringVar(&cfg.configPath, "config", "/etc/icsgen/config.yaml", "Path to config file")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&cfg.once, "once", false, "Build one calendar from the event flags and exit")
	fs.StringVar(&cfg.out, "out", "", "Output directory for -once, or - for stdout (default: output_dir from config)")

	paramByFlag := make(map[string]string, len(eventFlags)+1)
	for _, f := range eventFlags {
		fs.String(f.name, "", f.usage)
		paramByFlag[f.name] = f.param
	}
	fs.Bool("full-days", false, "All-day event; times of -start/-end are ignored")
	paramByFlag["full-days"] = request.ParamFullDays

	if err := fs.Parse(args); err != nil {
		return flagConfig{}, err
	}

	cfg.params = url.Values{}
	fs.Visit(func(f *flag.Flag) {
		if param, ok := paramByFlag[f.Name]; ok {
			cfg.params.Set(param, f.Value.String())
		}
	})
	return cfg, nil
}
