package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"go.uber.org/zap"

	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/nanosquared/multiserver"
	"github.com/nasa-jpl/nanosquared/nanoscan"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "nanoscansrv.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(multiserver.Config{
		Addr: ":8000",
		Beam: nanoscan.DefaultBeam,
		Nodes: []multiserver.ObjSetup{
			{Type: "gsc01", Endpoint: "/m2/stage", Addr: "COM3", Serial: true},
			{Type: "nanoscan", Endpoint: "/m2/nanoscan"},
			{Type: "m2", Endpoint: "/m2/measure", Profiler: "/m2/nanoscan", Stage: "/m2/stage"},
		}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") && !strings.Contains(errtxt, "cannot find") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `nanoscansrv exposes a NanoScan beam profiler, the GSC-01 stage it rides on,
and M² measurements made with them over HTTP.

Usage:
	nanoscansrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `nanoscansrv is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

No two nodes can have the same Endpoint.

Endpoints may look like any variation between "m2/stage" or "/m2/stage/*", the
leading and trailing slashes, as well as the *, are added by the server if missing.

The NanoScan needs the vendor NS2_Interop.dll and only runs on Windows.  With
Mock: true the profiler and stage are simulated on any platform, and the
simulated Beam follows the first stage.

Node types, case insensitive:
- Ophir-Spiricon
	> NanoScan 2s "nanoscan", "profiler"
		ROI: the region of interest measured, default 0
- OptoSigma
	> GSC-01 "gsc01", "gsc-01", "optosigma"
		Addr: serial port or terminal server address, Serial: true for a port
		Limits: software limits in mm, keyed by axis, which is "1"
- M² measurement "m2", "measure", "measurement"
		Profiler, Stage: the Endpoints of the nodes to measure with
		RawLog: a file every revolution measured is appended to`
	fmt.Println(str)
}

func mkconf() {
	c := multiserver.Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := multiserver.Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("nanoscansrv version %v\n", Version)
}

// closeLogged frees the devices behind c, logging the failure if any
func closeLogged(c io.Closer, logger *zap.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("freeing devices", zap.Error(err))
	}
}

func run() {
	c := multiserver.Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	mux, err := multiserver.BuildMux(c, logger)
	if err != nil {
		closeLogged(mux, logger)
		logger.Fatal("building server", zap.Error(err))
	}
	defer closeLogged(mux, logger)

	srv := &http.Server{Addr: c.Addr, Handler: mux}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	logger.Info("now listening for requests", zap.String("addr", c.Addr), zap.Bool("mock", c.Mock))
	if err = srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("server stopped", zap.Error(err))
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
