// Package multiserver builds the HTTP server of an M² bench from a config
// listing its nodes: NanoScan profilers, GSC-01 stages, and measurements
// combining one of each
package multiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-yaml/yaml"
	"go.uber.org/zap"

	"github.com/nasa-jpl/nanosquared/generichttp"
	"github.com/nasa-jpl/nanosquared/generichttp/motion"
	"github.com/nasa-jpl/nanosquared/measure"
	"github.com/nasa-jpl/nanosquared/nanoscan"
	"github.com/nasa-jpl/nanosquared/optosigma"
	"github.com/nasa-jpl/nanosquared/server/middleware/locker"
	"github.com/nasa-jpl/nanosquared/util"
)

// ObjSetup describes one node of the server.  Fields a type does not use
// need not be populated in the config file
type ObjSetup struct {
	// Addr holds the network or filesystem address of the remote device,
	// e.g. 192.168.100.123:2006 for a device connected to port 6
	// on a digi portserver, or /dev/ttyS4 for an RS232 device on a serial cable
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Endpoint is the full path the routes from this node will be served on
	// ex. Endpoint="/m2/stage" will produce routes of /m2/stage/axis/1/pos, etc.
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Serial determines if the connection is serial/RS232 (True) or TCP (False)
	Serial bool `yaml:"Serial" koanf:"Serial"`

	// Type is the "type" of the node, e.g. gsc01
	Type string `yaml:"Type" koanf:"Type"`

	// Limits are software limits of a stage, in mm, keyed by axis
	Limits map[string]util.Limiter `yaml:"Limits" koanf:"Limits"`

	// ROI is the region of interest a profiler measures
	ROI int16 `yaml:"ROI" koanf:"ROI"`

	// Profiler and Stage are the endpoints of the nodes a measurement uses
	Profiler string `yaml:"Profiler" koanf:"Profiler"`
	Stage    string `yaml:"Stage" koanf:"Stage"`

	// RawLog is a file a measurement appends every revolution measured to
	RawLog string `yaml:"RawLog" koanf:"RawLog"`
}

// Config is a struct that holds the initialization parameters for the
// nodes of the server
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Mock replaces the hardware with simulators.  The simulated beam
	// follows the first stage
	Mock bool `yaml:"Mock" koanf:"Mock"`

	// Beam is the beam simulated when Mock is true, nanoscan.DefaultBeam if
	// it has no Rayleigh length
	Beam nanoscan.Beam `yaml:"Beam" koanf:"Beam"`

	// Nodes is the list of nodes to set up
	Nodes []ObjSetup `yaml:"Nodes" koanf:"Nodes"`
}

// LoadYaml converts a (path to a) yaml file into a Config struct
func LoadYaml(path string) (Config, error) {
	cfg := Config{}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = yaml.NewDecoder(f).Decode(&cfg)
	return cfg, err
}

// Mux is the router of the server and the devices behind it
type Mux struct {
	chi.Router

	closers []io.Closer
}

// Close frees every device, returning the first error
func (m *Mux) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func nodeKind(typ string) (int, error) {
	switch strings.ToLower(typ) {
	case "gsc01", "gsc-01", "optosigma":
		return 0, nil
	case "nanoscan", "profiler":
		return 1, nil
	case "m2", "measure", "measurement":
		return 2, nil
	}
	return 0, fmt.Errorf("type %q not understood", typ)
}

// BuildMux constructs the devices of c and a chi router serving each under
// its endpoint, with lock middleware.  The router also serves /endpoints,
// a JSON map of every endpoint to its routes.  Stages are built first, then
// profilers, then measurements, whatever the order of the config
func BuildMux(c Config, log *zap.Logger) (*Mux, error) {
	if log == nil {
		log = zap.NewNop()
	}
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	mux := &Mux{Router: root}
	supergraph := map[string][]string{}

	stages := map[string]*optosigma.GSC01{}
	profilers := map[string]*nanoscan.Profiler{}
	// the position of the first stage, for the simulated beam
	var position func() float64
	var byKind [3][]ObjSetup
	for _, node := range c.Nodes {
		kind, err := nodeKind(node.Type)
		if err != nil {
			return mux, err
		}
		byKind[kind] = append(byKind[kind], node)
	}

	mount := func(node ObjSetup, httper generichttp.HTTPer, lock locker.ManipulableLock, mw ...func(http.Handler) http.Handler) error {
		// prepare the URL, "m2/stage" => "/m2/stage"
		hndlS := generichttp.SubMuxSanitize(node.Endpoint)
		if _, ok := supergraph[hndlS]; ok {
			return fmt.Errorf("endpoint %s used twice", hndlS)
		}
		locker.Inject(httper, lock)
		supergraph[hndlS] = httper.RT().Endpoints()
		r := chi.NewRouter()
		r.Use(mw...)
		r.Use(lock.Check)
		httper.RT().Bind(r)
		root.Mount(hndlS, r)
		return nil
	}

	for _, node := range byKind[0] {
		opts := []optosigma.Option{optosigma.WithLogger(log.Named("gsc01"))}
		var g *optosigma.GSC01
		if c.Mock {
			var em *optosigma.Emulator
			g, em = optosigma.NewMock(opts...)
			if position == nil {
				position = func() float64 { return g.PulseToMM(em.Position()) }
			}
		} else {
			g = optosigma.NewGSC01(node.Addr, node.Serial, opts...)
		}
		mux.closers = append(mux.closers, g)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := g.Init(ctx)
		cancel()
		if err != nil {
			log.Warn("stage did not initialize, initialize it over HTTP",
				zap.String("endpoint", node.Endpoint), zap.Error(err))
		}
		limiter := motion.LimitMiddleware{Limits: node.Limits, Mov: g}
		httper := motion.NewHTTPMotionController(g)
		limiter.Inject(httper)
		if err = mount(node, httper, locker.NewAL(), limiter.Check); err != nil {
			return mux, err
		}
		stages[generichttp.SubMuxSanitize(node.Endpoint)] = g
	}

	for _, node := range byKind[1] {
		var in nanoscan.Interop
		if c.Mock {
			beam := c.Beam
			if beam.ZR <= 0 {
				beam = nanoscan.DefaultBeam
			}
			simOpts := []nanoscan.SimOption{nanoscan.WithBeam(beam)}
			if position != nil {
				simOpts = append(simOpts, nanoscan.WithPositionSource(position))
			}
			in = nanoscan.NewSimulator(simOpts...)
		} else {
			var err error
			in, err = nanoscan.NewDLL()
			if err != nil {
				return mux, err
			}
		}
		p, err := nanoscan.NewProfiler(nanoscan.New(in),
			nanoscan.WithLogger(log.Named("nanoscan")), nanoscan.WithROI(node.ROI))
		if err != nil {
			return mux, err
		}
		mux.closers = append(mux.closers, p)
		if err = mount(node, nanoscan.NewHTTPWrapper(p), locker.New()); err != nil {
			return mux, err
		}
		profilers[generichttp.SubMuxSanitize(node.Endpoint)] = p
	}

	for _, node := range byKind[2] {
		p, ok := profilers[generichttp.SubMuxSanitize(node.Profiler)]
		if !ok {
			return mux, fmt.Errorf("measurement %s: no profiler at %q", node.Endpoint, node.Profiler)
		}
		g, ok := stages[generichttp.SubMuxSanitize(node.Stage)]
		if !ok {
			return mux, fmt.Errorf("measurement %s: no stage at %q", node.Endpoint, node.Stage)
		}
		opts := []measure.Option{measure.WithLogger(log.Named("m2"))}
		if node.RawLog != "" {
			f, err := os.OpenFile(node.RawLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return mux, err
			}
			mux.closers = append(mux.closers, f)
			meta := []measure.Meta{{Key: "Profiler", Value: node.Profiler}, {Key: "Stage", Value: node.Stage}}
			if err = measure.WriteRawHeader(f, time.Now(), meta); err != nil {
				return mux, err
			}
			opts = append(opts, measure.WithRawLog(f))
		}
		m := measure.New(p, g, opts...)
		if err := mount(node, measure.NewHTTPWrapper(m), locker.New()); err != nil {
			return mux, err
		}
	}

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return mux, nil
}
