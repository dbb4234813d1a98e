package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/facebookgo/httpdown"
	"github.com/getsentry/raven-go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ndlib/ioxstore/ident"
	"github.com/ndlib/ioxstore/iox"
	"github.com/ndlib/ioxstore/store"
	"github.com/ndlib/ioxstore/util"
)

// RESTServer holds the configuration for an object store REST API server.
//
// Set all the public fields and then call Run. Run will listen on the given
// port and handle requests. Do not change any fields after calling Run or
// Handler.
//
// Every database served shares the one Store and ServerID. Databases are
// opened on first use.
type RESTServer struct {
	// Port number to listen on. defaults to 8080
	PortNumber string

	// ServerID owns every database this server handles.
	ServerID ident.ServerID

	// Store is the underlying object store. Run will panic if Store is nil.
	Store store.Store

	// Log is used for request and error logging. If nil, nothing is logged.
	Log *zap.Logger

	// Registry collects the server and store metrics, and is served on
	// /metrics. If nil a new registry is made.
	Registry *prometheus.Registry

	// MaxConcurrentPuts bounds the number of uploads in progress at one
	// time. Further uploads wait. Defaults to 10.
	MaxConcurrentPuts int

	// MaxOpenDatabases is how many database stores are kept open. The least
	// recently used are dropped past this. Defaults to 1000.
	MaxOpenDatabases int

	server   httpdown.Server // used to close our listening socket
	once     sync.Once
	handler  http.Handler
	gate     util.Gate
	requests *prometheus.CounterVec
	dbs      *lru.Cache[string, *iox.ObjectStore]
}

// Run initializes the server and then blocks listening for and handling
// http requests.
func (s *RESTServer) Run() error {
	h := s.Handler()
	s.Log.Info("Starting ioxstore server",
		zap.String("version", Version),
		zap.String("port", s.PortNumber),
		zap.Stringer("server_id", s.ServerID))

	hd := httpdown.HTTP{
		StopTimeout: 10 * time.Second,
		KillTimeout: 5 * time.Second,
	}
	var err error
	s.server, err = hd.ListenAndServe(&http.Server{
		Addr:    ":" + s.PortNumber,
		Handler: h,
	})
	if err != nil {
		s.Log.Error("listen", zap.Error(err))
		return err
	}
	return s.server.Wait()
}

// Stop will stop the server and return when all the server goroutines have
// exited and the socket closed.
func (s *RESTServer) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Stop()
}

// Handler returns the http handler for the server's routes. It is what Run
// serves, and is exposed for testing.
func (s *RESTServer) Handler() http.Handler {
	s.once.Do(s.init)
	return s.handler
}

func (s *RESTServer) init() {
	if s.Store == nil {
		panic("No base storage given. Store is nil.")
	}
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.PortNumber == "" {
		s.PortNumber = "8080"
	}
	if s.MaxConcurrentPuts <= 0 {
		s.MaxConcurrentPuts = 10
	}
	if s.Registry == nil {
		s.Registry = prometheus.NewRegistry()
	}
	if s.MaxOpenDatabases <= 0 {
		s.MaxOpenDatabases = 1000
	}
	s.gate = util.NewGate(s.MaxConcurrentPuts)
	var err error
	s.dbs, err = lru.New[string, *iox.ObjectStore](s.MaxOpenDatabases)
	if err != nil {
		panic(err)
	}

	metrics := store.NewStoreMetrics()
	if err := metrics.Register(s.Registry); err != nil {
		s.Log.Warn("store metrics not registered", zap.Error(err))
	} else {
		s.Store = store.NewMetered(s.Store, metrics)
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ioxstore",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, by route and status code.",
	}, []string{"route", "code"})
	if err := s.Registry.Register(s.requests); err != nil {
		s.Log.Warn("http metrics not registered", zap.Error(err))
	}

	s.handler = s.addRoutes()
}

func (s *RESTServer) addRoutes() http.Handler {
	var routes = []struct {
		method  string
		route   string
		handler httprouter.Handle
	}{
		{"GET", "/db/:db/paths", s.PathsHandler},
		{"GET", "/db/:db/list/*prefix", s.ListHandler},
		{"GET", "/db/:db/object/*path", s.GetHandler},
		{"HEAD", "/db/:db/object/*path", s.GetHandler},
		{"PUT", "/db/:db/object/*path", s.PutHandler},
		{"DELETE", "/db/:db/object/*path", s.DeleteHandler},
		{"GET", "/db/:db/transactions", s.TransactionsHandler},

		// other
		{"GET", "/", WelcomeHandler},
		{"GET", "/metrics", s.MetricsHandler()},
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method,
			route.route,
			s.logWrapper(route.route, route.handler))
	}
	r.PanicHandler = s.panicHandler
	return r
}

// database returns the ObjectStore for the database named in the request,
// opening it if needed.
func (s *RESTServer) database(ps httprouter.Params) (*iox.ObjectStore, error) {
	name, err := ident.NewDatabaseName(ps.ByName("db"))
	if err != nil {
		return nil, err
	}
	o, ok := s.dbs.Get(name.String())
	if !ok {
		o = iox.New(s.Store, s.ServerID, name, iox.WithLogger(s.Log))
		s.dbs.Add(name.String(), o)
	}
	return o, nil
}

// MetricsHandler adapts the prometheus handler to the httprouter three
// parameter handler.
func (s *RESTServer) MetricsHandler() httprouter.Handle {
	h := promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}

// writeJSON encodes val as the response body.
func writeJSON(w http.ResponseWriter, val interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(val)
}

// writeError maps err to an HTTP status and writes it.
func (s *RESTServer) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case store.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, ident.ErrDatabaseNameLength),
		errors.Is(err, ident.ErrDatabaseNameChar),
		errors.Is(err, iox.ErrEmptyPath),
		errors.Is(err, store.ErrLengthMismatch),
		errors.Is(err, util.ErrChecksumMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrPathIsDirectory):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		s.Log.Error("request failed", zap.Error(err))
	}
	w.WriteHeader(status)
	fmt.Fprintln(w, err)
}

// panicHandler answers requests whose handler panicked. The only expected
// panic is a store returning paths outside a database, which means the
// store is broken.
func (s *RESTServer) panicHandler(w http.ResponseWriter, r *http.Request, v interface{}) {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("%v", v)
	}
	s.Log.Error("panic handling request",
		zap.String("method", r.Method),
		zap.Stringer("url", r.URL),
		zap.Error(err))
	raven.CaptureError(err, map[string]string{"url": r.URL.String()})
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintln(w, "internal error")
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.status == 0 {
		sw.status = code
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(p []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(p)
}

// logWrapper takes a handler and returns a handler which does the same thing,
// and then logs the request and counts it by route and status.
func (s *RESTServer) logWrapper(route string, handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		handler(sw, r, ps)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		s.requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		s.Log.Info("request",
			zap.String("method", r.Method),
			zap.Stringer("url", r.URL),
			zap.Int("status", sw.status),
			zap.Duration("elapsed", time.Since(start)))
	}
}
