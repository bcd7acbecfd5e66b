package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"time"

	"playground/models"
	"playground/playground"
	"playground/reinforcement"
	"playground/server/cell_views"
	"playground/server/fastview"
	"playground/server/root_view"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	// Maximum size of a config body.
	maxConfigSize = 8192
	// Time allowed for in-flight requests when the server is shut down.
	shutdownGracePeriod = 5 * time.Second
)

// Trainer is what the server needs from a running playground.
type Trainer interface {
	Stats() playground.Stats
	Config() *reinforcement.Config
	Reconfigure(cfg *reinforcement.Config) error
	Store() *reinforcement.ValueStore
}

// Server serves a single page of live training views, the websocket feeding them, and a
// small json api for stats, values and runtime reconfiguration. Views read the value
// store concurrently with training; all writes go through Trainer.Reconfigure.
type Server struct {
	addr     string
	grid     cell_views.Grid
	trainer  Trainer
	rootView *root_view.RootView
	router   *mux.Router
	log      zerolog.Logger
}

// NewServer builds the views over the snapshot feed and the routes. The views stop
// when ctx ends.
func NewServer(
	ctx context.Context,
	addr string,
	grid cell_views.Grid,
	trainer Trainer,
	snapshots <-chan models.Snapshot,
	logger zerolog.Logger,
) (*Server, error) {
	server := &Server{
		addr:    addr,
		grid:    grid,
		trainer: trainer,
		log:     logger,
	}

	rootView, err := root_view.NewRootView(ctx, snapshots, server.frame)
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}
	server.rootView = rootView

	router := mux.NewRouter()
	router.Use(requestLogger(logger))
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/stats", server.serveStats).Methods(http.MethodGet)
	router.HandleFunc("/values", server.serveValues).Methods(http.MethodGet)
	router.HandleFunc("/config", server.serveConfig).Methods(http.MethodGet)
	router.HandleFunc("/config", server.updateConfig).Methods(http.MethodPut)
	server.router = router

	return server, nil
}

// Handler returns the server's routes, e.g. for mounting under httptest.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx ends, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		server.log.Info().Str("addr", server.addr).Msg("serving")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (server *Server) frame(snapshot models.Snapshot) cell_views.Frame {
	cfg := server.trainer.Config()
	algorithm := reinforcement.StrategyOf(cfg).Name(cfg.StepHorizon, cfg.TargetEpsilon)
	return cell_views.Convert(server.grid, server.trainer.Store(), snapshot, algorithm)
}

// serveWebsocket publishes page updates to the client until it leaves.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := server.rootView.Subscribe()
	defer unsubscribe()

	cli, err := fastview.NewClient(updates, w, r)
	if err != nil {
		server.log.Warn().Err(err).Msg("websocket")
		return
	}
	defer cli.Close()

	server.log.Debug().Str("remote", r.RemoteAddr).Msg("websocket client connected")
	if err = cli.Sync(); err != nil {
		server.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket client failed")
		return
	}
	server.log.Debug().Str("remote", r.RemoteAddr).Msg("websocket client left")
}

// Serve the index.html main page, rendered with the current values.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	stats := server.trainer.Stats()
	frame := server.frame(models.Snapshot{
		Episode: int(stats.Episodes),
		Tick:    int(stats.Ticks),
	})

	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, frame); err != nil {
		server.log.Error().Err(err).Msg("render index")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc interface {
		Parse(*template.Template) (string, error)
	},
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}

func (server *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	server.writeJSON(w, http.StatusOK, server.trainer.Stats())
}

// StateValues is the json form of one state's row of the action-value table.
type StateValues struct {
	X      int                `json:"x"`
	Y      int                `json:"y"`
	Values map[string]float64 `json:"values"`
	Greedy []string           `json:"greedy"`
}

func (server *Server) serveValues(w http.ResponseWriter, r *http.Request) {
	store := server.trainer.Store()
	width, height := store.Shape()

	rows := make([]StateValues, 0, width*height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			s := models.State{X: x, Y: y}
			row := StateValues{
				X:      x,
				Y:      y,
				Values: map[string]float64{},
			}
			values := store.Values(s)
			for _, action := range models.ACTIONS {
				row.Values[action.String()] = values[action]
			}
			for _, action := range store.GreedySet(s) {
				row.Greedy = append(row.Greedy, action.String())
			}
			rows = append(rows, row)
		}
	}
	server.writeJSON(w, http.StatusOK, rows)
}

func (server *Server) serveConfig(w http.ResponseWriter, r *http.Request) {
	server.writeJSON(w, http.StatusOK, server.trainer.Config())
}

// updateConfig applies a partial config: fields absent from the body keep their current
// values. The new config takes effect between ticks.
func (server *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := server.trainer.Config()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxConfigSize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		http.Error(w, fmt.Sprintf("decode config: %v", err), http.StatusBadRequest)
		return
	}

	if err := server.trainer.Reconfigure(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	server.log.Info().
		Str("algorithm", reinforcement.StrategyOf(cfg).Name(cfg.StepHorizon, cfg.TargetEpsilon)).
		Msg("reconfiguration queued")
	server.writeJSON(w, http.StatusOK, cfg)
}

func (server *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		server.log.Warn().Err(err).Msg("write response")
	}
}

// requestLogger logs each request on completion, tagged with a correlation id taken from the
// X-Correlation-ID header or generated.
func requestLogger(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get("X-Correlation-ID")
			if correlationID == "" {
				correlationID = uuid.New().String()
			}
			w.Header().Set("X-Correlation-ID", correlationID)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			level := zerolog.DebugLevel
			if sw.status >= 500 {
				level = zerolog.ErrorLevel
			} else if sw.status >= 400 {
				level = zerolog.WarnLevel
			}
			logger.WithLevel(level).
				Str("correlation_id", correlationID).
				Str("method", r.Method).
				Str("url", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", sw.status).
				Dur("elapsed", time.Since(start)).
				Msg("request completed")
		})
	}
}

// statusWriter records the response status. It passes Hijack through for websockets.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	sw.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
