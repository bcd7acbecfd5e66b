package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"playground/grid_world"
	"playground/models"
	"playground/playground"
	"playground/reinforcement"
	"playground/server/fastview"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/exp/rand"
)

func newTestServer(ctx context.Context, snapshots <-chan models.Snapshot) (*Server, *playground.Playground) {
	world, err := grid_world.Convert(grid_world.CorridorTrack, rand.NewSource(1))
	So(err, ShouldBeNil)
	agent, err := reinforcement.NewAgent(world, reinforcement.DefaultConfig(), rand.NewSource(1), zerolog.Nop())
	So(err, ShouldBeNil)
	pg, err := playground.New(agent, playground.DefaultOptions(), zerolog.Nop())
	So(err, ShouldBeNil)

	server, err := NewServer(ctx, ":0", world, pg, snapshots, zerolog.Nop())
	So(err, ShouldBeNil)
	return server, pg
}

func TestServer(t *testing.T) {
	Convey("Given a server over an idle playground", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		snapshots := make(chan models.Snapshot, 1)
		server, pg := newTestServer(ctx, snapshots)
		handler := server.Handler()

		Convey("The index page renders the grid and the websocket bootstrap", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			body := rec.Body.String()
			So(body, ShouldContainSubstring, "new WebSocket(")
			So(body, ShouldContainSubstring, `id="0-0-value-text"`)
			So(body, ShouldContainSubstring, `id="statusbar-algorithm"`)
			So(body, ShouldContainSubstring, "sarsa")
		})

		Convey("Stats are served as json", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var stats playground.Stats
			So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
			So(stats.RunID, ShouldEqual, pg.RunID().String())
			So(stats.Ticks, ShouldEqual, int64(0))
			So(rec.Header().Get("X-Correlation-ID"), ShouldNotBeEmpty)
		})

		Convey("A caller's correlation id is echoed back", func() {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			req.Header.Set("X-Correlation-ID", "abc")
			handler.ServeHTTP(rec, req)
			So(rec.Header().Get("X-Correlation-ID"), ShouldEqual, "abc")
		})

		Convey("Values are served per state, matching the store", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/values", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			var rows []StateValues
			So(json.Unmarshal(rec.Body.Bytes(), &rows), ShouldBeNil)
			So(len(rows), ShouldEqual, 3)

			store := pg.Store()
			for _, row := range rows {
				s := models.State{X: row.X, Y: row.Y}
				So(len(row.Values), ShouldEqual, models.NUM_ACTIONS)
				So(row.Values[models.UP.String()], ShouldEqual, store.Get(s, models.UP))
				So(len(row.Greedy), ShouldEqual, len(store.GreedySet(s)))
			}
		})

		Convey("A partial config update keeps the unnamed fields", func() {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/config", strings.NewReader(`{"behaviorEpsilon": 0.3}`))
			handler.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			cfg := pg.Config()
			So(cfg.BehaviorEpsilon, ShouldEqual, 0.3)
			So(cfg.LearningRate, ShouldEqual, reinforcement.DefaultConfig().LearningRate)

			rec = httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
			var served reinforcement.Config
			So(json.Unmarshal(rec.Body.Bytes(), &served), ShouldBeNil)
			So(served.BehaviorEpsilon, ShouldEqual, 0.3)
		})

		Convey("Invalid config updates are refused", func() {
			for _, body := range []string{
				`{"discount": 2}`,
				`{"noSuchField": 1}`,
				`not json`,
			} {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/config", strings.NewReader(body)))
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			}
			So(pg.Config().Discount, ShouldEqual, reinforcement.DefaultConfig().Discount)
		})

		Convey("Websocket clients receive element updates for new snapshots", func() {
			httpServer := httptest.NewServer(handler)
			defer httpServer.Close()

			url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)

			agent := models.State{X: 1, Y: 0}
			snapshots <- models.Snapshot{AgentPosition: &agent, Episode: 3, Tick: 42}

			// Each message is the full page state, which converges once both views reported.
			So(conn.SetReadDeadline(time.Now().Add(5*time.Second)), ShouldBeNil)
			byId := map[string]fastview.EleUpdate{}
			for len(byId["0-0-value-text"].Ops) == 0 || len(byId["statusbar-tick"].Ops) == 0 {
				var updates []fastview.EleUpdate
				So(conn.ReadJSON(&updates), ShouldBeNil)
				byId = map[string]fastview.EleUpdate{}
				for _, update := range updates {
					byId[update.EleId] = update
				}
			}
			So(byId["statusbar-tick"].Ops[0].Value, ShouldEqual, "42")
			So(byId["1-0-cell-rect"].Ops[0].Value, ShouldEqual, "limegreen")

			So(conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")), ShouldBeNil)
			conn.Close()
		})
	})
}
