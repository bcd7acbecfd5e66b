package root_view

import (
	"context"
	"html/template"
	"sync"
	"time"

	"playground/models"
	"playground/server/cell_views"
	"playground/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// batchRate is how long element updates are merged before being passed to clients.
const batchRate = time.Millisecond * 20

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, etc.
type RootView struct {
	views []fastview.ViewComponent
	hub   *hub
}

// NewRootView builds the page's views over a snapshot feed. Each snapshot is converted to
// a frame once and broadcast to every view.
func NewRootView(
	ctx context.Context,
	snapshots <-chan models.Snapshot,
	convert func(models.Snapshot) cell_views.Frame,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[models.Snapshot, cell_views.Frame]().
		WithContext(ctx).
		WithModel(snapshots, convert).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			return cell_views.NewStatusBar(done, frames)
		}).
		WithView(func(
			done <-chan struct{},
			frames <-chan cell_views.Frame) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, frames)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	rv := &RootView{
		views: views,
		hub:   newHub(),
	}
	go rv.hub.run(ctx.Done(), fanIn(ctx.Done(), views))
	return rv, nil
}

// Subscribe returns a channel holding the latest complete set of element updates for the
// page, and a func to unsubscribe. The channel is closed when the view's context ends.
func (rv *RootView) Subscribe() (<-chan []fastview.EleUpdate, func()) {
	return rv.hub.subscribe()
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			return "", parseErr
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The main template bootstraps the rest: sets up client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<!--This is the client bootstrap code by which the server pushes new data to the view via websocket.-->
			<script>
				const ws = new WebSocket("ws://" + window.location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (!ele) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single, throttled channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchRate)
}

// batchify merges updates received within each period, over-writing previously received
// values for the same ele-id, and sends the merged batch at the end of the period. This
// ensures that redundant updates for the same ele-id are not sent, and only the latest
// values are sent.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		flush := func(data map[string]fastview.EleUpdate) bool {
			select {
			case output <- slicedVals(data):
				return true
			case <-done:
				return false
			}
		}

		ticker := channerics.NewTicker(done, rate)
		data := map[string]fastview.EleUpdate{}
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					if len(data) > 0 {
						flush(data)
					}
					return
				}
				for _, update := range updates {
					data[update.EleId] = update
				}
			case <-ticker:
				if len(data) == 0 {
					continue
				}
				if !flush(data) {
					return
				}
				data = map[string]fastview.EleUpdate{}
			}
		}
	}()

	return output
}

// hub holds the latest value of every element and hands the complete set to each
// subscriber, so a subscriber that skips batches still converges to the current page.
type hub struct {
	mu     sync.Mutex
	state  map[string]fastview.EleUpdate
	subs   map[chan []fastview.EleUpdate]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{
		state: map[string]fastview.EleUpdate{},
		subs:  map[chan []fastview.EleUpdate]struct{}{},
	}
}

func (h *hub) run(done <-chan struct{}, source <-chan []fastview.EleUpdate) {
	for updates := range channerics.OrDone(done, source) {
		h.mu.Lock()
		for _, update := range updates {
			h.state[update.EleId] = update
		}
		full := slicedVals(h.state)
		for sub := range h.subs {
			offer(sub, full)
		}
		h.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		close(sub)
	}
	h.subs = nil
}

func (h *hub) subscribe() (<-chan []fastview.EleUpdate, func()) {
	sub := make(chan []fastview.EleUpdate, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub)
		return sub, func() {}
	}
	if len(h.state) > 0 {
		sub <- slicedVals(h.state)
	}
	h.subs[sub] = struct{}{}

	return sub, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, sub)
	}
}

// offer replaces any unread value in sub. Only the hub sends, under its lock.
func offer(sub chan []fastview.EleUpdate, updates []fastview.EleUpdate) {
	select {
	case <-sub:
	default:
	}
	sub <- updates
}

// returns the values of a map as a slice
func slicedVals[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	sliced = make([]T2, 0, len(mp))
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}
