package cell_views

import (
	"fmt"
	"html/template"

	"playground/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// StatusBar shows the algorithm, episode and tick of the run, and where the agent is.
type StatusBar struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatusBar(
	done <-chan struct{},
	frames <-chan Frame,
) (sb *StatusBar) {
	sb = &StatusBar{id: "statusbar"}
	sb.updates = channerics.Convert(done, frames, sb.onUpdate)
	return
}

func (sb *StatusBar) Updates() <-chan []fastview.EleUpdate {
	return sb.updates
}

func (sb *StatusBar) onUpdate(frame Frame) []fastview.EleUpdate {
	text := func(id, value string) fastview.EleUpdate {
		return fastview.EleUpdate{
			EleId: sb.id + "-" + id,
			Ops:   []fastview.Op{fastview.SetText(value)},
		}
	}
	return []fastview.EleUpdate{
		text("algorithm", frame.Algorithm),
		text("episode", fmt.Sprintf("%d", frame.Episode)),
		text("tick", fmt.Sprintf("%d", frame.Tick)),
		text("agent", agentText(frame)),
	}
}

func agentText(frame Frame) string {
	if frame.Agent == nil {
		return "off grid"
	}
	if frame.Exploratory {
		return frame.Agent.String() + " (exploring)"
	}
	return frame.Agent.String()
}

func (sb *StatusBar) Parse(
	t *template.Template,
) (name string, err error) {
	name = sb.id
	_, err = t.Funcs(template.FuncMap{
		"agentText": agentText,
	}).Parse(
		`{{ define "` + name + `" }}
		<div id="` + sb.id + `" style="font-family: monospace; padding: 8px;">
			<span id="` + sb.id + `-algorithm">{{ .Algorithm }}</span> |
			episode <span id="` + sb.id + `-episode">{{ .Episode }}</span> |
			tick <span id="` + sb.id + `-tick">{{ .Tick }}</span> |
			agent <span id="` + sb.id + `-agent">{{ agentText . }}</span>
		</div>
		{{ end }}`)
	return
}
