package cell_views

import (
	"fmt"
	"html/template"

	"playground/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValuesGrid shows each cell's max action value and greedy arrow, and colors the agent's cell.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

// NewValuesGrid returns a grid view fed by frames. The id must not contain hyphens, which
// html/template does not accept in template names.
func NewValuesGrid(
	done <-chan struct{},
	frames <-chan Frame,
) (vg *ValuesGrid) {
	vg = &ValuesGrid{id: template.HTMLEscapeString("valuesgrid")}
	vg.updates = channerics.Convert(done, frames, vg.onUpdate)
	return
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

// Returns the set of view updates needed for the view to reflect the current values.
func (vg *ValuesGrid) onUpdate(frame Frame) (ops []fastview.EleUpdate) {
	for _, row := range frame.Cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-value-text", cell.X, cell.Y),
					Ops: []fastview.Op{
						fastview.SetText(fmt.Sprintf("%.2f", cell.Max)),
					},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-policy-arrow", cell.X, cell.Y),
					Ops: []fastview.Op{
						fastview.SetText(cell.Arrow),
					},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-cell-rect", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
					},
				})
		}
	}
	return
}

// Parse defines the grid's svg template, one rect with a value and an arrow per cell.
func (vg *ValuesGrid) Parse(
	t *template.Template,
) (name string, err error) {
	name = vg.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div id="state_values">
			{{ $x_cells := len .Cells }}
			{{ $y_cells := len (index .Cells 0) }}
			{{ $cell_width := 60 }}
			{{ $cell_height := $cell_width }}
			{{ $width := mult $cell_width $x_cells }}
			{{ $height := mult $cell_height $y_cells }}
			{{ $half_height := div $cell_height 2 }}
			{{ $half_width := div $cell_width 2 }}
			<svg id="` + vg.id + `"
				width="{{ add $width 1 }}px"
				height="{{ add $height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{$cell.X}}-{{$cell.Y}}-cell-rect"
							x="{{ mult $cell.X $cell_width }}"
							y="{{ mult $cell.Y $cell_height }}"
							width="{{ $cell_width }}"
							height="{{ $cell_height }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						<text id="{{$cell.X}}-{{$cell.Y}}-value-text"
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_height) (sub $half_height 8) }}"
							font-size="12" fill="blue"
							dominant-baseline="middle" text-anchor="middle"
							>{{ printf "%.2f" $cell.Max }}</text>
						<text id="{{$cell.X}}-{{$cell.Y}}-policy-arrow"
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_height) (add $half_height 12) }}"
							font-size="16" fill="blue"
							dominant-baseline="middle" text-anchor="middle"
							>{{ $cell.Arrow }}</text>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
