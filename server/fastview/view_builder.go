package fastview

import (
	"context"
	"errors"

	channerics "github.com/niceyeti/channerics/channels"
)

// ViewBuilder wires several views to one source. Each source item is converted once and
// every view gets its own copy of the result.
type ViewBuilder[DataModel any, ViewModel any] struct {
	source  <-chan DataModel
	convert func(DataModel) ViewModel
	views   []ViewBuilderFunc[ViewModel]
	// nil never closes
	done <-chan struct{}
}

func NewViewBuilder[DataModel any, ViewModel any]() *ViewBuilder[DataModel, ViewModel] {
	return &ViewBuilder[DataModel, ViewModel]{}
}

// WithModel sets the source and its conversion to the view-model.
func (vb *ViewBuilder[DataModel, ViewModel]) WithModel(
	input <-chan DataModel,
	convert func(DataModel) ViewModel,
) *ViewBuilder[DataModel, ViewModel] {
	vb.source = input
	vb.convert = convert
	return vb
}

// ViewBuilderFunc makes a view reading view-models until done closes.
type ViewBuilderFunc[ViewModel any] func(done <-chan struct{}, viewModels <-chan ViewModel) ViewComponent

// WithView appends a view. Build returns views in the order they were added.
func (vb *ViewBuilder[DataModel, ViewModel]) WithView(
	builderFn ViewBuilderFunc[ViewModel],
) *ViewBuilder[DataModel, ViewModel] {
	vb.views = append(vb.views, builderFn)
	return vb
}

// WithContext stops the conversion and every view when ctx ends.
func (vb *ViewBuilder[DataModel, ViewModel]) WithContext(
	ctx context.Context,
) *ViewBuilder[DataModel, ViewModel] {
	vb.done = ctx.Done()
	return vb
}

var (
	ErrNoViews = errors.New("no views to build: WithView must be called")
	ErrNoModel = errors.New("no model specified: WithModel must be called")
)

func (vb *ViewBuilder[DataModel, ViewModel]) validate() error {
	if len(vb.views) == 0 {
		return ErrNoViews
	}
	if vb.convert == nil || vb.source == nil {
		return ErrNoModel
	}
	return nil
}

// Build starts the conversion and returns the views, one per WithView call.
func (vb *ViewBuilder[DataModel, ViewModel]) Build() ([]ViewComponent, error) {
	if err := vb.validate(); err != nil {
		return nil, err
	}

	viewModels := channerics.Convert(vb.done, vb.source, vb.convert)
	copies := channerics.Broadcast(vb.done, viewModels, len(vb.views))
	views := make([]ViewComponent, 0, len(vb.views))
	for i, build := range vb.views {
		views = append(views, build(vb.done, copies[i]))
	}
	return views, nil
}
