package transform

import (
	"fmt"

	"github.com/drummonds/purpleify/engine/pdfrenderer"
)

// Update is the outcome of a single pipeline step, either *Progress or *Complete
type Update interface {
	isUpdate()
}

// Progress is a transformation that still has work to do. Each call to Next
// renders at most one page.
type Progress struct {
	state      *State
	pages      []*TransformedPage
	nextOffset int
}

// Complete is the terminal state of a transformation. Exactly one of Result and
// Err is set.
type Complete struct {
	Result *Result
	Err    error
}

func (*Progress) isUpdate() {}
func (*Complete) isUpdate() {}

// Result is a reassembled document
type Result struct {
	OriginalTitle string
	Bytes         []byte
}

// Transform loads data and returns a pipeline positioned before the first page
func Transform(renderer pdfrenderer.Renderer, data []byte, pageRange *PageRange, quality Quality, background *Color) (*Progress, error) {
	state, err := NewState(renderer, data, pageRange, quality, background)
	if err != nil {
		return nil, err
	}
	return Start(state), nil
}

// Start begins a pipeline over an already loaded state. The pipeline owns the
// state from now on and closes it on completion.
func Start(state *State) *Progress {
	return &Progress{state: state}
}

// PercentDone is the fraction of the work finished, in [0, 1). The last share is
// reserved for reassembling the document.
func (p *Progress) PercentDone() float64 {
	if p.state == nil {
		return 1
	}
	// in float64 so a count of math.MaxInt does not wrap
	denominator := float64(p.state.options.PageRange.Count) + 1
	if denominator <= 0 {
		return 0
	}
	return float64(p.nextOffset) / denominator
}

// Pages is the number of pages transformed so far
func (p *Progress) Pages() int {
	return len(p.pages)
}

// TotalPages is the number of pages the pipeline renders before reassembly
func (p *Progress) TotalPages() int {
	if p.state == nil {
		return len(p.pages)
	}
	return p.state.PagesInRange()
}

// Next performs one step. While pages remain in range it renders the next one
// and returns p advanced, otherwise it reassembles the document. A failure at
// any point ends the transformation. p must not be used once Next has returned a
// *Complete.
func (p *Progress) Next() Update {
	if p.state == nil {
		return &Complete{Err: fmt.Errorf("%w: transformation already finished", ErrUnknown)}
	}

	if p.state.IncludesOffset(p.nextOffset) {
		page, err := p.state.TransformPage(p.nextOffset)
		if err != nil {
			p.finish()
			return &Complete{Err: err}
		}
		p.pages = append(p.pages, page)
		p.nextOffset++
		return p
	}

	title := p.state.OriginalTitle()
	out, err := p.state.ToPDF(p.pages)
	p.finish()
	if err != nil {
		return &Complete{Err: err}
	}
	return &Complete{Result: &Result{OriginalTitle: title, Bytes: out}}
}

func (p *Progress) finish() {
	if err := p.state.Close(); err != nil {
		Logger.Warn("Failed to close document", "error", err)
	}
	p.state = nil
	p.pages = nil
}

// Finish steps the pipeline until it completes
func (p *Progress) Finish() (*Result, error) {
	return p.Run(nil)
}

// Run steps the pipeline until it completes, calling onProgress with the percent
// done after every page. An error from onProgress stops the pipeline.
func (p *Progress) Run(onProgress func(percentDone float64) error) (*Result, error) {
	for {
		switch update := p.Next().(type) {
		case *Progress:
			if onProgress == nil {
				continue
			}
			if err := onProgress(update.PercentDone()); err != nil {
				p.finish()
				return nil, err
			}
		case *Complete:
			return update.Result, update.Err
		}
	}
}
