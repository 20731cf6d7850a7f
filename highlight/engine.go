package highlight

import (
	"blockstream/logger"
	"blockstream/plaintext"
	"blockstream/types"
)

// Options configures an Engine
type Options struct {
	SeparatorWidth int
	DedupePrefix   int
	Labels         []string
	Colors         map[string]string
	CacheSize      int
	// DevMode logs every dropped highlight
	DevMode bool
	Log     logger.Logger
	// OnDrop is called once per dropped highlight with the drop reason
	OnDrop func(reason string)
}

// DefaultOptions returns engine options with the stock palette and labels
func DefaultOptions() Options {
	return Options{
		SeparatorWidth: DefaultSeparatorWidth,
		DedupePrefix:   DefaultDedupePrefix,
		Labels:         DefaultSemanticLabels,
	}
}

// BlockOverlay is the resolved decoration of one block
type BlockOverlay struct {
	Index int                    `json:"index"`
	Start int                    `json:"start"`
	End   int                    `json:"end"`
	Tree  []*types.HighlightNode `json:"tree,omitempty"`
	Runs  []types.Run            `json:"runs"`
}

// Engine resolves stored highlights against parsed blocks
type Engine struct {
	opts     Options
	resolver *Resolver
	log      logger.Logger
}

// NewEngine creates an engine
func NewEngine(opts Options) (*Engine, error) {
	if opts.DedupePrefix <= 0 {
		opts.DedupePrefix = DefaultDedupePrefix
	}
	if opts.SeparatorWidth < 0 {
		opts.SeparatorWidth = DefaultSeparatorWidth
	}
	if len(opts.Labels) == 0 {
		opts.Labels = DefaultSemanticLabels
	}
	resolver, err := NewResolver(opts.Colors, opts.CacheSize)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{opts: opts, resolver: resolver, log: log}, nil
}

// Resolver returns the engine's color resolver
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// SeparatorWidth returns the boundary width the engine counts between blocks
func (e *Engine) SeparatorWidth() int {
	return e.opts.SeparatorWidth
}

// MessageText returns the rendered text highlights are measured against
func (e *Engine) MessageText(blocks []types.MessageBlock) string {
	return MessageText(blocks, e.opts.SeparatorWidth)
}

// Resolve assigns block spans, validates and deduplicates records, and
// returns the decoration of every block that has any. Code blocks are never
// decorated. A block without user highlights falls back to semantic runs.
func (e *Engine) Resolve(requestID string, blocks []types.MessageBlock, records []types.HighlightRecord) []BlockOverlay {
	AssignSpans(blocks, e.opts.SeparatorWidth)
	report := Validate(records, e.MessageText(blocks))

	for _, d := range report.Dropped {
		if e.opts.DevMode {
			e.log.Debug(logger.ComponentHighlight, logger.CategoryValidation, requestID, "Highlight dropped", map[string]interface{}{
				"id":     d.ID,
				"reason": d.Reason,
			})
		}
		if e.opts.OnDrop != nil {
			e.opts.OnDrop(d.Reason)
		}
	}
	if len(report.Mismatched) > 0 {
		e.log.Warn(logger.ComponentHighlight, logger.CategoryValidation, requestID, "Highlight text differs from its range", map[string]interface{}{
			"ids": report.Mismatched,
		})
	}

	hs := Dedupe(report.Valid, e.opts.DedupePrefix)
	var overlays []BlockOverlay
	for i, b := range blocks {
		if b.Kind() == types.KindCode {
			continue
		}
		start, end, _ := types.BlockSpan(b).Bounds()
		if end <= start {
			continue
		}
		text := plaintext.Block(b)

		local := Project(hs, start, end)
		for _, n := range local {
			n.Color = e.resolver.Resolve(n.Color)
		}
		tree := BuildTree(local)

		var runs []types.Run
		if len(tree) > 0 {
			runs = RenderRuns(text, tree)
		} else {
			runs = SemanticRuns(text, e.opts.Labels)
		}
		if !Decorated(runs) {
			continue
		}
		overlays = append(overlays, BlockOverlay{Index: i, Start: start, End: end, Tree: tree, Runs: runs})
	}

	e.log.Debug(logger.ComponentHighlight, logger.CategoryValidation, requestID, "Highlights resolved", map[string]interface{}{
		"records":  len(records),
		"valid":    len(hs),
		"dropped":  len(report.Dropped),
		"overlays": len(overlays),
	})
	return overlays
}

// Runs spreads overlays into per-block runs for a renderer, indexed like the
// n blocks they were resolved from
func Runs(overlays []BlockOverlay, n int) [][]types.Run {
	out := make([][]types.Run, n)
	for _, o := range overlays {
		if o.Index >= 0 && o.Index < n {
			out[o.Index] = o.Runs
		}
	}
	return out
}
