package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	plandomain "github.com/joeycumines/go-plandomain"
	"github.com/joeycumines/go-plandomain/ground"
	"github.com/joeycumines/go-plandomain/problem"
)

// IW is an iterated-width solver: breadth-first search with novelty
// pruning, run at width 1 first, then 2, up to MaxWidth. A state is novel
// at width w when it contains at least one tuple of at most w (key, value)
// atoms never seen before in the current search; non-novel states are
// pruned. Duplicate states are additionally dropped by fingerprint.
type IW struct {
	// MaxWidth caps the novelty width. Zero means 2.
	MaxWidth int
	// MaxExpansions caps node expansions per width. Zero means unlimited.
	MaxExpansions int
	Logger        *slog.Logger
}

var _ Solver = (*IW)(nil)

func (s *IW) Name() string { return "iw" }

func (s *IW) Solve(ctx context.Context, d *plandomain.Domain) ([]*ground.Action, error) {
	maxWidth := s.MaxWidth
	if maxWidth <= 0 {
		maxWidth = 2
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for w := 1; w <= maxWidth; w++ {
		plan, err := s.search(ctx, d, w, logger)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, ErrNoPlan) {
			return nil, err
		}
		logger.Debug("width exhausted", "width", w)
	}
	return nil, ErrNoPlan
}

type iwNode struct {
	state  *plandomain.State
	parent *iwNode
	action *ground.Action
}

func (n *iwNode) plan() []*ground.Action {
	var depth int
	for cur := n; cur.action != nil; cur = cur.parent {
		depth++
	}
	out := make([]*ground.Action, depth)
	for cur := n; cur.action != nil; cur = cur.parent {
		depth--
		out[depth] = cur.action
	}
	return out
}

func (s *IW) search(ctx context.Context, d *plandomain.Domain, width int, logger *slog.Logger) ([]*ground.Action, error) {
	root := d.Reset()
	if ok, err := d.IsGoal(root); err != nil {
		return nil, err
	} else if ok {
		return nil, nil
	}

	seen := map[string]bool{root.Fingerprint(): true}
	novel := make(map[string]bool)
	recordNovel(novel, root, width)

	queue := []*iwNode{{state: root}}
	expansions := 0
	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		n := queue[0]
		queue = queue[1:]
		expansions++
		if s.MaxExpansions > 0 && expansions > s.MaxExpansions {
			logger.Debug("expansion limit reached", "width", width, "expansions", expansions)
			return nil, ErrNoPlan
		}

		acts, err := d.ApplicableActions(n.state)
		if err != nil {
			return nil, err
		}
		for _, a := range acts {
			next, err := d.Successor(n.state, a)
			if err != nil {
				var inap *plandomain.InapplicableActionError
				if errors.As(err, &inap) {
					continue
				}
				return nil, err
			}
			fp := next.Fingerprint()
			if seen[fp] {
				continue
			}
			seen[fp] = true
			child := &iwNode{state: next, parent: n, action: a}
			if ok, err := d.IsGoal(next); err != nil {
				return nil, err
			} else if ok {
				logger.Debug("goal reached", "width", width, "expansions", expansions, "depth", len(child.plan()))
				return child.plan(), nil
			}
			if !recordNovel(novel, next, width) {
				continue
			}
			queue = append(queue, child)
		}
	}
	return nil, ErrNoPlan
}

// recordNovel records every atom tuple of the state up to the given width
// and reports whether at least one was new.
func recordNovel(seen map[string]bool, s *plandomain.State, width int) bool {
	n := s.Len()
	novel := false
	for i := 0; i < n; i++ {
		a := atomKey(i, s.At(i))
		if !seen[a] {
			seen[a] = true
			novel = true
		}
		if width < 2 {
			continue
		}
		for j := i + 1; j < n; j++ {
			p := a + "|" + atomKey(j, s.At(j))
			if !seen[p] {
				seen[p] = true
				novel = true
			}
		}
	}
	return novel
}

func atomKey(i int, v problem.Value) string {
	return strconv.Itoa(i) + "=" + v.Encode()
}
