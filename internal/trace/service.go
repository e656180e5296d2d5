// ABOUTME: Trace forest service over the trace store
// ABOUTME: Creation validates parentage; ancestor walks are lazy

package trace

import (
	"context"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/coven-directory/internal/store"
)

// Service exposes the execution trace forest.
type Service struct {
	store  store.TraceStore
	logger *slog.Logger
}

// NewService creates a trace service.
func NewService(s store.TraceStore) *Service {
	return &Service{
		store:  s,
		logger: slog.Default().With("component", "trace"),
	}
}

// Create appends a trace. An empty id is assigned a UUID. parentID may be
// empty for a root; otherwise it must name an existing trace, and the link is
// permanent once written.
func (s *Service) Create(ctx context.Context, id, parentID, payload string) (*store.Trace, error) {
	if id == "" {
		id = uuid.NewString()
	}

	trace := &store.Trace{
		ID:            id,
		ParentTraceID: parentID,
		Payload:       payload,
	}
	if err := s.store.CreateTrace(ctx, trace); err != nil {
		return nil, err
	}

	s.logger.Debug("trace created", "trace", trace.ID, "parent", parentID)
	return trace, nil
}

// Get looks up one trace.
func (s *Service) Get(ctx context.Context, id string) (*store.Trace, error) {
	return s.store.GetTrace(ctx, id)
}

// Children returns the direct children of a trace in creation order. The
// trace must exist, even when it has no children.
func (s *Service) Children(ctx context.Context, id string) ([]*store.Trace, error) {
	if _, err := s.store.GetTrace(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListChildren(ctx, id)
}

// Ancestors walks the parent chain of a trace, yielding the immediate parent
// first and ending at the root. Each step is read on demand, so callers that
// stop early never touch the rest of the chain. Parent links are written once
// and only toward pre-existing traces, so the walk always terminates.
//
// A lookup failure mid-walk is yielded as the error of the final pair.
func (s *Service) Ancestors(ctx context.Context, id string) iter.Seq2[*store.Trace, error] {
	return func(yield func(*store.Trace, error) bool) {
		current, err := s.store.GetTrace(ctx, id)
		if err != nil {
			yield(nil, err)
			return
		}

		for current.ParentTraceID != "" {
			parent, err := s.store.GetTrace(ctx, current.ParentTraceID)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(parent, nil) {
				return
			}
			current = parent
		}
	}
}

// Subtree walks all descendants of a trace in depth-first preorder. The
// starting trace itself is not yielded. Each node's children are fetched only
// when the walk reaches that node.
func (s *Service) Subtree(ctx context.Context, id string) iter.Seq2[*store.Trace, error] {
	return func(yield func(*store.Trace, error) bool) {
		if _, err := s.store.GetTrace(ctx, id); err != nil {
			yield(nil, err)
			return
		}

		stack := []*store.Trace{}
		push := func(parentID string) bool {
			children, err := s.store.ListChildren(ctx, parentID)
			if err != nil {
				yield(nil, err)
				return false
			}
			// Reverse so the pop order matches creation order.
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
			return true
		}

		if !push(id) {
			return
		}
		for len(stack) > 0 {
			next := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(next, nil) {
				return
			}
			if !push(next.ID) {
				return
			}
		}
	}
}
