package core

import (
	"context"
	"sync"

	"github.com/wickrt/wick/operation"
	"github.com/wickrt/wick/packet"
)

// mergeState is the cross-call memory a single `merge` node instance needs:
// "emits ... the last non-done packet seen on that input" only makes sense
// if a node remembers what it last saw across calls, since each Start
// drains only the packets that arrived since the previous call. Keyed by
// tx_id + node reference so concurrent transactions and distinct merge
// nodes never share state.
type mergeState struct {
	mu     sync.Mutex
	values map[string]any
	closed map[string]bool
}

type mergeRegistry struct {
	mu     sync.Mutex
	states map[string]*mergeState
}

func (r *mergeRegistry) get(key string) *mergeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[key]
	if !ok {
		st = &mergeState{values: make(map[string]any), closed: make(map[string]bool)}
		r.states[key] = st
	}
	return st
}

func (r *mergeRegistry) forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, key)
}

// Merge is the `merge` operation of spec §4.8: a dynamic operation whose
// inputs are named by its node's own configuration. It emits one `output`
// object with a field per declared input, set to the last non-done value
// seen on that input, once every input has produced at least one packet —
// and re-emits on every subsequent arrival thereafter.
func (h *Handler) Merge(ctx context.Context, inv operation.Invocation, config map[string]any, callback operation.Callback) (<-chan packet.Packet, error) {
	declared, err := inputNames(config["inputs"])
	if err != nil {
		return nil, err
	}
	key := inv.TxID + "|" + inv.Target.String()
	st := h.merges.get(key)

	out := make(chan packet.Packet, 4)
	go func() {
		defer close(out)
		for p := range inv.Input {
			st.mu.Lock()
			if p.IsDone() {
				st.closed[p.Port()] = true
			} else if !p.IsNoop() {
				v, derr := decode(p)
				if derr == nil {
					st.values[p.Port()] = v
				}
			}
			allPresent := len(declared) > 0 && len(st.values) >= len(declared)
			allClosed := len(declared) > 0 && len(st.closed) >= len(declared)
			snapshot := make(map[string]any, len(st.values))
			for k, v := range st.values {
				snapshot[k] = v
			}
			st.mu.Unlock()

			if allPresent {
				select {
				case out <- encode("output", snapshot):
				case <-ctx.Done():
					return
				}
			}
			if allClosed {
				select {
				case out <- packet.Done("output"):
				case <-ctx.Done():
				}
				h.merges.forget(key)
				return
			}
		}
	}()
	return out, nil
}

func inputNames(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		if strs, ok := raw.([]string); ok {
			return strs, nil
		}
		return nil, errMergeRequiresInputs
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			names = append(names, s)
		}
	}
	return names, nil
}

var errMergeRequiresInputs = &mergeConfigError{}

type mergeConfigError struct{}

func (*mergeConfigError) Error() string {
	return "core: merge requires a config 'inputs' array naming its input ports"
}
