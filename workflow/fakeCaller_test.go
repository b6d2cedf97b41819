package workflow

import (
	"context"
	"encoding/json"
	"sync"
)

type rpcCall struct {
	fn   string
	args map[string]any
}

// fakeCaller answers RPCs from canned JSON and records every call.
type fakeCaller struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []rpcCall
	// optional hook run before answering, used to mutate responses between calls
	onCall func(fn string, args map[string]any)
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeCaller) Call(_ context.Context, fn string, args map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rpcCall{fn: fn, args: args})
	if f.onCall != nil {
		f.onCall(fn, args)
	}
	if err := f.errs[fn]; err != nil {
		return nil, err
	}
	body, ok := f.responses[fn]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(body), nil
}

func (f *fakeCaller) functions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.fn)
	}
	return out
}

func (f *fakeCaller) last(fn string) (rpcCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].fn == fn {
			return f.calls[i], true
		}
	}
	return rpcCall{}, false
}
