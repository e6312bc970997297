package hookrun

import (
	"errors"
	"fmt"

	"github.com/raphi011/hookrun/internal/metric"
)

// HookName identifies a dispatch point of the closed hook catalog.
type HookName string

const (
	HookPluginsLoaded         HookName = "pluginsLoaded"
	HookHandleFile            HookName = "handleFile"
	HookMatchPath             HookName = "matchPath"
	HookLoadTestsFromModule   HookName = "loadTestsFromModule"
	HookLoadTestsFromTestCase HookName = "loadTestsFromTestCase"
	HookLoadTestsFromName     HookName = "loadTestsFromName"
	HookLoadTestsFromNames    HookName = "loadTestsFromNames"
	HookGetTestCaseNames      HookName = "getTestCaseNames"
	HookRunnerCreated         HookName = "runnerCreated"
	HookStartTestRun          HookName = "startTestRun"
	HookStartTest             HookName = "startTest"
	HookAfterSetUp            HookName = "afterSetUp"
	HookOnTestFail            HookName = "onTestFail"
	HookBeforeTearDown        HookName = "beforeTearDown"
	HookStopTest              HookName = "stopTest"
	HookStopTestRun           HookName = "stopTestRun"
	HookMessage               HookName = "message"
	HookBeforeSummaryReport   HookName = "beforeSummaryReport"
	HookAfterSummaryReport    HookName = "afterSummaryReport"
)

// HookNames is the hook catalog in lifecycle order.
var HookNames = []HookName{
	HookPluginsLoaded,
	HookHandleFile,
	HookMatchPath,
	HookLoadTestsFromModule,
	HookLoadTestsFromTestCase,
	HookLoadTestsFromName,
	HookLoadTestsFromNames,
	HookGetTestCaseNames,
	HookRunnerCreated,
	HookStartTestRun,
	HookStartTest,
	HookAfterSetUp,
	HookOnTestFail,
	HookBeforeTearDown,
	HookStopTest,
	HookStopTestRun,
	HookMessage,
	HookBeforeSummaryReport,
	HookAfterSummaryReport,
}

var (
	ErrUnknownHook     = errors.New("unknown hook")
	ErrHandlerNotFound = errors.New("handler not found")
)

// Handler is invoked with the event of the hook it is registered on.
// A handler that wants to stop the dispatch marks the event as handled
// and its return value becomes the result of the dispatch.
type Handler func(e Event) any

// Binding is the handle of a registered handler. The same Handler
// registered twice yields two distinct bindings.
type Binding struct {
	hook    HookName
	handler Handler
}

// Hook returns the name of the hook the binding belongs to.
func (b *Binding) Hook() HookName {
	return b.hook
}

// Hooks is the registry of all dispatch points of a session.
type Hooks struct {
	handlers map[HookName][]*Binding
	disabled bool
}

func NewHooks() *Hooks {
	h := &Hooks{handlers: map[HookName][]*Binding{}}

	for _, name := range HookNames {
		h.handlers[name] = []*Binding{}
	}

	return h
}

// IsHook reports whether name is part of the catalog.
func (h *Hooks) IsHook(name HookName) bool {
	_, ok := h.handlers[name]
	return ok
}

// Register inserts handler in front of all handlers of the hook.
func (h *Hooks) Register(name HookName, handler Handler) (*Binding, error) {
	handlers, ok := h.handlers[name]
	if !ok {
		return nil, fmt.Errorf("registering handler on %q: %w", name, ErrUnknownHook)
	}
	if handler == nil {
		return nil, fmt.Errorf("registering nil handler on %q", name)
	}

	b := &Binding{hook: name, handler: handler}

	h.handlers[name] = append([]*Binding{b}, handlers...)

	return b, nil
}

// Unregister removes the first occurrence of b from the hook.
func (h *Hooks) Unregister(name HookName, b *Binding) error {
	handlers, ok := h.handlers[name]
	if !ok {
		return fmt.Errorf("unregistering handler from %q: %w", name, ErrUnknownHook)
	}

	for i, registered := range handlers {
		if registered == b {
			h.handlers[name] = append(handlers[:i:i], handlers[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("unregistering handler from %q: %w", name, ErrHandlerNotFound)
}

// Handlers returns the bindings of a hook in dispatch order.
func (h *Hooks) Handlers(name HookName) []*Binding {
	handlers := h.handlers[name]

	out := make([]*Binding, len(handlers))
	copy(out, handlers)

	return out
}

// SetEnabled turns dispatching on or off for every hook.
func (h *Hooks) SetEnabled(enabled bool) {
	h.disabled = !enabled
}

func (h *Hooks) Enabled() bool {
	return !h.disabled
}

// Dispatch calls the handlers of a hook, most recently registered first,
// until one of them marks the event as handled. Its return value is
// returned; nil means no handler took ownership of the event.
// Panics raised by handlers are not recovered.
func (h *Hooks) Dispatch(name HookName, e Event) any {
	if h.disabled {
		return nil
	}

	metric.HookDispatchTotal.WithLabelValues(string(name)).Inc()

	// handlers may (un)register themselves while running
	for _, b := range h.Handlers(name) {
		result := b.handler(e)

		if e.Handled() {
			return result
		}
	}

	return nil
}
