package hookrun

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"weak"
)

// InterruptHandler stops all registered results on the first interrupt.
// A second interrupt before Reset falls back to the default action of
// the signal. Results are held weakly so that registering a result does
// not keep it alive.
type InterruptHandler struct {
	mu        sync.Mutex
	results   map[weak.Pointer[Result]]struct{}
	installed bool
	called    bool
	signals   chan os.Signal
	done      chan struct{}

	// defaultHandler is invoked on the second interrupt.
	defaultHandler func(sig os.Signal)
	log            *slog.Logger
}

func newInterruptHandler(log *slog.Logger) *InterruptHandler {
	return &InterruptHandler{
		results:        map[weak.Pointer[Result]]struct{}{},
		defaultHandler: raiseDefault,
		log:            log,
	}
}

// Register tracks r until it is garbage collected or removed.
func (h *InterruptHandler) Register(r *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results[weak.Make(r)] = struct{}{}
}

func (h *InterruptHandler) Remove(r *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.results, weak.Make(r))
}

// Live returns the number of registered results that are still reachable.
func (h *InterruptHandler) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prune()

	return len(h.results)
}

func (h *InterruptHandler) prune() {
	for p := range h.results {
		if p.Value() == nil {
			delete(h.results, p)
		}
	}
}

// Install starts listening for interrupts. Calling it again is a no-op.
func (h *InterruptHandler) Install() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.installed {
		return
	}

	h.installed = true
	h.signals = make(chan os.Signal, 1)
	h.done = make(chan struct{})

	signal.Notify(h.signals, os.Interrupt)

	go func(signals <-chan os.Signal, done <-chan struct{}) {
		for {
			select {
			case sig := <-signals:
				h.Handle(sig)
			case <-done:
				return
			}
		}
	}(h.signals, h.done)
}

// Installed reports whether interrupts are currently caught.
func (h *InterruptHandler) Installed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.installed
}

// Uninstall restores the default interrupt behaviour.
func (h *InterruptHandler) Uninstall() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.installed {
		return
	}

	signal.Stop(h.signals)
	close(h.done)

	h.installed = false
	h.called = false
}

// Reset arms the handler again after an interrupt was acted upon.
func (h *InterruptHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.called = false
}

// Handle reacts to an interrupt.
func (h *InterruptHandler) Handle(sig os.Signal) {
	h.mu.Lock()

	if h.called {
		h.mu.Unlock()

		h.log.Warn("second interrupt received, aborting")
		h.defaultHandler(sig)

		return
	}

	h.called = true

	h.prune()

	for p := range h.results {
		if r := p.Value(); r != nil {
			r.Stop()
		}
	}

	h.mu.Unlock()

	h.log.Info("interrupt received, stopping after the current test")
}

// raiseDefault restores the default disposition of sig and delivers it
// to the process again.
func raiseDefault(sig os.Signal) {
	signal.Reset(sig)

	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		os.Exit(130)
	}

	if err := p.Signal(sig); err != nil {
		os.Exit(130)
	}
}
