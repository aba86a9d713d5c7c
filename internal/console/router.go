package console

import (
	"sync"

	"github.com/carepulse/console/internal/platform/gateway"
)

// Router tracks which view the rendering layer is showing. The gateway
// client asks it for the current view and tells it to redirect on session
// expiry; the rendering layer follows Redirects through OnRedirect.
type Router struct {
	mu        sync.Mutex
	view      string
	listeners []func(view string)
}

// NewRouter starts on view.
func NewRouter(view string) *Router {
	return &Router{view: view}
}

// CurrentView implements gateway.Navigator.
func (r *Router) CurrentView() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Show records that the rendering layer moved to view.
func (r *Router) Show(view string) {
	r.mu.Lock()
	r.view = view
	r.mu.Unlock()
}

// Redirect implements gateway.Navigator.
func (r *Router) Redirect(view string) {
	r.mu.Lock()
	r.view = view
	listeners := append([]func(string){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}

// OnRedirect registers fn to run after every Redirect.
func (r *Router) OnRedirect(fn func(view string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

var _ gateway.Navigator = (*Router)(nil)
