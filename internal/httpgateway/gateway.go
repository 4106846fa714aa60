// Package httpgateway implements Component M: the HTTP ingress that
// converts inbound requests into guest invocations, consulting a
// path/method auth policy table ahead of dispatch (spec.md §4.6.4).
package httpgateway

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
	"github.com/input-output-hk/hermes-sub003/internal/wasmhost"
)

// route binds a registered chi pattern to the app/module pair it invokes
// and the auth module consulted when the policy table requires it.
type route struct {
	appName      string
	moduleID     string
	authModuleID string
}

// Gateway is the chi-routed HTTP ingress. Register modules with
// RegisterModule, routes with Handle, then use it as an http.Handler.
type Gateway struct {
	router   chi.Router
	policies *PolicyTable

	mu      sync.RWMutex
	modules map[string]map[string]*wasmhost.Module // appName -> moduleID -> compiled module

	// caller performs one guest invocation; it defaults to gw.invoke and
	// is overridable in tests that want to exercise routing/auth logic
	// without a real compiled wasm export to call.
	caller func(ctx context.Context, appName, moduleID, export string, req GuestRequest) (GuestResponse, error)
}

// New builds a Gateway with request logging wired the way the teacher's
// walletserver middleware.Logger does it, adapted to chi's middleware
// signature (identical to net/http's, so the port is direct).
func New(policies *PolicyTable) *Gateway {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	gw := &Gateway{router: r, policies: policies, modules: make(map[string]map[string]*wasmhost.Module)}
	gw.caller = gw.invoke
	return gw
}

func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) { gw.router.ServeHTTP(w, r) }

// RegisterModule makes a compiled guest module available to invoke under
// appName/moduleID — both business "reply" modules and dedicated
// "validate_auth" auth modules are registered the same way.
func (gw *Gateway) RegisterModule(appName, moduleID string, mod *wasmhost.Module) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	m, ok := gw.modules[appName]
	if !ok {
		m = make(map[string]*wasmhost.Module)
		gw.modules[appName] = m
	}
	m[moduleID] = mod
}

func (gw *Gateway) moduleFor(appName, moduleID string) (*wasmhost.Module, bool) {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	m, ok := gw.modules[appName]
	if !ok {
		return nil, false
	}
	mod, ok := m[moduleID]
	return mod, ok
}

// Handle registers pattern+method against appName/moduleID; authModuleID
// is only consulted when the policy table's Match for this route is not
// AuthNone.
func (gw *Gateway) Handle(method, pattern, appName, moduleID, authModuleID string) {
	rt := route{appName: appName, moduleID: moduleID, authModuleID: authModuleID}
	gw.router.MethodFunc(method, pattern, gw.handler(rt))
}

func (gw *Gateway) handler(rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := GuestRequest{Method: r.Method, Path: r.URL.Path, Headers: flattenHeader(r.Header), Body: body}

		level := gw.policies.Match(r.Method, r.URL.Path)

		if level != AuthNone {
			authResp, err := gw.caller(r.Context(), rt.appName, rt.authModuleID, "validate_auth", req)
			if err != nil {
				logrus.WithError(err).Warn("auth module invocation failed")
				http.Error(w, "auth unavailable", http.StatusBadGateway)
				return
			}
			if level == AuthRequired && (authResp.Status < 200 || authResp.Status >= 300) {
				writeGuestResponse(w, authResp)
				return
			}
		}

		resp, err := gw.caller(r.Context(), rt.appName, rt.moduleID, "reply", req)
		if err != nil {
			logrus.WithError(err).Warn("business module invocation failed")
			http.Error(w, "module unavailable", http.StatusBadGateway)
			return
		}
		if resp.Redirect != "" {
			http.Redirect(w, r, resp.Redirect, http.StatusFound)
			return
		}
		writeGuestResponse(w, resp)
	}
}

// invoke instantiates a fresh instance of appName/moduleID wired to a
// dedicated callSlot, calls export, and returns whatever the guest passed
// to respond.
func (gw *Gateway) invoke(ctx context.Context, appName, moduleID, export string, req GuestRequest) (GuestResponse, error) {
	mod, ok := gw.moduleFor(appName, moduleID)
	if !ok {
		return GuestResponse{}, herrors.Wrapf(herrors.ErrCapabilityUnavailable, "no module registered for %s/%s", appName, moduleID)
	}
	slot, err := newCallSlot(req)
	if err != nil {
		return GuestResponse{}, err
	}
	inst, err := mod.Instantiate(ImportsFor(slot))
	if err != nil {
		return GuestResponse{}, err
	}
	if mem := inst.Memory(); mem != nil {
		slot.bindMemory(mem)
	}
	if !inst.HasExport(export) {
		return GuestResponse{}, herrors.Wrapf(herrors.ErrResourceNotFound, "module %s/%s has no %s export", appName, moduleID, export)
	}
	if _, err := inst.Call(export); err != nil {
		return GuestResponse{}, herrors.Wrapf(err, "invoke %s/%s.%s", appName, moduleID, export)
	}
	slot.mu.Lock()
	resp := slot.response
	slot.mu.Unlock()
	if resp == nil {
		return GuestResponse{}, herrors.Wrapf(herrors.ErrMisuse, "module %s/%s.%s never called respond", appName, moduleID, export)
	}
	return *resp, nil
}

func writeGuestResponse(w http.ResponseWriter, resp GuestResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
