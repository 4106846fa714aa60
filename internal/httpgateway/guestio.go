package httpgateway

import (
	"encoding/json"
	"sync"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
)

// GuestRequest is the JSON shape handed to a guest export through
// get_request — the gateway's equivalent of spec.md's HttpGatewayReply/
// HttpAuthValidate payloads, for the one call that must return a value
// synchronously rather than flow through the event queue.
type GuestRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body,omitempty"`
}

// GuestResponse is what a guest export hands back via respond: either a
// direct response or an internal-redirect URL (spec.md §4.6.4).
type GuestResponse struct {
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     []byte            `json:"body,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

// callSlot carries one request/response pair across a single guest
// invocation. Safe for the single in-flight call an instance ever serves
// (spec.md §5: "within a single instance, no two events execute
// concurrently") — the mutex guards against the host and guest threads
// never actually racing here, not against genuine concurrent use.
type callSlot struct {
	mu         sync.Mutex
	request    []byte
	response   *GuestResponse
	bindMemory func(*wasmer.Memory)
}

func newCallSlot(req GuestRequest) (*callSlot, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, herrors.Wrap(err, "marshal guest request")
	}
	return &callSlot{request: b}, nil
}

const guestIONamespace = "hermes:http-gateway/api"

// ImportsFor builds the host imports that give a guest export access to
// slot's request and a way to deliver its response, following the
// teacher's memory-read/write host-function idiom (ptr/len pairs into the
// instance's exported linear memory).
func ImportsFor(slot *callSlot) func(store *wasmer.Store) *wasmer.ImportObject {
	return func(store *wasmer.Store) *wasmer.ImportObject {
		imports := wasmer.NewImportObject()

		// Imports must be built before the instance (and its memory export)
		// exists, so mem starts nil and is filled in by slot.bindMemory once
		// the caller has instantiated and resolved "memory".
		var mem *wasmer.Memory

		getRequestLen := wasmer.NewFunction(
			store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(wasmer.I32)),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				slot.mu.Lock()
				n := len(slot.request)
				slot.mu.Unlock()
				return []wasmer.Value{wasmer.NewI32(int32(n))}, nil
			},
		)

		getRequest := wasmer.NewFunction(
			store,
			wasmer.NewFunctionType(
				wasmer.NewValueTypes(wasmer.I32, wasmer.I32),
				wasmer.NewValueTypes(wasmer.I32),
			),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				if mem == nil {
					return []wasmer.Value{wasmer.NewI32(-1)}, nil
				}
				ptr, ln := args[0].I32(), args[1].I32()
				slot.mu.Lock()
				data := slot.request
				slot.mu.Unlock()
				n := int32(len(data))
				if ln < n {
					n = ln
				}
				copy(mem.Data()[ptr:ptr+n], data[:n])
				return []wasmer.Value{wasmer.NewI32(int32(len(data)))}, nil
			},
		)

		respond := wasmer.NewFunction(
			store,
			wasmer.NewFunctionType(
				wasmer.NewValueTypes(wasmer.I32, wasmer.I32),
				wasmer.NewValueTypes(wasmer.I32),
			),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				if mem == nil {
					return []wasmer.Value{wasmer.NewI32(-1)}, nil
				}
				ptr, ln := args[0].I32(), args[1].I32()
				raw := make([]byte, ln)
				copy(raw, mem.Data()[ptr:ptr+ln])
				var resp GuestResponse
				if err := json.Unmarshal(raw, &resp); err != nil {
					return []wasmer.Value{wasmer.NewI32(-1)}, nil
				}
				slot.mu.Lock()
				slot.response = &resp
				slot.mu.Unlock()
				return []wasmer.Value{wasmer.NewI32(0)}, nil
			},
		)

		imports.Register(guestIONamespace, map[string]wasmer.IntoExtern{
			"get-request-len": getRequestLen,
			"get-request":     getRequest,
			"respond":         respond,
		})

		slot.bindMemory = func(m *wasmer.Memory) { mem = m }
		return imports
	}
}
