package dispatch

import (
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/input-output-hk/hermes-sub003/internal/event"
)

// initAPINamespace is the guest-visible import module name for the one
// host-callable function spec.md §4.8 names explicitly: the init API's
// done(exit_code), by which a guest asks the queue to schedule shutdown.
const initAPINamespace = "hermes:init/api"

// InitAPIImports builds the ImportBuilder every module instantiation must
// include so guests can call done(exit_code), grounded on the teacher's
// registerHost/imports.Register(namespace, map[string]wasmer.IntoExtern{})
// idiom.
func InitAPIImports(q *event.Queue) func(store *wasmer.Store) *wasmer.ImportObject {
	return func(store *wasmer.Store) *wasmer.ImportObject {
		imports := wasmer.NewImportObject()

		done := wasmer.NewFunction(
			store,
			wasmer.NewFunctionType(
				wasmer.NewValueTypes(wasmer.I32),
				wasmer.NewValueTypes(),
			),
			func(args []wasmer.Value) ([]wasmer.Value, error) {
				q.RequestShutdown(int(args[0].I32()))
				return []wasmer.Value{}, nil
			},
		)

		imports.Register(initAPINamespace, map[string]wasmer.IntoExtern{
			"done": done,
		})
		return imports
	}
}
