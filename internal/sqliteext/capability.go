package sqliteext

import (
	"os"
	"path/filepath"

	"github.com/input-output-hk/hermes-sub003/internal/herrors"
	"github.com/input-output-hk/hermes-sub003/internal/resources"
	"github.com/input-output-hk/hermes-sub003/internal/runtimeext"
)

// Capability wires sqliteext into the runtime-extension registry
// (Component G): it opens an app's persistent database on AppInit. On
// AppFini it closes that database and every connection the guest opened
// through OpenGuestConnection, which discards any in-memory database
// (spec.md §4.6 table).
type Capability struct {
	stateDir    string
	persistent  *resources.ApplicationResourceManager[*Connection]
	inMemory    *resources.ApplicationResourceManager[*Connection]
	connections *resources.ApplicationResourceManager[*Connection]
}

// NewCapability creates a sqlite capability whose persistent databases live
// under stateDir/<app>.sqlite (spec.md §6 "persisted state layout").
func NewCapability(stateDir string) *Capability {
	closeConn := func(c *Connection) { _ = c.Close() }
	return &Capability{
		stateDir:    stateDir,
		persistent:  resources.New[*Connection](closeConn),
		inMemory:    resources.New[*Connection](closeConn),
		connections: resources.New[*Connection](closeConn),
	}
}

func (c *Capability) Name() string     { return "sqlite" }
func (c *Capability) Priority() int    { return runtimeext.PriorityAmbient }

func (c *Capability) AppInit(ctx runtimeext.RuntimeContext) error {
	c.persistent.AddApp(ctx.AppName)
	c.inMemory.AddApp(ctx.AppName)
	c.connections.AddApp(ctx.AppName)

	if err := ensureStateDir(c.stateDir); err != nil {
		return herrors.Wrap(err, "create sqlite state directory")
	}
	dbPath := filepath.Join(c.stateDir, ctx.AppName+".sqlite")
	conn, err := Open(dbPath, false)
	if err != nil {
		return herrors.Wrapf(err, "open persistent sqlite db for %s", ctx.AppName)
	}
	if _, err := c.persistent.CreateResource(ctx.AppName, conn); err != nil {
		return err
	}
	return nil
}

func (c *Capability) AppFini(ctx runtimeext.RuntimeContext) error {
	c.persistent.DropApp(ctx.AppName)
	c.inMemory.DropApp(ctx.AppName)
	c.connections.DropApp(ctx.AppName)
	return nil
}

// EventInit ensures the app's connection table exists even if AppInit was
// never called for it (spec.md §4.6 "per-event init: ensure app table").
func (c *Capability) EventInit(ctx runtimeext.RuntimeContext) {
	c.connections.AddApp(ctx.AppName)
}

func (c *Capability) EventFini(runtimeext.RuntimeContext) {}

// OpenGuestConnection implements the guest-visible "open(readonly, memory)"
// operation, returning a handle scoped to appName.
func (c *Capability) OpenGuestConnection(appName string, readonly, memory bool) (resources.Handle, error) {
	if memory {
		conn, err := Open(":memory:", readonly)
		if err != nil {
			return 0, err
		}
		return c.connections.CreateResource(appName, conn)
	}
	dbPath := filepath.Join(c.stateDir, appName+".sqlite")
	conn, err := Open(dbPath, readonly)
	if err != nil {
		return 0, err
	}
	return c.connections.CreateResource(appName, conn)
}

func (c *Capability) GetConnection(appName string, h resources.Handle) (*Connection, bool) {
	return c.connections.Get(appName, h)
}

func (c *Capability) CloseConnection(appName string, h resources.Handle) {
	c.connections.Drop(appName, h)
}

// ensureStateDir creates the state directory; AppInit calls it before
// opening the persistent database.
func ensureStateDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
