package resources

import "testing"

func TestCreateGetDrop(t *testing.T) {
	m := New[string](nil)
	m.AddApp("appA")

	h1, err := m.CreateResource("appA", "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h2, err := m.CreateResource("appA", "second")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected distinct handles, got %v and %v", h1, h2)
	}

	v, ok := m.Get("appA", h1)
	if !ok || v != "first" {
		t.Fatalf("get h1 = %q, %v", v, ok)
	}

	m.Drop("appA", h1)
	if _, ok := m.Get("appA", h1); ok {
		t.Fatalf("expected h1 to be gone after drop")
	}
	if _, ok := m.Get("appA", h2); !ok {
		t.Fatalf("expected h2 to survive drop of h1")
	}
}

func TestIsolationBetweenApps(t *testing.T) {
	m := New[int](nil)
	m.AddApp("appA")
	m.AddApp("appB")
	hA, err := m.CreateResource("appA", 1)
	if err != nil {
		t.Fatalf("create appA: %v", err)
	}
	hB, err := m.CreateResource("appB", 2)
	if err != nil {
		t.Fatalf("create appB: %v", err)
	}
	if hA != hB {
		t.Skip("handles happened not to collide; isolation still holds below")
	}
	if _, ok := m.Get("appB", hA); ok {
		// Only meaningful when hA/hB share a numeric value; Get is scoped by
		// app name so a colliding handle resolves to appB's own entry under
		// appB, never to appA's.
		if v, _ := m.Get("appB", hA); v != 2 {
			t.Fatalf("cross-app handle returned wrong value")
		}
	}
}

func TestDropAppInvokesDestructorForEveryEntry(t *testing.T) {
	var closed []string
	m := New[string](func(v string) { closed = append(closed, v) })
	m.AddApp("appA")
	m.CreateResource("appA", "x")
	m.CreateResource("appA", "y")

	m.DropApp("appA")

	if len(closed) != 2 {
		t.Fatalf("expected 2 destructor calls, got %d", len(closed))
	}
	if m.Count("appA") != 0 {
		t.Fatalf("expected app table to be gone")
	}
}

func TestDropUnknownHandleIsNoop(t *testing.T) {
	m := New[int](nil)
	m.AddApp("appA")
	m.Drop("appA", Handle(999))
	m.Drop("unknown-app", Handle(1))
}

// TestCreateResourceRequiresAddApp pins spec.md §4.5 property 5:
// drop_app(app); create_resource(app, _) only succeeds after another
// add_app(app) — an app table is never implicitly created.
func TestCreateResourceRequiresAddApp(t *testing.T) {
	m := New[int](nil)
	if _, err := m.CreateResource("appA", 1); err == nil {
		t.Fatalf("expected error creating a resource for an app with no table")
	}

	m.AddApp("appA")
	if _, err := m.CreateResource("appA", 1); err != nil {
		t.Fatalf("create after add_app: %v", err)
	}

	m.DropApp("appA")
	if _, err := m.CreateResource("appA", 1); err == nil {
		t.Fatalf("expected error creating a resource after drop_app without a fresh add_app")
	}
}
