package runtimeext

import (
	"bytes"
	"sync"

	"github.com/input-output-hk/hermes-sub003/internal/resources"
)

// Stream is an in/out byte stream handle, backed by an in-memory buffer for
// the in-process case (spec.md §4.6's "streams (in/out)" capability).
type Stream struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Read(p)
}

// StreamsCapability creates a resource table per app on init and drops it
// on fini, per spec.md §4.6.
type StreamsCapability struct {
	mgr *resources.ApplicationResourceManager[*Stream]
}

func NewStreamsCapability() *StreamsCapability {
	return &StreamsCapability{mgr: resources.New[*Stream](nil)}
}

func (s *StreamsCapability) Name() string     { return "streams" }
func (s *StreamsCapability) Priority() int    { return PriorityAmbient }

func (s *StreamsCapability) AppInit(ctx RuntimeContext) error {
	s.mgr.AddApp(ctx.AppName)
	return nil
}

func (s *StreamsCapability) AppFini(ctx RuntimeContext) error {
	s.mgr.DropApp(ctx.AppName)
	return nil
}

// Open creates a new stream for the app and returns its handle.
func (s *StreamsCapability) Open(appName string) (resources.Handle, error) {
	return s.mgr.CreateResource(appName, &Stream{})
}

// Get resolves a stream handle back to its Stream.
func (s *StreamsCapability) Get(appName string, h resources.Handle) (*Stream, bool) {
	return s.mgr.Get(appName, h)
}

// Close drops the stream handle.
func (s *StreamsCapability) Close(appName string, h resources.Handle) {
	s.mgr.Drop(appName, h)
}
