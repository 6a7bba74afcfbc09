package event

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/viant/afs"

	"scrapeflow/service/messaging"
	"scrapeflow/service/messaging/fs"
	"scrapeflow/service/messaging/memory"
)

// Service vends per-payload-type queues, publishers and listeners. While an
// untyped listener is installed (SetListener), every typed publisher mirrors
// its events onto an untyped "any" queue, so a single listener can observe
// the whole lifecycle.
type Service struct {
	publisher         *Publisher[any]
	listener          *Listener[any]
	mirroring         *atomic.Bool
	typedPublishers   map[reflect.Type]any
	typedListeners    map[reflect.Type]any
	mux               *sync.RWMutex
	queueVendor       messaging.Vendor
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
}

// Option customises the event service.
type Option func(s *Service)

// WithFsQueueConfig sets the filesystem queue configuration factory.
func WithFsQueueConfig(newConfig func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsNewQueueConfig = newConfig
	}
}

// WithMemoryQueueConfig sets the memory queue configuration factory.
func WithMemoryQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = newConfig
	}
}

// SetListener replaces the untyped listener observing every published event
// and enables mirroring of typed events onto the untyped queue.
func (s *Service) SetListener(handler func(*Event[any])) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[any](s.publisher, handler)
	s.listener.Start()
	s.mirroring.Store(true)
}

// Shutdown stops every running listener.
func (s *Service) Shutdown() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		s.mirroring.Store(false)
		s.listener.Stop()
		s.listener = nil
	}
	for key, value := range s.typedListeners {
		if stopper, ok := value.(interface{ Stop() }); ok {
			stopper.Stop()
		}
		delete(s.typedListeners, key)
	}
}

// New creates an event service backed by the supplied queue vendor.
func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:     queueVendor,
		mirroring:       &atomic.Bool{},
		typedPublishers: make(map[reflect.Type]any),
		typedListeners:  make(map[reflect.Type]any),
		mux:             &sync.RWMutex{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	switch queueVendor {
	case "fs":
		if ret.fsNewQueueConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires a queue config factory")
		}
	case "memory":
		if ret.memNewQueueConfig == nil {
			ret.memNewQueueConfig = func(string) memory.Config { return memory.DefaultConfig() }
		}
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}

	queue, err := QueueOf[Event[any]](ret, "any")
	if err != nil {
		return nil, err
	}
	ret.publisher = NewPublisher[any](queue)
	return ret, nil
}

// QueueOf creates a queue for the given payload type using the service's
// vendor.
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case "fs":
		return fs.NewQueue[T](afs.New(), s.fsNewQueueConfig(name))
	case "memory":
		return memory.NewQueue[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	var t T
	rType := reflect.TypeOf(t)
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// SetListenerOf installs a typed listener, replacing any previous listener of
// the same payload type.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) error {
	key := keyOf[T]()
	s.mux.RLock()
	previous, ok := s.typedListeners[key]
	s.mux.RUnlock()
	if ok {
		previous.(*Listener[T]).Stop()
	}
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	listener := NewListener[T](publisher, handler)
	s.mux.Lock()
	s.typedListeners[key] = listener
	listener.Start()
	s.mux.Unlock()
	return nil
}

// PublisherOf returns (creating on first use) the publisher for the payload
// type.
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, key.String())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	publisher.anyQueue = s.publisher.queue
	publisher.mirroring = s.mirroring
	s.mux.Lock()
	s.typedPublishers[key] = publisher
	s.mux.Unlock()
	return publisher, nil
}
