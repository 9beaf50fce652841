package platform

//go:generate mockgen -destination=mocks/mocks.go -package=mocks socialflow/internal/platform Adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"socialflow/internal/domain"
)

// Adapter is the capability interface every platform integration
// implements. The core never assumes anything beyond this contract.
type Adapter interface {
	// Publish posts the item and returns the platform-native post id.
	Publish(ctx context.Context, item *domain.ContentItem) (string, error)
	// FetchRecentEvents returns engagement events observed since the
	// given time. The window may overlap previous calls; callers
	// deduplicate by native id.
	FetchRecentEvents(ctx context.Context, since time.Time) ([]domain.EngagementEvent, error)
	// SendResponse replies to the event identified by its native id.
	SendResponse(ctx context.Context, nativeEventID, text string) error
}

// TransientError marks a failure worth retrying: timeouts, rate limits,
// 5xx-equivalents.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that will not succeed on retry:
// validation or auth problems.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// FatalError marks a misconfiguration that prevents any call at all. It
// aborts the current pass without touching persisted state.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

func Transient(format string, args ...any) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

func Permanent(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

func Fatal(format string, args ...any) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Registry holds one adapter per configured platform.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(name string, a Adapter) {
	r.adapters[name] = a
}

// Get returns the adapter for a platform, or a FatalError when none is
// configured.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, Fatal("no adapter configured for platform %q", name)
	}
	return a, nil
}

func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
