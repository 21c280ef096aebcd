package functions

import (
	"errors"

	"github.com/sinas-io/burrow/pkg/types"
)

// ErrNotFound is returned when no function exists under a namespace/name
var ErrNotFound = errors.New("function not found")

// ErrNotEligible is returned when a function exists but is inactive or not
// flagged for shared-pool execution
var ErrNotEligible = errors.New("function not eligible for shared pool execution")

// Directory resolves and manages registered function sources
type Directory interface {
	// Resolve returns the function iff it is active and shared-pool
	// eligible; otherwise ErrNotFound or ErrNotEligible.
	Resolve(namespace, name string) (*types.FunctionSource, error)

	Put(fn *types.FunctionSource) error
	Get(namespace, name string) (*types.FunctionSource, error)
	List() ([]*types.FunctionSource, error)
	ListNamespace(namespace string) ([]*types.FunctionSource, error)
	Delete(namespace, name string) error

	Close() error
}
