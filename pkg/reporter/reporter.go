package reporter

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/caueb/chimas/pkg/types"
)

// Reporter defines the interface for rendering parsed scan results
type Reporter interface {
	// Write renders the result to the given writer
	Write(ctx context.Context, result *types.Result, writer io.Writer) error

	// Format returns the format this reporter outputs
	Format() string
}

// Registry holds the available reporters by format name.
type Registry struct {
	reporters map[string]Reporter
}

// NewRegistry creates an empty reporter registry
func NewRegistry() *Registry {
	return &Registry{reporters: make(map[string]Reporter)}
}

// Register registers a reporter under its own format name.
func (r *Registry) Register(rep Reporter) {
	r.reporters[rep.Format()] = rep
}

// Get returns the reporter for the given format
func (r *Registry) Get(format string) (Reporter, error) {
	rep, ok := r.reporters[format]
	if !ok {
		return nil, fmt.Errorf("unknown output format: %s (available: %v)", format, r.AvailableFormats())
	}
	return rep, nil
}

// AvailableFormats returns all registered format names, sorted.
func (r *Registry) AvailableFormats() []string {
	formats := make([]string, 0, len(r.reporters))
	for f := range r.reporters {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}
