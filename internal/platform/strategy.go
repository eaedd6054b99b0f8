package platform

import (
	"context"

	"hostmon/internal/snapshot"
)

// Strategy is a named service table plus an optional extension. Every
// variant is one of these; only the probe and the extension differ.
type Strategy struct {
	name  string
	table *ServiceTable
	ext   snapshot.ExtensionSource
}

// NewStrategy builds a strategy. ext may be nil.
func NewStrategy(name string, table *ServiceTable, ext snapshot.ExtensionSource) *Strategy {
	return &Strategy{name: name, table: table, ext: ext}
}

func (s *Strategy) Name() string { return s.name }

// Services checks the strategy's service table
func (s *Strategy) Services(ctx context.Context) (map[string]bool, error) {
	return s.table.Check(ctx)
}

// Extension returns the extension providers or a nil interface
func (s *Strategy) Extension() snapshot.ExtensionSource {
	if s.ext == nil {
		return nil
	}
	return s.ext
}
