package weather

import "context"

// Source is the data-source contract shared by the live provider and the
// simulator. Absence of a reading is an explicit error; implementations
// never panic past this boundary.
type Source interface {
	Current(ctx context.Context) (*Reading, error)
}

// Current implements Source. The simulator always produces a reading.
func (s *Simulator) Current(_ context.Context) (*Reading, error) {
	return s.Generate(0), nil
}
