package presence

import "time"

// mockTimeProvider is a mock implementation of TimeProvider for testing.
type mockTimeProvider struct {
	fixedTime time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	return m.fixedTime
}
