package friend

import "time"

// mockTimeProvider is a mock implementation of TimeProvider for testing.
type mockTimeProvider struct {
	fixedTime time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	return m.fixedTime
}

// advance moves the mock clock forward.
func (m *mockTimeProvider) advance(d time.Duration) {
	m.fixedTime = m.fixedTime.Add(d)
}
