package factory

import (
	"time"

	"github.com/mcoot/holdem-lobby/internal/dependencies/mocks"
	"github.com/mcoot/holdem-lobby/internal/metrics"
	"github.com/mcoot/holdem-lobby/internal/storage/memory"
	"github.com/mcoot/holdem-lobby/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, metrics.NoOp{}, withDefaults(Config{}), testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}
