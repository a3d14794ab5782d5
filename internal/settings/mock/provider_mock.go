package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// ProviderMock mocks the settings.Provider interface
type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) ThrottleWindow(ctx context.Context) (time.Duration, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *ProviderMock) DisplayName(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *ProviderMock) CardUIDKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
