// Package mocks provides mock implementations of the crypto use case interfaces for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// MockWrappedKeyRepository is a mock implementation of WrappedKeyRepository.
type MockWrappedKeyRepository struct {
	mock.Mock
}

// Has mocks the Has method of WrappedKeyRepository.
func (m *MockWrappedKeyRepository) Has(ctx context.Context, alias string) (bool, error) {
	args := m.Called(ctx, alias)
	return args.Bool(0), args.Error(1)
}

// Load mocks the Load method of WrappedKeyRepository.
func (m *MockWrappedKeyRepository) Load(ctx context.Context, alias string) (*cryptoDomain.WrappedKeyRecord, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.WrappedKeyRecord), args.Error(1)
}

// Create mocks the Create method of WrappedKeyRepository.
func (m *MockWrappedKeyRepository) Create(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// Save mocks the Save method of WrappedKeyRepository.
func (m *MockWrappedKeyRepository) Save(ctx context.Context, record *cryptoDomain.WrappedKeyRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// Delete mocks the Delete method of WrappedKeyRepository.
func (m *MockWrappedKeyRepository) Delete(ctx context.Context, alias string) error {
	args := m.Called(ctx, alias)
	return args.Error(0)
}

// MockEnvelopeUseCase is a mock implementation of EnvelopeUseCase.
type MockEnvelopeUseCase struct {
	mock.Mock
}

// ObtainDataKey mocks the ObtainDataKey method of EnvelopeUseCase.
func (m *MockEnvelopeUseCase) ObtainDataKey(ctx context.Context) (*cryptoDomain.DataKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.DataKey), args.Error(1)
}

// WithDataKey mocks the WithDataKey method of EnvelopeUseCase. When the first return value
// is a []byte, it is passed to fn.
func (m *MockEnvelopeUseCase) WithDataKey(ctx context.Context, fn func(key []byte) error) error {
	args := m.Called(ctx, fn)
	if key, ok := args.Get(0).([]byte); ok {
		if err := fn(key); err != nil {
			return err
		}
	}
	return args.Error(1)
}

// Status mocks the Status method of EnvelopeUseCase.
func (m *MockEnvelopeUseCase) Status(ctx context.Context) (*cryptoDomain.KeyStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.KeyStatus), args.Error(1)
}

// Reset mocks the Reset method of EnvelopeUseCase.
func (m *MockEnvelopeUseCase) Reset(ctx context.Context, confirm bool) error {
	args := m.Called(ctx, confirm)
	return args.Error(0)
}
