// Package mocks provides mock implementations of the crypto service interfaces for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
)

// MockKeyProvider is a mock implementation of KeyProvider.
type MockKeyProvider struct {
	mock.Mock
}

// Name mocks the Name method of KeyProvider.
func (m *MockKeyProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

// EnsureKey mocks the EnsureKey method of KeyProvider.
func (m *MockKeyProvider) EnsureKey(ctx context.Context, alias string) (*cryptoDomain.KeyHandle, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.KeyHandle), args.Error(1)
}

// Encrypt mocks the Encrypt method of KeyProvider.
func (m *MockKeyProvider) Encrypt(
	ctx context.Context,
	handle *cryptoDomain.KeyHandle,
	plaintext []byte,
) ([]byte, []byte, error) {
	args := m.Called(ctx, handle, plaintext)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).([]byte), args.Error(2)
}

// Decrypt mocks the Decrypt method of KeyProvider.
func (m *MockKeyProvider) Decrypt(
	ctx context.Context,
	handle *cryptoDomain.KeyHandle,
	ciphertext, nonce []byte,
) ([]byte, error) {
	args := m.Called(ctx, handle, ciphertext, nonce)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Close mocks the Close method of KeyProvider.
func (m *MockKeyProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockKMSService is a mock implementation of KMSService.
type MockKMSService struct {
	mock.Mock
}

// OpenKeeper mocks the OpenKeeper method of KMSService.
func (m *MockKMSService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	args := m.Called(ctx, keyURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cryptoDomain.KMSKeeper), args.Error(1)
}

// MockKMSKeeper is a mock implementation of KMSKeeper.
type MockKMSKeeper struct {
	mock.Mock
}

// Encrypt mocks the Encrypt method of KMSKeeper.
func (m *MockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Decrypt mocks the Decrypt method of KMSKeeper.
func (m *MockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Close mocks the Close method of KMSKeeper.
func (m *MockKMSKeeper) Close() error {
	args := m.Called()
	return args.Error(0)
}
