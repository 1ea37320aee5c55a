package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// kmsSchemes lists the keeper drivers linked into the binary.
var kmsSchemes = []string{"awskms", "azurekeyvault", "base64key", "gcpkms", "hashivault"}

// KMSService opens keepers for external KMS boundaries.
type KMSService interface {
	// OpenKeeper opens a keeper for keyURI. Opening does not contact the KMS.
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

type kmsService struct{}

// NewKMSService creates a KMSService backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	u, err := url.Parse(keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	if !slices.Contains(kmsSchemes, u.Scheme) {
		return nil, fmt.Errorf("failed to open KMS keeper: unsupported scheme %q (supported: %s)",
			u.Scheme, strings.Join(kmsSchemes, ", "))
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}
