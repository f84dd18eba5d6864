package auth

import "context"

// VerificationCache remembers recently verified keys so every admin
// request does not pay the full argon2 cost.
type VerificationCache interface {
	GetAdminVerified(ctx context.Context, key string) bool
	SetAdminVerified(ctx context.Context, key string) error
}

// AdminKeyVerifier checks presented keys against one configured hash.
type AdminKeyVerifier struct {
	hash  string
	cache VerificationCache
}

// NewAdminKeyVerifier creates a verifier. A nil cache disables caching.
func NewAdminKeyVerifier(hash string, cache VerificationCache) *AdminKeyVerifier {
	return &AdminKeyVerifier{hash: hash, cache: cache}
}

// Enabled reports whether an admin key hash is configured at all.
func (v *AdminKeyVerifier) Enabled() bool {
	return v.hash != ""
}

// VerifyAdminKey checks the key, consulting the cache first.
func (v *AdminKeyVerifier) VerifyAdminKey(ctx context.Context, key string) bool {
	if v.hash == "" || key == "" {
		return false
	}

	if v.cache != nil && v.cache.GetAdminVerified(ctx, key) {
		return true
	}

	ok, err := VerifyKey(key, v.hash)
	if err != nil || !ok {
		return false
	}

	if v.cache != nil {
		_ = v.cache.SetAdminVerified(ctx, key)
	}
	return true
}
