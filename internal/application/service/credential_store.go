// Package service implements the application-level CredentialStore: the
// register/rotate/remove/list/quota operations the HTTP layer calls,
// backed by a StorageBackend and fronted by a short-lived read cache.
package service

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/genlayerlabs/glvault/internal/domain/models"
	"github.com/genlayerlabs/glvault/internal/domain/service"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

var aliasPattern = regexp.MustCompile(models.AliasPattern)

// cacheTTL bounds how long a record may sit in the in-process cache before
// it is read from the backend again. Only records (with their encrypted
// material) are cached; plaintext is never cached.
const cacheTTL = 30 * time.Second

// CredentialStore implements service.CredentialStore against a
// StorageBackend, with a read-through cache for record lookups. GetPlaintext
// decrypts on every call.
type CredentialStore struct {
	backend  service.StorageBackend
	crypto   service.CryptoService
	cache    *gocache.Cache
	log      logger.Logger
	windowMs int64
}

// NewCredentialStore builds a CredentialStore over backend and crypto.
// windowMs is the fixed quota window applied by IncrementUsage.
func NewCredentialStore(backend service.StorageBackend, cryptoSvc service.CryptoService, log logger.Logger, windowMs time.Duration) *CredentialStore {
	return &CredentialStore{
		backend:  backend,
		crypto:   cryptoSvc,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
		log:      log,
		windowMs: windowMs.Milliseconds(),
	}
}

func recordKey(alias string) string { return "glvault:key:" + alias }

func (s *CredentialStore) loadIndex(ctx context.Context) (*models.AliasIndex, error) {
	raw, err := s.backend.Get(ctx, "glvault:index")
	if err != nil {
		if ve, ok := vaulterr.As(err); ok && ve.Code() == "NOT_FOUND" {
			return &models.AliasIndex{}, nil
		}
		return nil, err
	}
	var idx models.AliasIndex
	if err := json.Unmarshal([]byte(raw), &idx); err != nil {
		return nil, vaulterr.BackendFail("alias index corrupt").WithCause(err)
	}
	return &idx, nil
}

func (s *CredentialStore) saveIndex(ctx context.Context, idx *models.AliasIndex) error {
	raw, err := json.Marshal(idx)
	if err != nil {
		return vaulterr.BackendFail("alias index marshal failed").WithCause(err)
	}
	return s.backend.Set(ctx, "glvault:index", string(raw))
}

func (s *CredentialStore) loadRecord(ctx context.Context, alias string) (*models.CredentialRecord, error) {
	raw, err := s.backend.Get(ctx, recordKey(alias))
	if err != nil {
		return nil, err
	}
	var rec models.CredentialRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, vaulterr.BackendFail("credential record corrupt").WithCause(err)
	}
	return &rec, nil
}

func (s *CredentialStore) saveRecord(ctx context.Context, rec *models.CredentialRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return vaulterr.BackendFail("credential record marshal failed").WithCause(err)
	}
	s.cache.Delete(recordKey(rec.Alias))
	return s.backend.Set(ctx, recordKey(rec.Alias), string(raw))
}

// Register creates a new credential under alias. ALREADY_EXISTS if alias is
// already registered; INVALID_INPUT if alias fails the alias pattern.
func (s *CredentialStore) Register(ctx context.Context, alias, plaintext, baseURL string, quotaLimit int64, owner string) (*models.CredentialRecord, error) {
	if !aliasPattern.MatchString(alias) {
		return nil, vaulterr.InvalidInput("alias must match " + models.AliasPattern)
	}

	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	if idx.Contains(alias) {
		return nil, vaulterr.AlreadyExists("alias already registered: " + alias)
	}

	ciphertext, iv, authTag, err := s.crypto.Encrypt([]byte(plaintext))
	if err != nil {
		return nil, err
	}

	rec := models.NewCredentialRecord(alias, baseURL, ciphertext, iv, authTag, quotaLimit, owner)
	if err := s.saveRecord(ctx, rec); err != nil {
		return nil, err
	}

	idx.Add(alias)
	if err := s.saveIndex(ctx, idx); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "credential registered", logger.Fields{"alias": alias})
	return rec, nil
}

// GetRecord returns the stored record for alias, including encrypted
// material. Callers that only need plaintext should use GetPlaintext.
func (s *CredentialStore) GetRecord(ctx context.Context, alias string) (*models.CredentialRecord, error) {
	if cached, ok := s.cache.Get(recordKey(alias)); ok {
		rec := cached.(models.CredentialRecord)
		return &rec, nil
	}
	rec, err := s.loadRecord(ctx, alias)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(recordKey(alias), *rec)
	return rec, nil
}

// GetPlaintext decrypts and returns the raw credential value for alias.
func (s *CredentialStore) GetPlaintext(ctx context.Context, alias string) (string, error) {
	rec, err := s.GetRecord(ctx, alias)
	if err != nil {
		return "", err
	}
	plaintext, err := s.crypto.Decrypt(rec.Ciphertext, rec.IV, rec.AuthTag)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Rotate re-encrypts newPlaintext under a fresh IV, preserving quota and
// ownership fields. NOT_FOUND if alias isn't registered.
func (s *CredentialStore) Rotate(ctx context.Context, alias, newPlaintext string) (*models.CredentialRecord, error) {
	rec, err := s.loadRecord(ctx, alias)
	if err != nil {
		return nil, err
	}

	ciphertext, iv, authTag, err := s.crypto.Encrypt([]byte(newPlaintext))
	if err != nil {
		return nil, err
	}
	rec.Rotate(ciphertext, iv, authTag)

	if err := s.saveRecord(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "credential rotated", logger.Fields{"alias": alias})
	return rec, nil
}

// Remove deletes alias's record and unlists it from the alias index.
func (s *CredentialStore) Remove(ctx context.Context, alias string) error {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return err
	}
	if !idx.Remove(alias) {
		return vaulterr.NotFound("alias not found: " + alias)
	}
	if err := s.saveIndex(ctx, idx); err != nil {
		return err
	}
	s.cache.Delete(recordKey(alias))
	if err := s.backend.Delete(ctx, recordKey(alias)); err != nil {
		return err
	}
	s.log.Info(ctx, "credential removed", logger.Fields{"alias": alias})
	return nil
}

// List returns every registered alias's safe summary, omitting encrypted material.
func (s *CredentialStore) List(ctx context.Context) ([]models.CredentialSummary, error) {
	idx, err := s.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.CredentialSummary, 0, len(idx.Aliases))
	for _, alias := range idx.Aliases {
		rec, err := s.loadRecord(ctx, alias)
		if err != nil {
			continue
		}
		out = append(out, rec.Summary())
	}
	return out, nil
}

// IncrementUsage applies the fixed-window quota counter: if the current
// window has expired, it resets quota_used and quota_window_start before
// counting this call. An over-quota call is rejected without mutation and
// reports the window length as its retry hint. NOT_FOUND if alias isn't
// registered.
func (s *CredentialStore) IncrementUsage(ctx context.Context, alias string) (bool, int64, int64, error) {
	rec, err := s.loadRecord(ctx, alias)
	if err != nil {
		return false, 0, 0, err
	}

	nowMs := time.Now().UTC().UnixMilli()
	windowMs := s.windowMs

	if nowMs-rec.QuotaWindowStart > windowMs {
		rec.QuotaUsed = 0
		rec.QuotaWindowStart = nowMs
	}

	if rec.QuotaUsed >= rec.QuotaLimit {
		return false, 0, windowMs, nil
	}

	rec.QuotaUsed++
	if err := s.saveRecord(ctx, rec); err != nil {
		return false, 0, 0, err
	}

	return true, rec.QuotaLimit - rec.QuotaUsed, 0, nil
}
