package crypto

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	vault "github.com/hashicorp/vault/api"

	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
	"github.com/genlayerlabs/glvault/pkg/logger"
)

// vaultValueField is the single KVv2 data field every glvault entry is
// stored under, since the StorageBackend contract deals in opaque strings
// rather than structured secret data.
const vaultValueField = "value"

// VaultBackend implements service.StorageBackend against a HashiCorp Vault
// KVv2 secrets engine. It is the recommended backend for production
// deployments that already run Vault for other secret material.
type VaultBackend struct {
	client    *vault.Client
	log       logger.Logger
	mountPath string
}

// VaultConfig configures a VaultBackend.
type VaultConfig struct {
	Address   string
	Token     string
	MountPath string
}

// NewVaultBackend creates and configures a Vault-backed StorageBackend.
func NewVaultBackend(cfg VaultConfig, log logger.Logger) (*VaultBackend, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("glvault: vault client init: %w", err)
	}
	client.SetToken(cfg.Token)

	return &VaultBackend{client: client, log: log, mountPath: cfg.MountPath}, nil
}

// Get reads one value by key. A missing secret is reported as NotFound.
func (v *VaultBackend) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.client.KVv2(v.mountPath).Get(ctx, key)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", vaulterr.NotFound("key not found").WithCause(err)
		}
		return "", vaulterr.BackendFail("vault read failed").WithCause(err)
	}
	if secret == nil || secret.Data == nil {
		return "", vaulterr.NotFound("key not found")
	}
	val, ok := secret.Data[vaultValueField].(string)
	if !ok {
		return "", vaulterr.BackendFail("vault entry missing value field")
	}
	return val, nil
}

// Set writes value under key, creating a new version if the key already exists.
func (v *VaultBackend) Set(ctx context.Context, key, value string) error {
	_, err := v.client.KVv2(v.mountPath).Put(ctx, key, map[string]interface{}{vaultValueField: value})
	if err != nil {
		return vaulterr.BackendFail("vault write failed").WithCause(err)
	}
	return nil
}

// Delete permanently removes every version and metadata for key.
func (v *VaultBackend) Delete(ctx context.Context, key string) error {
	if err := v.client.KVv2(v.mountPath).DeleteMetadata(ctx, key); err != nil {
		return vaulterr.BackendFail("vault delete failed").WithCause(err)
	}
	return nil
}

// Scan lists every key under prefix by walking Vault's metadata listing
// recursively from the prefix's directory, since KVv2 list only returns one
// directory level at a time, and keeping the keys that start with prefix.
func (v *VaultBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	dir := ""
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = prefix[:i+1]
	}
	keys, err := v.listRecursive(ctx, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (v *VaultBackend) listRecursive(ctx context.Context, dirPath string) ([]string, error) {
	fullPath := path.Join(v.mountPath, "metadata", dirPath)
	secret, err := v.client.Logical().ListWithContext(ctx, fullPath)
	if err != nil {
		return nil, vaulterr.BackendFail("vault list failed").WithCause(err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	raw, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, nil
	}

	var out []string
	for _, k := range raw {
		name, _ := k.(string)
		if name == "" {
			continue
		}
		if len(name) > 0 && name[len(name)-1] == '/' {
			children, err := v.listRecursive(ctx, path.Join(dirPath, name))
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
			continue
		}
		out = append(out, path.Join(dirPath, name))
	}
	return out, nil
}

// Close releases resources held by the Vault backend. The Vault HTTP client
// has nothing to close, so this is a no-op kept to satisfy StorageBackend.
func (v *VaultBackend) Close() error { return nil }
