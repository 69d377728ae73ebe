// Package vaultkv adapts HashiCorp Vault's KV secrets engines (v1 and v2)
// to the listing and reading operations the rest of this tool needs.
package vaultkv

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/vault/api"
	"golang.org/x/sync/errgroup"
)

// Version selects which KV secrets engine API to speak.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

// Client reads and lists secrets in a single KV mount.
// It is safe for concurrent use.
type Client struct {
	vc      *api.Client
	mount   string
	version Version
}

func New(vc *api.Client, mount string, version Version) *Client {
	return &Client{vc: vc, mount: mount, version: version}
}

// NewFromEnv builds a client from the usual Vault environment (VAULT_ADDR,
// VAULT_TOKEN, falling back to ~/.vault-token) and detects the KV engine
// version at mount.
func NewFromEnv(ctx context.Context, mount string) (*Client, error) {
	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, cfg.Error
	}
	vc, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if vc.Token() == "" {
		if tok, err := tokenFromHelperFile(); err == nil && tok != "" {
			vc.SetToken(tok)
		}
	}
	version, err := DetectVersion(ctx, vc, mount)
	if err != nil {
		return nil, fmt.Errorf("detecting kv version at %q: %w", mount, err)
	}
	return New(vc, mount, version), nil
}

func (c *Client) Mount() string    { return c.mount }
func (c *Client) Version() Version { return c.version }

// List returns the names of the immediate children of p, sorted
// lexicographically.  Container names keep their trailing slash exactly as
// Vault reports them.
func (c *Client) List(ctx context.Context, p string) ([]string, error) {
	sec, err := c.vc.Logical().ListWithContext(ctx, c.listPath(p))
	if err != nil {
		return nil, mapErr(err, p)
	}
	// Vault reports a missing path as a 404 with an empty error body, which
	// the api client surfaces as (nil, nil).
	if sec == nil {
		return nil, ErrNotExist{Path: p}
	}
	raw, ok := sec.Data["keys"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("vaultkv: malformed list response for %q", p)
	}
	names := make([]string, 0, len(raw))
	for _, k := range raw {
		s, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("vaultkv: non-string key in list response for %q", p)
		}
		names = append(names, s)
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the key/value pairs stored at p, the latest version only.
// Any engine metadata is excluded.
func (c *Client) Read(ctx context.Context, p string) (map[string]interface{}, error) {
	sec, err := c.vc.Logical().ReadWithContext(ctx, c.readPath(p))
	if err != nil {
		return nil, mapErr(err, p)
	}
	if sec == nil {
		return nil, ErrNotExist{Path: p}
	}
	data := sec.Data
	if c.version == V2 {
		// v2 nests the stored pairs under "data"; a deleted or destroyed
		// version comes back with data == nil.
		nested, ok := sec.Data["data"].(map[string]interface{})
		if !ok {
			return nil, ErrNotExist{Path: p}
		}
		data = nested
	}
	return data, nil
}

func (c *Client) listPath(p string) string {
	p = strings.Trim(p, "/")
	if c.version == V2 {
		return path.Join(c.mount, "metadata", p)
	}
	return path.Join(c.mount, p)
}

func (c *Client) readPath(p string) string {
	p = strings.Trim(p, "/")
	if c.version == V2 {
		return path.Join(c.mount, "data", p)
	}
	return path.Join(c.mount, p)
}

// DetectVersion determines which KV engine version is mounted at mount by
// listing its root both ways at once.  The v2-style probe decides unless it
// comes back not-found, in which case the v1 probe's outcome decides.
func DetectVersion(ctx context.Context, vc *api.Client, mount string) (Version, error) {
	var v1Err, v2Err error
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		v2Err = probeList(ctx, vc, path.Join(mount, "metadata"))
		if v2Err != nil && !IsErrNotExist(v2Err) {
			// something other than a version mismatch; no point waiting
			return v2Err
		}
		return nil
	})
	eg.Go(func() error {
		v1Err = probeList(ctx, vc, path.Clean(mount))
		return nil
	})
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	if v2Err == nil {
		return V2, nil
	}
	if v1Err != nil {
		return 0, v1Err
	}
	return V1, nil
}

func probeList(ctx context.Context, vc *api.Client, p string) error {
	sec, err := vc.Logical().ListWithContext(ctx, p)
	if err != nil {
		return mapErr(err, p)
	}
	if sec == nil {
		return ErrNotExist{Path: p}
	}
	return nil
}

// tokenFromHelperFile reads the token the vault CLI leaves behind after
// `vault login`.
func tokenFromHelperFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(home, ".vault-token"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
