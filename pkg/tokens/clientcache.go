package tokens

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
)

// OIDCClient is a registered OIDC client.
type OIDCClient struct {
	ID     string
	Secret string
}

// ClientCache remembers OIDC clients for the life of the process, keyed by
// client id hash when known and by region otherwise. It also reads the SSO
// cache files the desktop IDE writes.
type ClientCache struct {
	mu      sync.RWMutex
	clients map[string]OIDCClient
	dir     string
}

// NewClientCache creates a cache that reads SSO cache files from dir.
// An empty dir means ~/.aws/sso/cache.
func NewClientCache(dir string) *ClientCache {
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".aws", "sso", "cache")
		}
	}
	return &ClientCache{clients: make(map[string]OIDCClient), dir: dir}
}

// Get returns a cached client.
func (c *ClientCache) Get(key string) (OIDCClient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clients[key]
	return cl, ok
}

// Put stores a client.
func (c *ClientCache) Put(key string, cl OIDCClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[key] = cl
}

// LoadFile reads <dir>/<hash>.json and returns its client id and secret.
func (c *ClientCache) LoadFile(hash string) (OIDCClient, bool) {
	if c.dir == "" || hash == "" || filepath.Base(hash) != hash {
		return OIDCClient{}, false
	}
	data, err := os.ReadFile(filepath.Join(c.dir, hash+".json"))
	if err != nil {
		return OIDCClient{}, false
	}
	id := gjson.GetBytes(data, "clientId").String()
	secret := gjson.GetBytes(data, "clientSecret").String()
	if id == "" || secret == "" {
		return OIDCClient{}, false
	}
	return OIDCClient{ID: id, Secret: secret}, true
}
