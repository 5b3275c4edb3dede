package chain

import (
	"net/http"
	"sync"
	"time"

	"github.com/portto/solana-go-sdk/client"
)

// Handle bundles the RPC client and HTTP client for one endpoint URL.
// Handles are immutable after construction and safe for concurrent use.
type Handle struct {
	URL  string
	RPC  *client.Client
	HTTP *http.Client
}

// Pool caches one Handle per endpoint URL. A handle is built lazily on
// first use and rebuilt only when the resolved URL changes, so repeated
// calls against a stable primary reuse the same connections.
type Pool struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewPool() *Pool {
	return &Pool{handles: make(map[string]*Handle)}
}

func (p *Pool) Handle(url string) *Handle {
	p.mu.RLock()
	h, ok := p.handles[url]
	p.mu.RUnlock()
	if ok {
		return h
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.handles[url]; ok {
		return h
	}
	h = &Handle{
		URL: url,
		RPC: client.NewClient(url),
		HTTP: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	p.handles[url] = h
	return h
}
