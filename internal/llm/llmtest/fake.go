// Package llmtest provides in-memory llm.Client and llm.Embedder fakes.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/aiox-platform/companion/internal/llm"
)

// Client is a scripted llm.Client. Text replies are served from Replies in
// order (the last one repeats); structured replies are looked up by schema
// name in JSON.
type Client struct {
	mu sync.Mutex

	Replies []string
	JSON    map[string]string
	Err     error
	// JSONErr fails structured calls for the named schemas.
	JSONErr map[string]error

	Requests []llm.Request
	Schemas  []string
	calls    int
}

func (c *Client) next() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Replies) == 0 {
		return "", errors.New("llmtest: no scripted reply")
	}
	i := c.calls
	if i >= len(c.Replies) {
		i = len(c.Replies) - 1
	}
	c.calls++
	return c.Replies[i], nil
}

func (c *Client) record(req llm.Request, schema string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if schema != "" {
		c.Schemas = append(c.Schemas, schema)
	}
}

func (c *Client) Complete(_ context.Context, req llm.Request) (string, error) {
	c.record(req, "")
	return c.next()
}

func (c *Client) Stream(_ context.Context, req llm.Request, onToken func(string)) (string, error) {
	c.record(req, "")
	out, err := c.next()
	if err != nil {
		return "", err
	}
	if onToken != nil {
		for _, w := range strings.SplitAfter(out, " ") {
			if w != "" {
				onToken(w)
			}
		}
	}
	return out, nil
}

func (c *Client) CompleteJSON(_ context.Context, req llm.Request, schema llm.Schema, out any) error {
	c.record(req, schema.Name)
	c.mu.Lock()
	raw, ok := c.JSON[schema.Name]
	jerr := c.JSONErr[schema.Name]
	c.mu.Unlock()
	if jerr != nil {
		return jerr
	}
	if !ok {
		return errors.New("llmtest: no structured reply for " + schema.Name)
	}
	return json.Unmarshal([]byte(raw), out)
}

// Calls returns how many requests of any kind were made.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// CallsFor returns how many structured requests used the schema.
func (c *Client) CallsFor(schema string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.Schemas {
		if s == schema {
			n++
		}
	}
	return n
}

// LastRequest returns the most recent request.
func (c *Client) LastRequest() llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Requests) == 0 {
		return llm.Request{}
	}
	return c.Requests[len(c.Requests)-1]
}

// Embedder maps each lowercase word to a fixed dimension so texts sharing
// words have positive cosine similarity.
type Embedder struct {
	Dims int
	Err  error

	mu    sync.Mutex
	calls int
}

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	dims := e.Dimensions()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dims)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,!?")))
			v[h.Sum32()%uint32(dims)]++
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) Dimensions() int {
	if e.Dims == 0 {
		return 64
	}
	return e.Dims
}

func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
