package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Yates-Labs/frc-reviewer/internal/log"
)

// contentStore accumulates full file contents fetched at the head commit.
type contentStore struct {
	mu       sync.Mutex
	contents map[string]string
}

func newContentStore() *contentStore {
	return &contentStore{contents: make(map[string]string)}
}

func (s *contentStore) set(name, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[name] = content
}

// missing returns the names not yet fetched.
func (s *contentStore) missing(names []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, n := range names {
		if _, ok := s.contents[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func (s *contentStore) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.contents))
	for k, v := range s.contents {
		out[k] = v
	}
	return out
}

// fetchContents fetches names at ref in parallel. A failed fetch is logged
// and leaves that file without content; it never stops the others.
func (p *Pipeline) fetchContents(ctx context.Context, ref string, names []string, store *contentStore) {
	if len(names) == 0 {
		return
	}

	var g errgroup.Group
	if p.config.FetchConcurrency > 0 {
		g.SetLimit(p.config.FetchConcurrency)
	}
	for _, name := range names {
		g.Go(func() error {
			content, err := p.platform.GetFileContent(ctx, ref, name)
			if err != nil {
				log.Warn("could not fetch file content", "file", name, "error", err)
				return nil
			}
			store.set(name, content)
			return nil
		})
	}
	_ = g.Wait()
}
