package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// OutputResolver hands out final artifact paths that neither exist on disk
// nor are claimed by another running export. Duplicates get " - dupN"
// suffixes. All methods are goroutine-safe.
type OutputResolver struct {
	mu      sync.Mutex
	claimed map[string]bool
	exists  func(path string) bool
}

func NewOutputResolver() *OutputResolver {
	return &OutputResolver{
		claimed: make(map[string]bool),
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Claim reserves dir/<base><ext> or the first free dup variant.
func (r *OutputResolver) Claim(dir, base, ext string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := filepath.Join(dir, base+ext)
	for n := 1; r.claimed[candidate] || r.exists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s - dup%d%s", base, n, ext))
	}
	r.claimed[candidate] = true
	return candidate
}

// Release frees a claimed path once its export has finished.
func (r *OutputResolver) Release(path string) {
	r.mu.Lock()
	delete(r.claimed, path)
	r.mu.Unlock()
}
