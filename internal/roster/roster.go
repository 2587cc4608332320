// Package roster persists whitelist/blacklist user id sets as json
// files next to the binary.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Well-known roster file names.
const (
	WhitelistFile = "whitelist.json"
	BlacklistFile = "blacklist.json"
)

// List is one persisted set of user ids. Safe for concurrent use:
// the orchestrator reads membership while a CLI command may add ids.
type List struct {
	path string

	mu  sync.RWMutex
	ids map[int64]struct{}
}

// Load reads a roster file. A missing file yields an empty list;
// invalid json is an error.
func Load(path string) (*List, error) {
	l := &List{
		path: path,
		ids:  make(map[int64]struct{}),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}

	return l, nil
}

// Contains reports membership of a user id.
func (l *List) Contains(id int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Add inserts user ids. Duplicates are fine.
func (l *List) Add(ids ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
}

// Remove deletes user ids. Unknown ids are ignored.
func (l *List) Remove(ids ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		delete(l.ids, id)
	}
}

// Len returns the number of stored ids.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// IDs returns the stored ids sorted ascending.
func (l *List) IDs() []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]int64, 0, len(l.ids))
	for id := range l.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Save writes the list back to its file.
func (l *List) Save() error {
	data, err := json.Marshal(l.IDs())
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("write roster %s: %w", l.path, err)
	}
	return nil
}
