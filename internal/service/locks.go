package service

import (
	"sort"
	"sync"

	"ledger-recon/internal/domain"
)

// keyedLocks serializes work per key. Callers take several keys at once in
// sorted order so two postings touching the same accounts cannot deadlock.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*keyedLock)}
}

// Lock acquires every key and returns the function that releases them.
func (k *keyedLocks) Lock(keys []string) func() {
	keys = sortedUnique(keys)
	held := make([]*keyedLock, 0, len(keys))
	for _, key := range keys {
		k.mu.Lock()
		l, ok := k.locks[key]
		if !ok {
			l = &keyedLock{}
			k.locks[key] = l
		}
		l.refs++
		k.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			k.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.locks, keys[i])
			}
			k.mu.Unlock()
		}
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func sortedUnique(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, key := range out {
		if i > 0 && key == out[n-1] {
			continue
		}
		out[n] = key
		n++
	}
	return out[:n]
}

// postingKeys lists the (tenant, account, period) and (tenant, entity,
// period) keys an entry touches, plus its source so the same event cannot be
// posted twice concurrently.
func postingKeys(e *domain.JournalEntry) []string {
	tenant, period := e.TenantID, e.Period()
	keys := []string{tenant + "|source|" + string(e.Source) + "|" + e.SourceID}
	for _, l := range e.Lines {
		keys = append(keys, tenant+"|account|"+l.AccountCode+"|"+period)
	}
	for _, a := range e.Adjustments {
		keys = append(keys, tenant+"|entity|"+a.EntityID+"|"+period)
	}
	return keys
}
