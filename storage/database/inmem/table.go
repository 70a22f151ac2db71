package inmemdb

import (
	"sort"
	"sync"
)

type snapshotter interface {
	// snapshot copies the table and returns the function restoring that copy.
	snapshot() func()
}

// table holds the rows of one entity, by id, in insertion order.
type table[T any] struct {
	mutex sync.RWMutex
	rows  map[string]T
	ids   []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) snapshot() func() {
	t.mutex.RLock()
	rows := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	ids := append([]string(nil), t.ids...)
	t.mutex.RUnlock()

	return func() {
		t.mutex.Lock()
		t.rows = rows
		t.ids = ids
		t.mutex.Unlock()
	}
}

func (t *table[T]) insert(id string, row T) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if _, ok := t.rows[id]; !ok {
		t.ids = append(t.ids, id)
	}
	t.rows[id] = row
}

func (t *table[T]) get(id string) (T, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	row, ok := t.rows[id]
	return row, ok
}

// update replaces an existing row; it reports false when there is none.
func (t *table[T]) update(id string, row T) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	t.rows[id] = row
	return true
}

func (t *table[T]) delete(ids ...string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for _, id := range ids {
		delete(t.rows, id)
	}
	kept := t.ids[:0]
	for _, id := range t.ids {
		if _, ok := t.rows[id]; ok {
			kept = append(kept, id)
		}
	}
	t.ids = kept
}

// filter returns the rows matching keep (all rows when keep is nil), in insertion order.
func (t *table[T]) filter(keep func(T) bool) []T {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	res := make([]T, 0)
	for _, id := range t.ids {
		row := t.rows[id]
		if keep == nil || keep(row) {
			res = append(res, row)
		}
	}
	return res
}

func (t *table[T]) find(match func(T) bool) (T, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	for _, id := range t.ids {
		if row := t.rows[id]; match(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

func (t *table[T]) exists(match func(T) bool) bool {
	_, ok := t.find(match)
	return ok
}

// deleteWhere removes the matching rows and returns their ids.
func (t *table[T]) deleteWhere(match func(T) bool, idOf func(T) string) []string {
	var ids []string
	for _, row := range t.filter(match) {
		ids = append(ids, idOf(row))
	}
	t.delete(ids...)
	return ids
}

func sortBy[T any](rows []T, less func(a, b T) bool) []T {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	return rows
}
