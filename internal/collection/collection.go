// Package collection provides an ordered, identity-keyed collection and live
// filtered/sorted projections over it.
package collection

import (
	"agentbook/pkg/domain"
)

// Entity is implemented by records stored in a Collection. IdentityKey names the
// weak identity ("same entity"); Equal is strong value equality.
type Entity[T any] interface {
	IdentityKey() string
	Equal(other T) bool
	Clone() T
}

// Collection keeps records in insertion order and rejects identity collisions.
// It is not safe for concurrent use; owners serialize access.
type Collection[T Entity[T]] struct {
	entity domain.EntityType
	items  []T
	index  map[string]int
}

// New returns an empty collection whose errors report the given entity type.
func New[T Entity[T]](entity domain.EntityType) *Collection[T] {
	return &Collection[T]{entity: entity, index: make(map[string]int)}
}

// Entity returns the entity type the collection holds.
func (c *Collection[T]) Entity() domain.EntityType { return c.entity }

// Len returns the number of records.
func (c *Collection[T]) Len() int { return len(c.items) }

// Add appends e, failing with DuplicateEntityError when an element has the same identity.
func (c *Collection[T]) Add(e T) error {
	key := e.IdentityKey()
	if _, exists := c.index[key]; exists {
		return domain.DuplicateEntityError{Entity: c.entity, Key: key}
	}
	c.index[key] = len(c.items)
	c.items = append(c.items, e.Clone())
	return nil
}

// Replace swaps the element with old's identity for next, keeping its position.
// old is matched by identity. next may change identity as long as it does not
// collide with a different element.
func (c *Collection[T]) Replace(old, next T) error {
	oldKey := old.IdentityKey()
	pos, ok := c.index[oldKey]
	if !ok {
		return domain.NotFoundError{Entity: c.entity, Key: oldKey}
	}
	newKey := next.IdentityKey()
	if newKey != oldKey {
		if _, taken := c.index[newKey]; taken {
			return domain.DuplicateEntityError{Entity: c.entity, Key: newKey}
		}
		delete(c.index, oldKey)
		c.index[newKey] = pos
	}
	c.items[pos] = next.Clone()
	return nil
}

// Remove deletes the element equal in value to e.
func (c *Collection[T]) Remove(e T) error {
	key := e.IdentityKey()
	pos, ok := c.index[key]
	if !ok || !c.items[pos].Equal(e) {
		return domain.NotFoundError{Entity: c.entity, Key: key}
	}
	c.items = append(c.items[:pos], c.items[pos+1:]...)
	c.reindex()
	return nil
}

// SetAll replaces the contents with list, failing without change when list
// itself contains colliding identities.
func (c *Collection[T]) SetAll(list []T) error {
	index := make(map[string]int, len(list))
	items := make([]T, 0, len(list))
	for i, e := range list {
		key := e.IdentityKey()
		if _, dup := index[key]; dup {
			return domain.DuplicateEntityError{Entity: c.entity, Key: key}
		}
		index[key] = i
		items = append(items, e.Clone())
	}
	c.items = items
	c.index = index
	return nil
}

// Find returns the element with the given identity key.
func (c *Collection[T]) Find(key string) (T, bool) {
	pos, ok := c.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[pos].Clone(), true
}

// ContainsKey reports whether an element has the given identity key.
func (c *Collection[T]) ContainsKey(key string) bool {
	_, ok := c.index[key]
	return ok
}

// ContainsIdentity reports whether an element has the same identity as e.
func (c *Collection[T]) ContainsIdentity(e T) bool {
	return c.ContainsKey(e.IdentityKey())
}

// ContainsValue reports whether an element is equal in value to e.
func (c *Collection[T]) ContainsValue(e T) bool {
	pos, ok := c.index[e.IdentityKey()]
	return ok && c.items[pos].Equal(e)
}

// Items returns copies of every element in insertion order.
func (c *Collection[T]) Items() []T {
	out := make([]T, 0, len(c.items))
	for _, e := range c.items {
		out = append(out, e.Clone())
	}
	return out
}

// Keys returns identity keys in insertion order.
func (c *Collection[T]) Keys() []string {
	out := make([]string, 0, len(c.items))
	for _, e := range c.items {
		out = append(out, e.IdentityKey())
	}
	return out
}

// Clone returns an independent deep copy.
func (c *Collection[T]) Clone() *Collection[T] {
	cp := &Collection[T]{
		entity: c.entity,
		items:  make([]T, 0, len(c.items)),
		index:  make(map[string]int, len(c.index)),
	}
	for i, e := range c.items {
		cp.items = append(cp.items, e.Clone())
		cp.index[e.IdentityKey()] = i
	}
	return cp
}

func (c *Collection[T]) reindex() {
	c.index = make(map[string]int, len(c.items))
	for i, e := range c.items {
		c.index[e.IdentityKey()] = i
	}
}
