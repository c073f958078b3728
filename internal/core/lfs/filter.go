package lfs

import (
	"bytes"
	"io"

	"github.com/colonyops/scmd/internal/core/logging"
	"github.com/colonyops/scmd/pkg/kv"
	"github.com/colonyops/scmd/pkg/stripe"
)

// Filter transforms content on its way into the index.
type Filter interface {
	Clean(path string, content io.Reader) (io.Reader, error)
}

// CleanFilter stores content of tracked paths and substitutes the pointer.
type CleanFilter struct {
	Store      *Store
	Attributes Attributes
}

// Clean implements Filter. Content that already is a pointer is kept as is.
func (f CleanFilter) Clean(path string, content io.Reader) (io.Reader, error) {
	if !f.Attributes.Match(path) {
		return content, nil
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	if _, ok := DecodePointer(data); ok {
		return bytes.NewReader(data), nil
	}

	p, err := f.Store.Put(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(p.Encode()), nil
}

// FilterRegistry holds the filters active for working copies. Registration is
// keyed by working copy path and guarded by a striped lock so that staging in
// the same working copy serializes while unrelated working copies proceed.
type FilterRegistry struct {
	locks   *stripe.Locks
	filters *kv.Store[string, Filter]
}

// NewFilterRegistry creates a registry with the given number of lock stripes.
func NewFilterRegistry(stripes int) *FilterRegistry {
	return &FilterRegistry{
		locks:   stripe.New(stripes),
		filters: kv.New[string, Filter](),
	}
}

// With registers f under key, runs fn, then unregisters f.
func (r *FilterRegistry) With(key string, f Filter, fn func() error) error {
	return r.locks.With(key, func() error {
		r.filters.Set(key, f)
		defer r.filters.Delete(key)

		log := logging.Component("lfs")
		log.Debug().Str("key", key).Msg("clean filter registered")
		return fn()
	})
}

// Lookup returns the filter registered under key.
func (r *FilterRegistry) Lookup(key string) (Filter, bool) {
	return r.filters.Get(key)
}

// Registered returns the number of filters currently registered.
func (r *FilterRegistry) Registered() int {
	return r.filters.Len()
}
