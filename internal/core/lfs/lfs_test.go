package lfs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointer_RoundTrip(t *testing.T) {
	sum := sha256.Sum256([]byte("big file"))
	p := Pointer{OID: hex.EncodeToString(sum[:]), Size: 8}

	got, ok := DecodePointer(p.Encode())
	require.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = DecodePointer([]byte("just some text\n"))
	assert.False(t, ok)
}

func TestParseAttributes(t *testing.T) {
	attrs := ParseAttributes([]byte(`
# binaries
*.bin filter=lfs diff=lfs merge=lfs -text
/assets/** filter=lfs
docs/*.pdf filter=lfs
*.txt text
*.psd filter=lfs
*.psd -filter
`))

	tests := []struct {
		path string
		want bool
	}{
		{"a.bin", true},
		{"deep/nested/a.bin", true},
		{"assets/img/logo.png", true},
		{"other/assets/logo.png", false},
		{"docs/manual.pdf", true},
		{"docs/sub/manual.pdf", false},
		{"readme.txt", false},
		{"art.psd", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, attrs.Match(tt.path))
		})
	}

	assert.True(t, ParseAttributes(nil).Empty())
}

func TestStore_PutIsContentAddressed(t *testing.T) {
	store := NewStore(t.TempDir())

	p1, err := store.Put(strings.NewReader("payload"))
	require.NoError(t, err)
	p2, err := store.Put(strings.NewReader("payload"))
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, int64(7), p1.Size)
	assert.True(t, store.Has(p1.OID))

	rc, err := store.Open(p1.OID)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCleanFilter(t *testing.T) {
	store := NewStore(t.TempDir())
	filter := CleanFilter{Store: store, Attributes: ParseAttributes([]byte("*.bin filter=lfs\n"))}

	t.Run("untracked path passes through", func(t *testing.T) {
		r, err := filter.Clean("a.txt", strings.NewReader("text"))
		require.NoError(t, err)
		data, _ := io.ReadAll(r)
		assert.Equal(t, "text", string(data))
	})

	t.Run("tracked path becomes pointer", func(t *testing.T) {
		r, err := filter.Clean("data/a.bin", bytes.NewReader([]byte{0, 1, 2}))
		require.NoError(t, err)
		data, _ := io.ReadAll(r)

		p, ok := DecodePointer(data)
		require.True(t, ok)
		assert.Equal(t, int64(3), p.Size)
		assert.True(t, store.Has(p.OID))
	})

	t.Run("pointer content is not stored twice", func(t *testing.T) {
		sum := sha256.Sum256([]byte("elsewhere"))
		ptr := Pointer{OID: hex.EncodeToString(sum[:]), Size: 9}.Encode()

		r, err := filter.Clean("b.bin", bytes.NewReader(ptr))
		require.NoError(t, err)
		data, _ := io.ReadAll(r)
		assert.Equal(t, ptr, data)
		assert.False(t, store.Has(hex.EncodeToString(sum[:])))
	})
}

type nopFilter struct{}

func (nopFilter) Clean(_ string, r io.Reader) (io.Reader, error) { return r, nil }

func TestFilterRegistry_ScopedToCallback(t *testing.T) {
	registry := NewFilterRegistry(4)

	err := registry.With("/pool/wc-1", nopFilter{}, func() error {
		_, ok := registry.Lookup("/pool/wc-1")
		assert.True(t, ok)
		assert.Equal(t, 1, registry.Registered())
		return errors.New("stage failed")
	})
	require.EqualError(t, err, "stage failed")

	_, ok := registry.Lookup("/pool/wc-1")
	assert.False(t, ok, "filter is unregistered after the callback, even on error")
	assert.Equal(t, 0, registry.Registered())
}

func TestFilterRegistry_SameKeySerializes(t *testing.T) {
	registry := NewFilterRegistry(4)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = registry.With("/pool/wc-same", nopFilter{}, func() error {
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(5 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}
