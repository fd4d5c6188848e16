package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("fetch_blocked:test.example", []byte("300"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("fetch_blocked:test.example")
	assert.NoError(t, err)
	assert.Equal(t, "300", string(value))

	err = mc.Delete("fetch_blocked:test.example")
	assert.NoError(t, err)

	_, err = mc.Get("fetch_blocked:test.example")
	assert.ErrorIs(t, err, ErrMiss)

	// deleting twice is fine
	assert.NoError(t, mc.Delete("fetch_blocked:test.example"))
}

func TestMemcacheServiceUnreachable(t *testing.T) {
	mc := NewMemcacheService("127.0.0.1:1")

	_, err := mc.Get("anything")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
