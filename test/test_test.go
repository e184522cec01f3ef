package test_test

import (
	"testing"

	"github.com/arkhollow/httpcache"
	"github.com/arkhollow/httpcache/test"
)

func TestMemoryCache(t *testing.T) {
	test.Cache(t, httpcache.NewMemoryStore())
}
