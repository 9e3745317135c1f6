package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeShopDomain(t *testing.T) {
	valid := map[string]string{
		"demo.myshopify.com":          "demo.myshopify.com",
		" Demo-Store.MyShopify.com ":  "demo-store.myshopify.com",
		"https://demo.myshopify.com/": "demo.myshopify.com",
	}
	for in, want := range valid {
		got, err := NormalizeShopDomain(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "demo.example.com", "-demo.myshopify.com", "demo.myshopify.com.evil.io", "a/b.myshopify.com"} {
		_, err := NormalizeShopDomain(in)
		assert.ErrorIs(t, err, ErrInvalidShopDomain, in)
	}
}

func TestParseEntityType(t *testing.T) {
	got, err := ParseEntityType(" Orders ")
	assert.NoError(t, err)
	assert.Equal(t, EntityOrders, got)

	_, err = ParseEntityType("carts")
	assert.ErrorIs(t, err, ErrUnsupportedEntityType)
}
