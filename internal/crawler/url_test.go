package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain gets scheme and root path", "acme.com", "https://acme.com/"},
		{"host lowercased", "https://ACME.Com/About", "https://acme.com/About"},
		{"default https port dropped", "https://acme.com:443/x", "https://acme.com/x"},
		{"default http port dropped", "http://acme.com:80/x", "http://acme.com/x"},
		{"custom port kept", "https://acme.com:8443/x", "https://acme.com:8443/x"},
		{"trailing slash trimmed off non-root", "https://acme.com/pricing/", "https://acme.com/pricing"},
		{"root slash kept", "https://acme.com/", "https://acme.com/"},
		{"fragment dropped", "https://acme.com/x#section", "https://acme.com/x"},
		{"query keys sorted", "https://acme.com/x?b=2&a=1", "https://acme.com/x?a=1&b=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	first, err := Normalize("https://acme.com/pricing/?b=2&a=1#top")
	require.NoError(t, err)
	second, err := Normalize(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeInvalid(t *testing.T) {
	t.Parallel()

	_, err := Normalize("https://acme.com/%zz")
	assert.Error(t, err)
}

func TestRegistrableDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "acme.com", RegistrableDomain("www.acme.com"))
	assert.Equal(t, "acme.com", RegistrableDomain("Blog.ACME.com."))
	assert.Equal(t, "acme.co.uk", RegistrableDomain("shop.acme.co.uk"))
	assert.Equal(t, "localhost", RegistrableDomain("localhost"), "unresolvable hosts fall back unchanged")
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	assert.True(t, SameSite("www.acme.com", "blog.acme.com"))
	assert.True(t, SameSite("acme.com", "acme.com"))
	assert.False(t, SameSite("acme.com", "other.com"))
	assert.False(t, SameSite("acme.co.uk", "other.co.uk"), "a shared public suffix is not a shared site")
}
