package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripLocale(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://example.com/dp/X?language=en_US&ref=a": "https://example.com/dp/X?ref=a",
		"https://example.com/dp/X?language=en_US":       "https://example.com/dp/X",
		"https://example.com/dp/X?ref=a":                "https://example.com/dp/X?ref=a",
		"free text title":                               "free text title",
	}
	for in, want := range cases {
		require.Equal(t, want, StripLocale(in), in)
	}
}

func TestWithPage(t *testing.T) {
	t.Parallel()

	got, err := WithPage("https://example.com/dp/B0SERIES?binding=kindle&language=ja_JP", 3)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/dp/B0SERIES?binding=kindle&pageNumber=3", got)

	got, err = WithPage("https://example.com/dp/B0SERIES?pageNumber=2", 4)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/dp/B0SERIES?pageNumber=4", got)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	got, err := Resolve("https://example.com", "/dp/B0SERIES?ref=dbs_a")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/dp/B0SERIES?ref=dbs_a", got)

	got, err = Resolve("https://example.com", "https://other.example/x")
	require.NoError(t, err)
	require.Equal(t, "https://other.example/x", got)
}

func TestBookURLs(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{
		"https://example.com/dp/B000000001",
		"https://example.com/zh/dp/B000000001",
	}, BookURLs("https://example.com/", "B000000001"))
}

func TestIdentifierFromURL(t *testing.T) {
	t.Parallel()

	id, ok := IdentifierFromURL("https://example.com/Some-Title/dp/B000000001/ref=x")
	require.True(t, ok)
	require.Equal(t, "B000000001", id)

	id, ok = IdentifierFromURL("https://example.com/dp/B000000002?ref=x")
	require.True(t, ok)
	require.Equal(t, "B000000002", id)

	_, ok = IdentifierFromURL("https://example.com/s?k=title")
	require.False(t, ok)
}

func TestTransportErrorMatching(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewTransportError("https://example.com", cause)
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection reset")

	status := NewStatusError("https://example.com", 503)
	require.ErrorIs(t, status, ErrTransport)
	require.Contains(t, status.Error(), "503")
}
