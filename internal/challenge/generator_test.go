package challenge

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var phrasePattern = regexp.MustCompile(`^[a-z]+-[a-z]+-\d{2}$`)

func TestGenerator_PhraseFormat(t *testing.T) {
	g := NewGenerator(0)

	for i := 0; i < 50; i++ {
		ch, err := g.Issue("s1")
		require.NoError(t, err)
		require.Regexp(t, phrasePattern, ch.Phrase)
		require.Equal(t, "s1", ch.SessionID)
		require.Equal(t, DefaultTTL, ch.ExpiresAt.Sub(ch.IssuedAt))
	}
}

func TestGenerator_RotationInvalidatesPrior(t *testing.T) {
	g := NewGenerator(time.Minute)

	first, err := g.Issue("s1")
	require.NoError(t, err)
	require.True(t, g.IsValid("s1", first.Phrase))

	second, err := g.Issue("s1")
	require.NoError(t, err)

	require.False(t, g.IsValid("s1", first.Phrase))
	require.True(t, g.IsValid("s1", second.Phrase))

	current, ok := g.Current("s1")
	require.True(t, ok)
	require.Equal(t, second.Phrase, current.Phrase)
}

func TestGenerator_TTLExpiry(t *testing.T) {
	g := NewGenerator(time.Minute)
	base := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return base }

	ch, err := g.Issue("s1")
	require.NoError(t, err)

	g.now = func() time.Time { return base.Add(time.Minute + time.Second) }

	require.False(t, g.IsValid("s1", ch.Phrase))

	_, ok := g.Current("s1")
	require.False(t, ok)
}

func TestGenerator_IsValidDoesNotConsume(t *testing.T) {
	g := NewGenerator(time.Minute)

	ch, err := g.Issue("s1")
	require.NoError(t, err)

	require.True(t, g.IsValid("s1", ch.Phrase))
	require.True(t, g.IsValid("s1", ch.Phrase))

	g.Consume("s1")
	require.False(t, g.IsValid("s1", ch.Phrase))
}

func TestGenerator_SessionsAreIndependent(t *testing.T) {
	g := NewGenerator(time.Minute)

	a, err := g.Issue("s1")
	require.NoError(t, err)
	b, err := g.Issue("s2")
	require.NoError(t, err)

	require.True(t, g.IsValid("s1", a.Phrase))
	require.True(t, g.IsValid("s2", b.Phrase))

	g.Drop("s1")
	require.False(t, g.IsValid("s1", a.Phrase))
	require.True(t, g.IsValid("s2", b.Phrase))
}

func TestGenerator_WrongPhraseRejected(t *testing.T) {
	g := NewGenerator(time.Minute)

	_, err := g.Issue("s1")
	require.NoError(t, err)

	require.False(t, g.IsValid("s1", "harbor-lantern-07"))
	require.False(t, g.IsValid("unknown", "harbor-lantern-07"))
}
