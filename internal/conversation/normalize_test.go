package conversation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func assertAlternates(t *testing.T, tr Transcript) {
	t.Helper()
	var last Role
	for i, m := range tr {
		if m.Role == RoleSystem {
			continue
		}
		require.NotEqual(t, last, m.Role, "adjacent %s turns at %d", m.Role, i)
		last = m.Role
	}
}

func TestNormalize_Empty(t *testing.T) {
	require.Empty(t, Normalize(nil))
	require.Empty(t, Normalize(Transcript{}))
}

func TestNormalize_InsertsPlaceholders(t *testing.T) {
	in := Transcript{User("a"), User("b"), Assistant("", "c"), Assistant("", "d")}

	out := Normalize(in)

	require.Len(t, out, 6)
	require.Equal(t, RoleAssistant, out[1].Role)
	require.Equal(t, "I'm processing your request...", out[1].Content)
	require.True(t, out[1].Placeholder)
	require.Equal(t, RoleUser, out[4].Role)
	require.Equal(t, "...", out[4].Content)
	require.True(t, out[4].Placeholder)
	assertAlternates(t, out)
}

func TestNormalize_SystemDoesNotMoveCursor(t *testing.T) {
	in := Transcript{User("a"), System("rules"), User("b")}

	out := Normalize(in)

	require.Len(t, out, 4)
	require.Equal(t, RoleSystem, out[1].Role)
	require.True(t, out[2].Placeholder)
	require.Equal(t, RoleAssistant, out[2].Role)
}

func TestNormalize_LeavesInputUntouched(t *testing.T) {
	in := Transcript{User("a"), User("b")}
	_ = Normalize(in)
	require.Len(t, in, 2)
}

// TestNormalize_Properties checks alternation and order preservation over
// random transcripts.
func TestNormalize_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	roles := []Role{RoleUser, RoleAssistant, RoleSystem}

	for n := 0; n < 200; n++ {
		in := make(Transcript, rng.Intn(12))
		for i := range in {
			in[i] = Message{Role: roles[rng.Intn(len(roles))], Content: string(rune('a' + i))}
		}

		out := Normalize(in)

		assertAlternates(t, out)
		if len(in) == 0 {
			require.Empty(t, out)
			continue
		}
		require.Equal(t, in, WithoutPlaceholders(out))
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Transcript{User("hi"), Assistant("x", "hello")}.Validate())

	err := Transcript{User("hi"), {Role: "robot", Content: "beep"}}.Validate()
	require.ErrorIs(t, err, ErrMalformedTranscript)

	err = Transcript{User("   ")}.Validate()
	require.ErrorIs(t, err, ErrMalformedTranscript)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("Model")
	require.NoError(t, err)
	require.Equal(t, RoleAssistant, r)

	_, err = ParseRole("tool")
	require.ErrorIs(t, err, ErrMalformedTranscript)
}

func TestLastUser(t *testing.T) {
	tr := Transcript{User("first"), Assistant("", "reply"), User("second"), Assistant("", "again")}
	m, ok := tr.LastUser()
	require.True(t, ok)
	require.Equal(t, "second", m.Content)

	_, ok = Transcript{System("s")}.LastUser()
	require.False(t, ok)
}
