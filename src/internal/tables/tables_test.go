package tables

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Key  Value\n===  =====", Render(nil, 100))
}

func TestShort(t *testing.T) {
	t.Parallel()
	expected := "" +
		"Key  Value\n" +
		"===  =====\n" +
		"a    A\n" +
		"be   B"
	require.Equal(t, expected, Render(map[string]string{"a": "A", "be": "B"}, 100))
}

func TestLong(t *testing.T) {
	t.Parallel()
	expected := "" +
		"Key         Value\n" +
		"==========  ============\n" +
		"long_key    long_value\n" +
		"longer_key  longer_value"
	require.Equal(t, expected, Render(map[string]string{
		"long_key":   "long_value",
		"longer_key": "longer_value",
	}, 100))
}

func TestLongerThanTerminal(t *testing.T) {
	t.Parallel()
	// The underline is clamped to the terminal width but values are
	// printed in full.
	expected := "" +
		"Key         Value\n" +
		"==========  ===\n" +
		"long_key    long_value\n" +
		"longer_key  longer_value"
	require.Equal(t, expected, Render(map[string]string{
		"long_key":   "long_value",
		"longer_key": "longer_value",
	}, 15))
}

func TestDegenerateTerminal(t *testing.T) {
	t.Parallel()
	expected := "" +
		"Key  Value\n" +
		"===  \n" +
		"a    A"
	require.Equal(t, expected, Render(map[string]string{"a": "A"}, 5))
}
