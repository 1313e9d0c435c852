package foundation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	t.Run("Ok result", func(t *testing.T) {
		result := Ok[string, error]("success")

		require.False(t, result.IsErr())
		require.Equal(t, "success", result.Unwrap())
		require.Equal(t, "success", result.UnwrapOr("fallback"))
		require.Panics(t, func() { _ = result.UnwrapErr() })
	})

	t.Run("Err result", func(t *testing.T) {
		testErr := errors.New("test error")
		result := Err[string, error](testErr)

		require.True(t, result.IsErr())
		require.ErrorIs(t, result.UnwrapErr(), testErr)
		require.Equal(t, "fallback", result.UnwrapOr("fallback"))
		require.Panics(t, func() { result.Unwrap() })
	})
}
