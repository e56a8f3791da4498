//go:build unit

package refcode_test

import (
	"strings"
	"testing"

	"consult-engine/internal/pkg/refcode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("format", func(t *testing.T) {
		code, err := refcode.New()
		require.NoError(t, err)

		assert.Len(t, code, 11)
		assert.True(t, strings.HasPrefix(code, "CB-"))
		for _, c := range code[3:] {
			assert.NotContains(t, "01OIL", string(c))
		}
	})

	t.Run("codes do not repeat in practice", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 1000; i++ {
			code, err := refcode.New()
			require.NoError(t, err)
			assert.False(t, seen[code], "duplicate code %s", code)
			seen[code] = true
		}
	})
}
