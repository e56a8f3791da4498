//go:build unit

package queries_test

import (
	"encoding/base64"
	"testing"
	"time"

	"consult-engine/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterCursor(t *testing.T) {
	t.Run("round trip preserves microsecond precision", func(t *testing.T) {
		created := time.Date(2026, 3, 10, 15, 4, 5, 123456000, time.UTC)
		id := uuid.New()

		cursor := queries.EncodeAfterCursor(created, id)
		gotTime, gotID, err := queries.DecodeAfterCursor(cursor)
		require.NoError(t, err)

		assert.True(t, gotTime.Equal(created))
		assert.Equal(t, id, gotID)
	})

	t.Run("empty cursor", func(t *testing.T) {
		_, _, err := queries.DecodeAfterCursor("")
		assert.Error(t, err)
	})

	t.Run("not base64", func(t *testing.T) {
		_, _, err := queries.DecodeAfterCursor("%%%")
		assert.Error(t, err)
	})

	t.Run("unsupported version", func(t *testing.T) {
		raw := base64.URLEncoding.EncodeToString([]byte("v2:123-" + uuid.NewString()))
		_, _, err := queries.DecodeAfterCursor(raw)
		assert.ErrorContains(t, err, "unsupported cursor version")
	})

	t.Run("missing uuid part", func(t *testing.T) {
		raw := base64.URLEncoding.EncodeToString([]byte("v1:123456"))
		_, _, err := queries.DecodeAfterCursor(raw)
		assert.Error(t, err)
	})

	t.Run("garbage timestamp", func(t *testing.T) {
		raw := base64.URLEncoding.EncodeToString([]byte("v1:abc-" + uuid.NewString()))
		_, _, err := queries.DecodeAfterCursor(raw)
		assert.Error(t, err)
	})
}

func TestValidateLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero falls back to default", limit: 0, want: 20},
		{name: "negative falls back to default", limit: -5, want: 20},
		{name: "within range passes through", limit: 50, want: 50},
		{name: "above max is clamped", limit: 1000, want: queries.MaxListLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queries.ValidateLimit(tt.limit))
		})
	}
}
