package apperr

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("missing"), http.StatusBadRequest},
		{"conflict", Conflict("dup"), http.StatusBadRequest},
		{"not found", NotFound("nope"), http.StatusNotFound},
		{"unauthenticated", Unauthenticated("login"), http.StatusUnauthorized},
		{"storage", Storage("failed", sql.ErrConnDone), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("create patient: %w", Conflict("phone taken"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))
}

func TestStorage_HidesCause(t *testing.T) {
	cause := fmt.Errorf("disk I/O error")
	err := Storage("Failed to retrieve patients", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to retrieve patients", PublicMessage(err))
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Equal(t, "Internal server error", PublicMessage(fmt.Errorf("raw")))
}
