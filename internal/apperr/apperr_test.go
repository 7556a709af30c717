package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"royalty-admin/internal/apperr"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindOf(t *testing.T) {
	base := apperr.New(apperr.NotFound, "role %s not found", "x")
	wrapped := fmt.Errorf("loading: %w", base)

	assert.Equal(t, apperr.NotFound, apperr.KindOf(wrapped))
	assert.True(t, apperr.Is(wrapped, apperr.NotFound))
	assert.Equal(t, apperr.Internal, apperr.KindOf(errors.New("plain")))
	assert.False(t, apperr.Is(nil, apperr.Internal))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, apperr.HTTPStatus(apperr.Authentication))
	assert.Equal(t, http.StatusForbidden, apperr.HTTPStatus(apperr.Authorization))
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(apperr.Validation))
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(apperr.InvalidOperation))
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(apperr.NotFound))
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(apperr.Conflict))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(apperr.Internal))
}

func TestPublicMessage(t *testing.T) {
	cause := errors.New("pq: connection refused")

	t.Run("Internal hides cause", func(t *testing.T) {
		err := apperr.Wrap(apperr.Internal, cause, "failed to load")
		assert.Equal(t, "Internal server error", apperr.PublicMessage(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("Client errors keep message", func(t *testing.T) {
		err := apperr.Wrap(apperr.Conflict, cause, "role already exists")
		assert.Equal(t, "role already exists", apperr.PublicMessage(err))
	})

	t.Run("Untyped errors are internal", func(t *testing.T) {
		assert.Equal(t, "Internal server error", apperr.PublicMessage(cause))
	})
}

func TestFromDB(t *testing.T) {
	assert.Equal(t, apperr.NotFound, apperr.FromDB(gorm.ErrRecordNotFound, "role not found").Kind)
	assert.Equal(t, "role not found", apperr.FromDB(gorm.ErrRecordNotFound, "role not found").Message)
	assert.Equal(t, apperr.Conflict, apperr.FromDB(gorm.ErrDuplicatedKey, "").Kind)
	assert.Equal(t, apperr.Internal, apperr.FromDB(errors.New("boom"), "").Kind)
}
