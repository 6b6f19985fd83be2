package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithInternalKeepsOriginal(t *testing.T) {
	cause := errors.New("disk gone")
	err := ErrInternalServer.WithInternal(cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, ErrInternalServer.Code, err.Code)
	require.NotSame(t, ErrInternalServer, err)
}

func TestWithMessageDoesNotMutateSentinel(t *testing.T) {
	err := ErrInvalidTransition.WithMessage("cannot check-in a CHECKED_OUT visit")

	require.Equal(t, "cannot check-in a CHECKED_OUT visit", err.Message)
	require.Equal(t, "visit.invalid_transition", err.Code)
	require.Equal(t, http.StatusConflict, err.StatusCode)
	require.Equal(t, "Action not permitted from the visit's current state", ErrInvalidTransition.Message)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrStateConflict)
	require.Same(t, ErrStateConflict, appErr)

	wrapped := FromError(fmt.Errorf("load visit: %w", ErrNotFound))
	require.Same(t, ErrNotFound, wrapped)

	generic := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.Equal(t, http.StatusInternalServerError, generic.StatusCode)
}

func TestSentinelMatchingSurvivesCopies(t *testing.T) {
	require.ErrorIs(t, ErrInvalidTransition.WithMessage("cannot check-in a REJECTED visit"), ErrInvalidTransition)
	require.ErrorIs(t, ErrCheckInWindow.WithMessage("arrived 6h before the expected date"), ErrCheckInWindow)
	require.ErrorIs(t, ErrStateConflict.WithInternal(errors.New("row reloaded")), ErrStateConflict)
	require.ErrorIs(t, fmt.Errorf("check in visit: %w", ErrCheckInWindow.WithMessage("too late")), ErrCheckInWindow)

	require.NotErrorIs(t, ErrInvalidTransition.WithMessage("different code"), ErrStateConflict)
	require.NotErrorIs(t, errors.New("plain"), ErrInvalidTransition)
}

func TestSentinelsAreDistinguishable(t *testing.T) {
	require.NotEqual(t, ErrInvalidTransition.Code, ErrStateConflict.Code)
	require.NotEqual(t, ErrStateConflict.Code, ErrForbidden.Code)
	require.NotEqual(t, ErrCheckInWindow.Code, ErrInvalidTransition.Code)
}
