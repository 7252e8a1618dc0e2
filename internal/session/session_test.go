package session

import (
	"context"
	"testing"

	"github.com/kiwari-pos/terminal/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestOperator_NilSession(t *testing.T) {
	var s *Session
	id, name := s.Operator()
	assert.Equal(t, UnknownOperatorID, id)
	assert.Equal(t, UnknownOperatorName, name)
	assert.Empty(t, s.BearerToken())
}

func TestOperator_PartialSession(t *testing.T) {
	s := &Session{UserID: "u-9"}
	id, name := s.Operator()
	assert.Equal(t, "u-9", id)
	assert.Equal(t, UnknownOperatorName, name)
}

func TestFromClaims(t *testing.T) {
	assert.Nil(t, FromClaims(nil, "tok"))

	s := FromClaims(&auth.Claims{UserID: "u-1", DisplayName: "Dewi", Role: "MANAGER"}, "tok")
	id, name := s.Operator()
	assert.Equal(t, "u-1", id)
	assert.Equal(t, "Dewi", name)
	assert.Equal(t, "MANAGER", s.Role)
	assert.Equal(t, "tok", s.BearerToken())
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	s := &Session{UserID: "u-2"}
	assert.Same(t, s, FromContext(NewContext(ctx, s)))
}
