package backend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/backend"
	"github.com/picdock/engine/internal/model"
)

func TestRegistryUnknownBackend(t *testing.T) {
	r := backend.NewRegistry()

	_, err := r.Create(model.BackendWeibo)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrUnknownBackend)
	assert.False(t, r.Registered(model.BackendWeibo))
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := backend.NewRegistry()
	r.Register(model.BackendSmms, func() backend.IBackend {
		return nil
	})

	assert.True(t, r.Registered(model.BackendSmms))

	b, err := r.Create(model.BackendSmms)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestErrorRecoverable(t *testing.T) {
	cred := &backend.Error{Kind: backend.KindCredentialExpired, BackendID: model.BackendWeibo}
	assert.False(t, cred.Recoverable())

	auth := &backend.Error{Kind: backend.KindAuthFailure, BackendID: model.BackendGithub}
	assert.False(t, auth.Recoverable())

	notFound := &backend.Error{Kind: backend.KindFileSystem, Op: "not-found"}
	assert.False(t, notFound.Recoverable())

	otherFS := &backend.Error{Kind: backend.KindFileSystem, Op: "read"}
	assert.True(t, otherFS.Recoverable())

	rate := &backend.Error{Kind: backend.KindRateLimited, BackendID: model.BackendR2}
	assert.True(t, rate.Recoverable())
}
