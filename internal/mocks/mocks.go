// Package mocks contains testify mocks for the interfaces consumed across the server.
package mocks

import "github.com/stretchr/testify/mock"

// TestingT is satisfied by *testing.T.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t TestingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}
