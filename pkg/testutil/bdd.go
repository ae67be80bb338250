// Package testutil holds small helpers shared by tests across packages.
package testutil

import "testing"

// Given, When, and Then wrap t.Run with labeled subtests so scenario-style
// tests read as prose without pulling in a BDD framework.

func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
