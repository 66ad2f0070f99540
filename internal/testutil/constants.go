// Package testutil holds fixtures shared by package tests.
package testutil

// TestSigningKey is 32+ bytes of HMAC key material for tests only.
const TestSigningKey = "test-signing-key-1234567890123456"
