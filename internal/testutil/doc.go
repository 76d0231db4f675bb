// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing conversation states, scripted model
// steps and external collaborators. They are not intended for production
// usage.
package testutil
