// Package httputil provides the JSON response and request helpers shared by
// the API handlers, so every endpoint emits the same envelope.
package httputil
