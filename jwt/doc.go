// Package jwt mints and verifies the signed session tokens (access and
// refresh) in compact JWS form, with a fixed signing algorithm and a
// kid-indexed verification key set so signing keys can be rotated without
// invalidating tokens already in flight.
package jwt
