// Command sessiond serves the sessionkit HTTP API: signup, signin, token
// refresh, logout and the current user, backed by Redis.
//
// Run:
//
//	SECRET_KEY=$(openssl rand -hex 32) REDIS_URL=redis://localhost:6379/0 sessiond serve
//
// Without REDIS_URL the server keeps refresh records and rate limit
// counters in process memory.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd(os.Getenv).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
