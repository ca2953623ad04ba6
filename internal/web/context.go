package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/tabjson/internal/core"
	webmw "github.com/JonMunkholm/tabjson/internal/web/middleware"
)

// withRequestMetadata adds the resolved client IP to the context for
// conversion logs.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClientIP(ctx, webmw.ClientIP(r))
}
