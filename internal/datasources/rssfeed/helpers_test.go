package rssfeed

import (
	"context"
	"io"
	"log/slog"

	"github.com/blockwire/news-curator/internal/domain"
)

func testCtx() context.Context {
	return domain.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}
