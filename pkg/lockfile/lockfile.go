package lockfile

import (
	"context"
	"os"
	"time"
)

// Take claims an exclusive lock file so two installer runs cannot fight
// over the same project directory. It retries once a second until the
// lock is free or the context is canceled; waiting, when non-nil, is
// called on each failed attempt.
//
// The returned closer releases the lock and must be called on every exit
// path.
func Take(ctx context.Context, path string, waiting func()) (func(), error) {
	tk := time.NewTicker(time.Second)
	defer tk.Stop()

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			break
		}

		if waiting != nil {
			waiting()
		}

		select {
		case <-tk.C:
			// retry
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return func() {
		os.Remove(path)
	}, nil
}
