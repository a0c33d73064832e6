package mesh

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/qrave1/MeshRoom/internal/domain"
)

// localCapture - единственный локальный захват, общий для всех сессий.
// Захватывается лениво один раз, освобождается один раз.
type localCapture struct {
	media domain.MediaCapability
	group singleflight.Group

	mu    sync.Mutex
	local domain.LocalMedia
}

func (c *localCapture) acquire(ctx context.Context) (domain.LocalMedia, error) {
	if local := c.current(); local != nil {
		return local, nil
	}

	v, err, _ := c.group.Do("local", func() (any, error) {
		if local := c.current(); local != nil {
			return local, nil
		}

		local, err := c.media.AcquireLocalMedia(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.local = local
		c.mu.Unlock()

		return local, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMediaAcquisition, err)
	}

	return v.(domain.LocalMedia), nil
}

func (c *localCapture) current() domain.LocalMedia {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.local
}

func (c *localCapture) release() error {
	c.mu.Lock()
	local := c.local
	c.local = nil
	c.mu.Unlock()

	if local == nil {
		return nil
	}

	return local.Close()
}
