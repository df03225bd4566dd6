package scene

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ImageState tracks the lifecycle of an image node's bitmap. Nodes are
// created synchronously in ImagePending; the bitmap resolves off the
// interaction path and triggers a bounded repaint of that node's layer.
type ImageState int

const (
	ImageNone ImageState = iota
	ImagePending
	ImageReady
	ImageBroken
)

// ImageInfo carries the intrinsic dimensions of a resolved image.
type ImageInfo struct {
	Width  float64
	Height float64
}

// ImageLoader resolves an image source to its intrinsic dimensions.
type ImageLoader interface {
	Load(ctx context.Context, src string) (ImageInfo, error)
}

// HTTPImageLoader fetches image headers over HTTP and decodes the
// dimensions without keeping pixel data around.
type HTTPImageLoader struct {
	Client *http.Client
}

func (l *HTTPImageLoader) Load(ctx context.Context, src string) (ImageInfo, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("build image request for %s: %w", src, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("fetch image %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ImageInfo{}, fmt.Errorf("fetch image %s: unexpected status %d", src, resp.StatusCode)
	}
	cfg, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image %s: %w", src, err)
	}
	return ImageInfo{Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
}

// resolveImage delivers an image-load completion to the node. A failed
// load leaves the node in a broken-image state; it is never torn down.
func (n *Node) resolveImage(info ImageInfo, err error) {
	n.mu.Lock()
	if err != nil {
		n.imageState = ImageBroken
	} else {
		n.imageState = ImageReady
		n.intrinsicW, n.intrinsicH = info.Width, info.Height
	}
	n.mu.Unlock()

	if err != nil {
		logrus.WithError(err).WithField("element_id", n.id).Warn("Image load failed")
	}
	// Bounded repaint: only this node's layer redraws.
	n.redraw()
}

func (n *Node) ImageState() ImageState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.imageState
}

// IntrinsicSize returns the resolved bitmap dimensions, or zeros while the
// image is still pending or broken.
func (n *Node) IntrinsicSize() (width, height float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.intrinsicW, n.intrinsicH
}
