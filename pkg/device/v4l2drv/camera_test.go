//go:build linux

package v4l2drv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"cam-streamd/pkg/device"
)

func TestDetachHandlerWaitsForInflightDelivery(t *testing.T) {
	cam := newCamera("/dev/video9", "test", zaptest.NewLogger(t).Sugar())
	req := &request{cam: cam, buf: &frameBuffer{index: 0}}

	entered := make(chan struct{})
	release := make(chan struct{})
	cam.SetCompletionHandler(func(device.Request) {
		close(entered)
		<-release
	})

	delivered := make(chan bool)
	go func() { delivered <- cam.invokeHandler(req) }()
	<-entered

	// Detaching must not return while the delivery above is still
	// inside the handler; otherwise teardown could take the shutdown
	// lock and join the dequeue goroutine it is blocking.
	detached := make(chan struct{})
	go func() {
		cam.SetCompletionHandler(nil)
		close(detached)
	}()

	select {
	case <-detached:
		t.Fatal("handler detached while a delivery was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.True(t, <-delivered)
	<-detached

	// Nothing reaches the old handler after the detach returned.
	assert.False(t, cam.invokeHandler(req))
}

func TestInvokeHandlerWithoutHandler(t *testing.T) {
	cam := newCamera("/dev/video9", "test", zaptest.NewLogger(t).Sugar())
	req := &request{cam: cam, buf: &frameBuffer{index: 0}}
	assert.False(t, cam.invokeHandler(req))
}
