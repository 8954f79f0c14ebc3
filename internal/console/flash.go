package console

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/alecgard/ovpnadmin/internal/logging"
	"github.com/alecgard/ovpnadmin/internal/notify"
	"github.com/alecgard/ovpnadmin/internal/storage"
)

const (
	flashKey = "ovpnadmin-flash"

	// flashTTL bounds how long an unseen message waits for the next page.
	flashTTL = 10 * time.Minute
)

// flashSink queues notifications in the browser's state storage until the
// next rendered page shows them, so messages survive a redirect.
type flashSink struct {
	mu sync.Mutex
	kv storage.KV
}

func newFlashSink(kv storage.KV) *flashSink {
	return &flashSink{kv: kv}
}

func (f *flashSink) Show(ctx context.Context, msg notify.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.read(ctx)
	msgs = append(msgs, msg)
	data, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	if err := f.kv.Set(ctx, flashKey, data, time.Now().Add(flashTTL)); err != nil {
		logging.FromContext(ctx).Warn("queueing flash message", "error", err)
	}
}

// Drain returns the queued messages and removes them.
func (f *flashSink) Drain(ctx context.Context) []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.read(ctx)
	if len(msgs) > 0 {
		if err := f.kv.Delete(ctx, flashKey); err != nil {
			logging.FromContext(ctx).Warn("clearing flash messages", "error", err)
		}
	}
	return msgs
}

func (f *flashSink) read(ctx context.Context) []notify.Message {
	raw, err := f.kv.Get(ctx, flashKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.FromContext(ctx).Warn("reading flash messages", "error", err)
		}
		return nil
	}
	var msgs []notify.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil
	}
	return msgs
}
