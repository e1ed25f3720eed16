package events

import (
	"context"
	"sync"
)

// Recorder запоминает routing key опубликованных сообщений; для тестов.
type Recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *Recorder) PublishJSON(_ context.Context, key string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

// Keys возвращает копию routing key в порядке публикации.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}
