package server

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/boardkit/boardkit/pkg/errors"
)

// Broker relays room traffic between server instances so participants of
// the same room converge regardless of which instance they connected to.
type Broker interface {
	// Publish sends one room payload to every other instance.
	Publish(ctx context.Context, room string, payload []byte) error
	// Subscribe streams payloads other instances published for room. The
	// returned stop function ends the stream and closes the channel.
	Subscribe(ctx context.Context, room string) (<-chan []byte, func(), error)
	Close() error
}

// RedisBroker implements Broker over redis pub/sub, one channel per room.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker connects to addr (host:port).
func NewRedisBroker(ctx context.Context, addr string) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping redis at %s", addr)
	}
	return &RedisBroker{client: client}, nil
}

func channelFor(room string) string { return "boardkit:room:" + room }

func (b *RedisBroker) Publish(ctx context.Context, room string, payload []byte) error {
	if err := b.client.Publish(ctx, channelFor(room), payload).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "publish to room %s", room)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, room string) (<-chan []byte, func(), error) {
	sub := b.client.Subscribe(ctx, channelFor(room))
	if _, err := sub.Receive(ctx); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeNetwork, err, "subscribe to room %s", room)
	}

	out := make(chan []byte, 64)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default: // a slow instance drops rather than stalls
				}
			}
		}
	}()

	var stopped bool
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		_ = sub.Close()
	}
	return out, stop, nil
}

func (b *RedisBroker) Close() error { return b.client.Close() }
