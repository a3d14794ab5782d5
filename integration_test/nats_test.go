package integration_test

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
)

// startNATSContainer starts a JetStream-enabled NATS server. Streams and
// consumers are created by the service itself.
func startNATSContainer(ctx context.Context) (testcontainers.Container, string, error) {
	natsContainer, err := tcnats.Run(ctx,
		"nats:2.11-alpine",
		tcnats.WithArgument("name", "test-nats-server"),
		tcnats.WithArgument("store_dir", "/data"),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start NATS container: %w", err)
	}

	natsURL, err := natsContainer.ConnectionString(ctx)
	if err != nil {
		return natsContainer, "", fmt.Errorf("failed to get NATS connection string: %w", err)
	}
	if err := WaitUntilNatsReady(ctx, natsURL); err != nil {
		return natsContainer, natsURL, err
	}
	return natsContainer, natsURL, nil
}

// WaitUntilNatsReady polls until JetStream answers account info.
func WaitUntilNatsReady(ctx context.Context, natsURL string) error {
	deadline := time.Now().Add(30 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		lastErr = func() error {
			nc, err := natsgo.Connect(natsURL, natsgo.Timeout(2*time.Second))
			if err != nil {
				return err
			}
			defer nc.Close()
			js, err := nc.JetStream()
			if err != nil {
				return err
			}
			_, err = js.AccountInfo(natsgo.Context(ctx))
			return err
		}()
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("NATS not ready at %s: %w", natsURL, lastErr)
}

// streamMessageCount returns the number of messages held by stream.
func streamMessageCount(natsURL, stream string) (uint64, error) {
	nc, err := natsgo.Connect(natsURL)
	if err != nil {
		return 0, err
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		return 0, err
	}
	info, err := js.StreamInfo(stream)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}
