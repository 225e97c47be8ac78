package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const switchMasterChannel = "+switch-master"

// SentinelResolver finds the primary through Redis Sentinel.
type SentinelResolver struct {
	master    string
	sentinels []*redis.SentinelClient
	logger    *zap.Logger
}

// NewSentinelResolver creates a resolver for master, asking addrs in order.
func NewSentinelResolver(master string, addrs []string, password string, logger *zap.Logger) *SentinelResolver {
	sentinels := make([]*redis.SentinelClient, 0, len(addrs))
	for _, addr := range addrs {
		sentinels = append(sentinels, redis.NewSentinelClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}))
	}

	return &SentinelResolver{master: master, sentinels: sentinels, logger: logger}
}

// Primary returns the first answer any sentinel gives.
func (r *SentinelResolver) Primary(ctx context.Context) (string, error) {
	var errs []error

	for _, s := range r.sentinels {
		addr, err := s.GetMasterAddrByName(ctx, r.master).Result()
		if err == nil && len(addr) == 2 {
			return net.JoinHostPort(addr[0], addr[1]), nil
		}

		if err == nil {
			err = fmt.Errorf("unexpected reply %v", addr)
		}

		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return "", errors.New("no sentinels configured")
	}

	return "", fmt.Errorf("resolve master %s: %w", r.master, errors.Join(errs...))
}

// Watch calls onSwitch with the new primary address whenever a sentinel
// announces a failover of the watched master. It blocks until ctx is done,
// moving to the next sentinel when a subscription drops.
func (r *SentinelResolver) Watch(ctx context.Context, onSwitch func(addr string)) error {
	if len(r.sentinels) == 0 {
		return errors.New("no sentinels configured")
	}

	for i := 0; ; i = (i + 1) % len(r.sentinels) {
		if err := r.watchOne(ctx, r.sentinels[i], onSwitch); err != nil {
			r.logger.Warn("sentinel subscription lost", zap.Int("sentinel", i), zap.Error(err))
		}

		if err := sleepCtx(ctx, time.Second); err != nil {
			return err
		}
	}
}

func (r *SentinelResolver) watchOne(ctx context.Context, s *redis.SentinelClient, onSwitch func(string)) error {
	sub := s.Subscribe(ctx, switchMasterChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}

			if addr, ok := parseSwitchMaster(msg.Payload, r.master); ok {
				onSwitch(addr)
			}
		}
	}
}

// Close releases every sentinel connection.
func (r *SentinelResolver) Close() error {
	var errs []error
	for _, s := range r.sentinels {
		errs = append(errs, s.Close())
	}

	return errors.Join(errs...)
}

// parseSwitchMaster reads "<master> <old-ip> <old-port> <new-ip> <new-port>".
func parseSwitchMaster(payload, master string) (string, bool) {
	fields := strings.Fields(payload)
	if len(fields) != 5 || fields[0] != master {
		return "", false
	}

	return net.JoinHostPort(fields[3], fields[4]), true
}

var _ PrimaryResolver = (*SentinelResolver)(nil)
