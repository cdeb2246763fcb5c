package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"bluecarbon/internal/platform/redis"
	id "bluecarbon/pkg/domain"
)

// releaseScript deletes the lease only when the caller still holds it, so a
// reviewer whose lease expired cannot drop a successor's claim.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease implements ReviewerLease on SET NX with a TTL, shared across
// service replicas.
type RedisLease struct {
	client *redis.Client
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client}
}

func leaseKey(recordID id.VerificationID) string {
	return "verification:review-lease:" + recordID.String()
}

func (l *RedisLease) Acquire(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID, ttl time.Duration) (bool, error) {
	key := leaseKey(recordID)
	ok, err := l.client.SetNX(ctx, key, reviewerID.String(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire review lease: %w", err)
	}
	if ok {
		return true, nil
	}

	holder, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		// Expired between SET NX and GET; retry once.
		ok, err = l.client.SetNX(ctx, key, reviewerID.String(), ttl).Result()
		if err != nil {
			return false, fmt.Errorf("acquire review lease: %w", err)
		}
		return ok, nil
	}
	if err != nil {
		return false, fmt.Errorf("read review lease holder: %w", err)
	}
	if holder == reviewerID.String() {
		if err := l.client.Expire(ctx, key, ttl).Err(); err != nil {
			return false, fmt.Errorf("refresh review lease: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (l *RedisLease) Release(ctx context.Context, recordID id.VerificationID, reviewerID id.VerifierID) error {
	if err := releaseScript.Run(ctx, l.client, []string{leaseKey(recordID)}, reviewerID.String()).Err(); err != nil {
		return fmt.Errorf("release review lease: %w", err)
	}
	return nil
}
