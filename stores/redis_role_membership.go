package stores

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisRoleMembershipStore stores account roles in Redis sets
// (key: tugraz:roles:{subjectID}).
type RedisRoleMembershipStore struct {
	client redis.UniversalClient
	keyFmt string
}

func NewRedisRoleMembershipStore(client redis.UniversalClient) *RedisRoleMembershipStore {
	return &RedisRoleMembershipStore{client: client, keyFmt: "tugraz:roles:%s"}
}

func (r *RedisRoleMembershipStore) key(subjectID string) string {
	return fmt.Sprintf(r.keyFmt, subjectID)
}

func (r *RedisRoleMembershipStore) AssignRole(ctx context.Context, subjectID, roleID string) error {
	if err := r.client.SAdd(ctx, r.key(subjectID), roleID).Err(); err != nil {
		return fmt.Errorf("assign role %s to %s: %w", roleID, subjectID, err)
	}
	return nil
}

func (r *RedisRoleMembershipStore) RevokeRole(ctx context.Context, subjectID, roleID string) error {
	if err := r.client.SRem(ctx, r.key(subjectID), roleID).Err(); err != nil {
		return fmt.Errorf("revoke role %s from %s: %w", roleID, subjectID, err)
	}
	return nil
}

func (r *RedisRoleMembershipStore) ListRoles(ctx context.Context, subjectID string) ([]string, error) {
	res, err := r.client.SMembers(ctx, r.key(subjectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list roles of %s: %w", subjectID, err)
	}
	sort.Strings(res)
	return res, nil
}
