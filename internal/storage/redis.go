package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis"
	log "github.com/sirupsen/logrus"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/logging"
	"github.com/pkg/errors"
)

const redisKeyPrefix = "Benchmark"

// RedisStore persists containers in redis, one hash per (campaign, kind).
// Useful when several login-node sessions need to observe the same campaign
// state; semantics are identical to the sqlite backend, including the
// whole-container rewrite on Save.
type RedisStore struct {
	db  redis.UniversalClient
	log *log.Entry
}

func NewRedisStore(db redis.UniversalClient) *RedisStore {
	return &RedisStore{db: db, log: log.WithField("store", "redis")}
}

func redisContainerKey(campaignID, kind string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, campaignID, kind)
}

func (s *RedisStore) readContainer(campaignID, kind string) (container, error) {
	result, err := s.db.HGetAll(redisContainerKey(campaignID, kind)).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	c := make(container, len(result))
	for id, doc := range result {
		var attrs Attrs
		if err := json.Unmarshal([]byte(doc), &attrs); err != nil {
			return nil, errors.WithStack(err)
		}
		c[id] = attrs
	}
	return c, nil
}

func (s *RedisStore) writeContainer(campaignID, kind string, c container) error {
	key := redisContainerKey(campaignID, kind)
	fields := make(map[string]interface{}, len(c))
	for id, attrs := range c {
		data, err := json.Marshal(attrs)
		if err != nil {
			return errors.WithStack(err)
		}
		fields[id] = string(data)
	}
	pipe := s.db.TxPipeline()
	pipe.Del(key)
	if len(fields) > 0 {
		pipe.HMSet(key, fields)
	}
	_, err := pipe.Exec()
	return errors.WithStack(err)
}

func (s *RedisStore) Save(campaignID, kind, id string, attrs Attrs) bool {
	c, err := s.readContainer(campaignID, kind)
	if err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to read container %s/%s", campaignID, kind)
		return false
	}
	c[id] = attrs
	if err := s.writeContainer(campaignID, kind, c); err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to write container %s/%s", campaignID, kind)
		return false
	}
	return true
}

func (s *RedisStore) Load(campaignID, kind, id string) (Attrs, bool) {
	c, err := s.readContainer(campaignID, kind)
	if err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to read container %s/%s", campaignID, kind)
		return nil, false
	}
	attrs, ok := c[id]
	return attrs, ok
}

func (s *RedisStore) LoadAll(campaignID, kind string) []Attrs {
	c, err := s.readContainer(campaignID, kind)
	if err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to read container %s/%s", campaignID, kind)
		return nil
	}
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Attrs, 0, len(c))
	for _, id := range ids {
		out = append(out, withID(id, c[id]))
	}
	return out
}

func (s *RedisStore) Delete(campaignID, kind, id string) bool {
	key := redisContainerKey(campaignID, kind)
	n, err := s.db.HDel(key, id).Result()
	if err != nil {
		logging.WithStacktrace(s.log, errors.WithStack(err)).Warnf("failed to delete %s from %s/%s", id, campaignID, kind)
		return false
	}
	return n > 0
}

func (s *RedisStore) ListCampaigns() []string {
	keys, err := s.db.Keys(redisKeyPrefix + ":*").Result()
	if err != nil {
		logging.WithStacktrace(s.log, errors.WithStack(err)).Warn("failed to list campaigns")
		return nil
	}
	seen := map[string]bool{}
	var ids []string
	for _, key := range keys {
		parts := strings.Split(key, ":")
		if len(parts) < 3 {
			continue
		}
		if !seen[parts[1]] {
			seen[parts[1]] = true
			ids = append(ids, parts[1])
		}
	}
	sort.Strings(ids)
	return ids
}
