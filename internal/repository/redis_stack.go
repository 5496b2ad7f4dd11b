package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"NewsPull/internal/domain/models"
	domrepo "NewsPull/internal/domain/repository"
	applogger "NewsPull/pkg/logger"
	pkgredis "NewsPull/pkg/redis"

	"github.com/redis/go-redis/v9"
)

// RedisStackStore implements StackStore on Redis.
//
// Each symbol's stack is a list whose head is position 1, paired with a set
// of live URLs for dedup. Push runs as a single Lua script, so the
// dedup-shift-insert-evict sequence is atomic per symbol: concurrent pushes
// for the same symbol serialize inside Redis and a failed call leaves the
// stack untouched, never half-shifted.
type RedisStackStore struct {
	client  *pkgredis.Client
	maxSize int
	push    *redis.Script
	l       *applogger.Logger
}

// pushScript rejects duplicates, pushes to the head, and trims overflow.
// Trimming happens only after the push so an entry landing exactly on the
// capacity boundary survives at its new position.
var pushScript = redis.NewScript(`
local stack = KEYS[1]
local urls = KEYS[2]
local payload = ARGV[1]
local url = ARGV[2]
local max = tonumber(ARGV[3])

if redis.call('SISMEMBER', urls, url) == 1 then
  return -1
end

redis.call('LPUSH', stack, payload)
redis.call('SADD', urls, url)

while redis.call('LLEN', stack) > max do
  local evicted = redis.call('RPOP', stack)
  if evicted then
	local ok, doc = pcall(cjson.decode, evicted)
	if ok and doc['url'] then
	  redis.call('SREM', urls, doc['url'])
	end
  end
end

return redis.call('LLEN', stack)
`)

func NewRedisStackStore(client *pkgredis.Client, maxSize int) *RedisStackStore {
	if maxSize < 1 {
		maxSize = 1
	}
	return &RedisStackStore{client: client, maxSize: maxSize, push: pushScript}
}

// SetLogger injects a structured logger.
func (s *RedisStackStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *RedisStackStore) keys(symbol string) (stack, urls string) {
	return s.client.Key("stack", symbol), s.client.Key("stackurls", symbol)
}

func (s *RedisStackStore) Push(ctx context.Context, symbol string, item models.RawNewsItem) (models.StackEntry, error) {
	symbol = models.NormalizeSymbol(symbol)
	item.Symbol = symbol

	payload, err := json.Marshal(item)
	if err != nil {
		return models.StackEntry{}, fmt.Errorf("marshal stack entry: %w", err)
	}

	stackKey, urlKey := s.keys(symbol)
	depth, err := s.push.Run(ctx, s.client.RDB(), []string{stackKey, urlKey}, payload, item.URL, s.maxSize).Int()
	if err != nil {
		return models.StackEntry{}, fmt.Errorf("%w: stack push: %v", domrepo.ErrStorageUnavailable, err)
	}
	if depth == -1 {
		return models.StackEntry{}, domrepo.ErrDuplicate
	}

	if s.l != nil {
		s.l.Debug("pushed to stack",
			applogger.String("symbol", symbol),
			applogger.String("url", item.URL),
			applogger.Int("depth", depth),
		)
	}
	return models.StackEntry{RawNewsItem: item, Position: 1}, nil
}

func (s *RedisStackStore) Top(ctx context.Context, symbol string, limit int) ([]models.StackEntry, error) {
	symbol = models.NormalizeSymbol(symbol)
	if limit <= 0 || limit > s.maxSize {
		limit = s.maxSize
	}

	stackKey, _ := s.keys(symbol)
	raw, err := s.client.RDB().LRange(ctx, stackKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: stack read: %v", domrepo.ErrStorageUnavailable, err)
	}

	out := make([]models.StackEntry, 0, len(raw))
	for i, doc := range raw {
		var item models.RawNewsItem
		if err := json.Unmarshal([]byte(doc), &item); err != nil {
			return nil, fmt.Errorf("decode stack entry: %w", err)
		}
		out = append(out, models.StackEntry{RawNewsItem: item, Position: i + 1})
	}
	return out, nil
}

func (s *RedisStackStore) IsDuplicate(ctx context.Context, symbol, url string) (bool, error) {
	symbol = models.NormalizeSymbol(symbol)
	_, urlKey := s.keys(symbol)
	dup, err := s.client.RDB().SIsMember(ctx, urlKey, url).Result()
	if err != nil {
		return false, fmt.Errorf("%w: duplicate check: %v", domrepo.ErrStorageUnavailable, err)
	}
	return dup, nil
}

var _ domrepo.StackStore = (*RedisStackStore)(nil)
