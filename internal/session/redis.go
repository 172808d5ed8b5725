package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mfenderov/samanta/pkg/models"
)

// busyTTL bounds how long a crashed process can leave a session Processing.
const busyTTL = 5 * time.Minute

// releaseScript deletes the busy key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Store shared by several server processes. Every session key
// expires ttl after the session was last written.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// redisMeta is the JSON value kept under the session key.
type redisMeta struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	LastArticle *models.Article `json:"last_article,omitempty"`
}

// NewRedis creates a store on an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "samanta:session:"}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) metaKey(id string) string  { return r.prefix + id }
func (r *Redis) turnsKey(id string) string { return r.prefix + id + ":turns" }
func (r *Redis) busyKey(id string) string  { return r.prefix + id + ":busy" }

func (r *Redis) Create(ctx context.Context) (*Session, error) {
	meta := redisMeta{ID: NewID(), CreatedAt: time.Now().UTC()}
	if err := r.writeMeta(ctx, meta); err != nil {
		return nil, err
	}
	return &Session{ID: meta.ID, CreatedAt: meta.CreatedAt, State: StateIdle}, nil
}

func (r *Redis) Get(ctx context.Context, id string) (*Session, error) {
	meta, err := r.readMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	turns, err := r.History(ctx, id)
	if err != nil {
		return nil, err
	}
	busy, err := r.client.Exists(ctx, r.busyKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	state := StateIdle
	if busy == 1 {
		state = StateProcessing
	}
	return &Session{
		ID:          meta.ID,
		CreatedAt:   meta.CreatedAt,
		Turns:       turns,
		LastArticle: meta.LastArticle,
		State:       state,
	}, nil
}

func (r *Redis) AppendTurn(ctx context.Context, id string, role models.Role, text string) error {
	if err := r.exists(ctx, id); err != nil {
		return err
	}

	data, err := json.Marshal(models.ChatTurn{Role: role, Content: text})
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.turnsKey(id), data)
		r.expire(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (r *Redis) History(ctx context.Context, id string) ([]models.ChatTurn, error) {
	values, err := r.client.LRange(ctx, r.turnsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	turns := make([]models.ChatTurn, 0, len(values))
	for _, v := range values {
		var turn models.ChatTurn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (r *Redis) SetLastArticle(ctx context.Context, id string, article models.Article) error {
	meta, err := r.readMeta(ctx, id)
	if err != nil {
		return err
	}
	meta.LastArticle = &article
	return r.writeMeta(ctx, meta)
}

func (r *Redis) Begin(ctx context.Context, id string) (string, error) {
	if err := r.exists(ctx, id); err != nil {
		return "", err
	}
	token := NewID()
	ok, err := r.client.SetNX(ctx, r.busyKey(id), token, busyTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to mark session busy: %w", err)
	}
	if !ok {
		return "", ErrBusy
	}
	return token, nil
}

func (r *Redis) End(ctx context.Context, id, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.busyKey(id)}, token).Err(); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}

func (r *Redis) exists(ctx context.Context, id string) error {
	n, err := r.client.Exists(ctx, r.metaKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to look up session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) readMeta(ctx context.Context, id string) (redisMeta, error) {
	var meta redisMeta
	val, err := r.client.Get(ctx, r.metaKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return meta, ErrNotFound
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read session: %w", err)
	}
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return meta, fmt.Errorf("failed to decode session: %w", err)
	}
	return meta, nil
}

func (r *Redis) writeMeta(ctx context.Context, meta redisMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.metaKey(meta.ID), data, r.ttl)
		r.expire(ctx, pipe, meta.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (r *Redis) expire(ctx context.Context, pipe redis.Pipeliner, id string) {
	if r.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, r.metaKey(id), r.ttl)
	pipe.Expire(ctx, r.turnsKey(id), r.ttl)
}
