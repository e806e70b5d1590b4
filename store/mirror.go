package store

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const mirrorKeyPrefix = "protrack:mirror:"

// NewRedisClient connects to the mirror backend and verifies it answers.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// Mirrored decorates a primary TableStore with best-effort copies of every
// successful write into Redis. Mirror failures are logged and never fail
// the operation; the mirror may lag but the primary is authoritative.
type Mirrored struct {
	primary TableStore
	client  *redis.Client
}

func NewMirrored(primary TableStore, client *redis.Client) *Mirrored {
	return &Mirrored{primary: primary, client: client}
}

func (m *Mirrored) ReadTable(ctx context.Context, name string) (*Table, error) {
	return m.primary.ReadTable(ctx, name)
}

func (m *Mirrored) WriteTable(ctx context.Context, tbl *Table, expectedVersion string) error {
	if err := m.primary.WriteTable(ctx, tbl, expectedVersion); err != nil {
		return err
	}
	payload, err := Encode(tbl.Header, tbl.Rows)
	if err != nil {
		log.Printf("[mirror] warning: encode %s for mirror: %v", tbl.Name, err)
		return nil
	}
	mirrorCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.client.Set(mirrorCtx, mirrorKeyPrefix+tbl.Name, payload, 0).Err(); err != nil {
		log.Printf("[mirror] warning: mirror write for %s failed: %v", tbl.Name, err)
	}
	return nil
}
