package app

import (
	"context"
	"fmt"

	"github.com/yungbote/learnhub/internal/platform/logger"
	"github.com/yungbote/learnhub/internal/platform/neo4jdb"
	"github.com/yungbote/learnhub/internal/realtime/bus"
)

type Clients struct {
	Neo4j *neo4jdb.Client
	Bus   bus.Bus
}

func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	// Neo4j is optional; New returns nil when no URI is configured.
	neo, err := neo4jdb.New(cfg.Neo4j, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init neo4j client: %w", err)
	}

	// Redis fans notices out to peer hubs. Without it the hub talks only to itself.
	var b bus.Bus
	if cfg.Redis.Addr != "" {
		b, err = bus.NewRedisBus(cfg.Redis, log)
		if err != nil {
			if neo != nil {
				_ = neo.Close(context.Background())
			}
			return Clients{}, fmt.Errorf("init redis notice bus: %w", err)
		}
	} else {
		b = bus.NewMemoryBus()
	}

	return Clients{
		Neo4j: neo,
		Bus:   b,
	}, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}
