package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// PGStore persists the registry in Postgres, one JSONB document per guild.
// Load and Save carry whole-document semantics: the reconciliation loop and
// the command handlers both read the full registry and write it back, so a
// Save replaces every row and removes rows for guilds no longer present.
// Concurrent writers race at last-write-wins granularity, which is accepted
// given the low mutation frequency of the command surface.
type PGStore struct {
	DB *sql.DB
}

// Load reads the whole registry. Missing rows are not an error: an empty
// registry is returned so a fresh deployment skips cycles cleanly.
func (s *PGStore) Load(ctx context.Context) (Registry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT guild_id, config FROM guild_registry`)
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err), slog.String("component", "registry"))
		}
	}()
	reg := make(Registry)
	for rows.Next() {
		var gid string
		var raw []byte
		if err := rows.Scan(&gid, &raw); err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}
		var g GuildConfig
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("decode guild %s config: %w", gid, err)
		}
		if g.Streamers == nil {
			g.Streamers = make(map[string]*Streamer)
		}
		reg[gid] = &g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry rows: %w", err)
	}
	return reg, nil
}

// Save replaces the stored registry with reg in a single transaction: every
// present guild is upserted and stale rows are deleted.
func (s *PGStore) Save(ctx context.Context, reg Registry) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registry save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for gid, g := range reg {
		raw, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode guild %s config: %w", gid, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO guild_registry (guild_id, config, updated_at) VALUES ($1,$2,NOW())
			ON CONFLICT (guild_id) DO UPDATE SET config=EXCLUDED.config, updated_at=NOW()`, gid, raw); err != nil {
			return fmt.Errorf("upsert guild %s: %w", gid, err)
		}
	}

	// Remove guilds that were dropped from the in-memory document.
	ids := make([]string, 0, len(reg))
	for gid := range reg {
		ids = append(ids, gid)
	}
	if len(ids) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM guild_registry`); err != nil {
			return fmt.Errorf("clear registry: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DELETE FROM guild_registry WHERE guild_id != ALL($1)`, ids); err != nil {
			return fmt.Errorf("prune registry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registry save: %w", err)
	}
	return nil
}

// Touch records a timestamp marker in the kv table, used as a job liveness
// heartbeat surfaced by the /status endpoint.
func (s *PGStore) Touch(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ($1, to_char(NOW() AT TIME ZONE 'UTC','YYYY-MM-DD"T"HH24:MI:SS.MS"Z"'), NOW())
		ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`, key)
	return err
}

// KV returns the stored value for a kv key, or empty string when absent.
func (s *PGStore) KV(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}
