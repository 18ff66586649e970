package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Reader runs admin queries against an index file.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type SnapshotRow struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	WorldID    string `json:"world_id"`
	RunID      string `json:"run_id,omitempty"`
	Assemblies int    `json:"assemblies"`
	Parts      int    `json:"parts"`
	Joints     int    `json:"joints"`
	Bytes      int64  `json:"bytes"`
}

type CommandRow struct {
	Tick     uint64 `json:"tick"`
	Seq      int    `json:"seq"`
	Assembly string `json:"assembly"`
	Kind     string `json:"kind"`
	Code     string `json:"code,omitempty"`
	CmdJSON  string `json:"cmd_json"`
}

type EventRow struct {
	Tick     uint64  `json:"tick"`
	Seq      int     `json:"seq"`
	Type     string  `json:"type"`
	Assembly string  `json:"assembly"`
	Part     string  `json:"part,omitempty"`
	Joint    string  `json:"joint,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Value    float64 `json:"value,omitempty"`
}

type LossRow struct {
	Tick     uint64 `json:"tick"`
	Assembly string `json:"assembly"`
	Reason   string `json:"reason"`
}

type CatalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

// Stats summarizes what the index holds.
type Stats struct {
	FirstTick uint64 `json:"first_tick"`
	LastTick  uint64 `json:"last_tick"`
	Ticks     int64  `json:"ticks"`
	Commands  int64  `json:"commands"`
	Rejected  int64  `json:"rejected"`
	Events    int64  `json:"events"`
	Losses    int64  `json:"losses"`
	Snapshots int64  `json:"snapshots"`
}

func (r *Reader) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var first, last int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MIN(tick),0), COALESCE(MAX(tick),0), COUNT(*), COALESCE(SUM(commands),0), COALESCE(SUM(rejected),0) FROM ticks`).
		Scan(&first, &last, &s.Ticks, &s.Commands, &s.Rejected)
	if err != nil {
		return s, err
	}
	s.FirstTick, s.LastTick = uint64(first), uint64(last)
	for _, q := range []struct {
		table string
		dst   *int64
	}{{"events", &s.Events}, {"losses", &s.Losses}, {"snapshots", &s.Snapshots}} {
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dst); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (r *Reader) Snapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick,path,world_id,run_id,assemblies,parts,joints,bytes FROM snapshots ORDER BY tick DESC LIMIT ?`, limitOr(limit, 20))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		var tick int64
		if err := rows.Scan(&tick, &s.Path, &s.WorldID, &s.RunID, &s.Assemblies, &s.Parts, &s.Joints, &s.Bytes); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSnapshot returns ok=false when no snapshot has been indexed.
func (r *Reader) LatestSnapshot(ctx context.Context) (SnapshotRow, bool, error) {
	rows, err := r.Snapshots(ctx, 1)
	if err != nil || len(rows) == 0 {
		return SnapshotRow{}, false, err
	}
	return rows[0], true, nil
}

// Commands lists recent commands, newest first. An empty assembly matches every machine;
// rejectedOnly keeps commands that came back with an error code.
func (r *Reader) Commands(ctx context.Context, assembly string, rejectedOnly bool, limit int) ([]CommandRow, error) {
	q := `SELECT tick,seq,assembly,kind,code,cmd_json FROM commands WHERE (?='' OR assembly=?) AND (?=0 OR code<>'') ORDER BY tick DESC, seq DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, assembly, assembly, boolInt(rejectedOnly), limitOr(limit, 50))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommandRow
	for rows.Next() {
		var c CommandRow
		var tick int64
		if err := rows.Scan(&tick, &c.Seq, &c.Assembly, &c.Kind, &c.Code, &c.CmdJSON); err != nil {
			return nil, err
		}
		c.Tick = uint64(tick)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Events lists recent machine events, newest first. Empty filters match everything.
func (r *Reader) Events(ctx context.Context, assembly, typ string, limit int) ([]EventRow, error) {
	q := `SELECT tick,seq,type,assembly,part,joint,reason,value FROM events WHERE (?='' OR assembly=?) AND (?='' OR type=?) ORDER BY tick DESC, seq DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, assembly, assembly, typ, typ, limitOr(limit, 50))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventRow
	for rows.Next() {
		var e EventRow
		var tick int64
		if err := rows.Scan(&tick, &e.Seq, &e.Type, &e.Assembly, &e.Part, &e.Joint, &e.Reason, &e.Value); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Reader) Losses(ctx context.Context, limit int) ([]LossRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick,assembly,reason FROM losses ORDER BY tick DESC LIMIT ?`, limitOr(limit, 50))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LossRow
	for rows.Next() {
		var l LossRow
		var tick int64
		if err := rows.Scan(&tick, &l.Assembly, &l.Reason); err != nil {
			return nil, err
		}
		l.Tick = uint64(tick)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Reader) Catalogs(ctx context.Context) ([]CatalogRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CatalogRow
	for rows.Next() {
		var c CatalogRow
		if err := rows.Scan(&c.Name, &c.Digest, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TickDigest returns the recorded digest for one tick.
func (r *Reader) TickDigest(ctx context.Context, tick uint64) (string, bool, error) {
	var d string
	err := r.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE tick=?`, int64(tick)).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return d, true, nil
}

func limitOr(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
