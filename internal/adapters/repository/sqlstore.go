package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/fulbito/internal/domain/model"

	_ "github.com/glebarez/go-sqlite"  // registers "sqlite"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		rating DOUBLE PRECISION NULL
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		played_at BIGINT NOT NULL,
		score_a INTEGER NOT NULL,
		score_b INTEGER NOT NULL,
		replay_url TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS match_players (
		match_id INTEGER NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		player_id INTEGER NOT NULL REFERENCES players(id),
		side TEXT NOT NULL CHECK (side IN ('A', 'B')),
		PRIMARY KEY (match_id, player_id)
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		rating DOUBLE PRECISION NULL
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id BIGSERIAL PRIMARY KEY,
		played_at BIGINT NOT NULL,
		score_a INTEGER NOT NULL,
		score_b INTEGER NOT NULL,
		replay_url TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS match_players (
		match_id BIGINT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		player_id BIGINT NOT NULL REFERENCES players(id),
		side TEXT NOT NULL CHECK (side IN ('A', 'B')),
		PRIMARY KEY (match_id, player_id)
	)`,
	`ALTER TABLE matches ADD COLUMN IF NOT EXISTS replay_url TEXT NULL`,
}

// databases created before replay_url existed
const sqliteHasReplayURL = `SELECT COUNT(*) FROM pragma_table_info('matches') WHERE name = 'replay_url'`

type playerRow struct {
	ID     int64    `db:"id"`
	Name   string   `db:"name"`
	Rating *float64 `db:"rating"`
}

// played_at is stored as unix milliseconds to stay portable across drivers
type matchRow struct {
	ID        int64   `db:"id"`
	PlayedAt  int64   `db:"played_at"`
	ScoreA    int     `db:"score_a"`
	ScoreB    int     `db:"score_b"`
	ReplayURL *string `db:"replay_url"`
}

type participationRow struct {
	MatchID  int64  `db:"match_id"`
	PlayerID int64  `db:"player_id"`
	Side     string `db:"side"`
}

func (r playerRow) model() model.Player {
	return model.Player{ID: r.ID, Name: r.Name, Rating: r.Rating}
}

func (r matchRow) model() model.Match {
	m := model.Match{
		ID:       r.ID,
		PlayedAt: time.UnixMilli(r.PlayedAt).UTC(),
		ScoreA:   r.ScoreA,
		ScoreB:   r.ScoreB,
	}
	if r.ReplayURL != nil {
		m.ReplayURL = *r.ReplayURL
	}
	return m
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// SQLStore implements Store on top of sqlx.
type SQLStore struct {
	db           *sqlx.DB
	maxOpenConns int
}

var _ Store = (*SQLStore)(nil)

// OpenSQL connects to the database and creates the schema if missing.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...SQLOption) (*SQLStore, error) {
	var schema []string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLStore{db: db, maxOpenConns: 10}
	for _, opt := range opts {
		opt(s)
	}
	if driver == DriverSQLite {
		// one connection keeps ":memory:" databases shared and serializes writers
		s.maxOpenConns = 1
	}
	db.SetMaxOpenConns(s.maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	if driver == DriverSQLite {
		if err := s.migrateSQLite(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLStore) migrateSQLite(ctx context.Context) error {
	var n int
	if err := s.db.GetContext(ctx, &n, sqliteHasReplayURL); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `ALTER TABLE matches ADD COLUMN replay_url TEXT NULL`); err != nil {
		return fmt.Errorf("add replay_url: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreatePlayer inserts a new player.
func (s *SQLStore) CreatePlayer(ctx context.Context, name string, rating *float64) (model.Player, error) {
	var id int64
	query := s.db.Rebind(`INSERT INTO players (name, rating) VALUES (?, ?) RETURNING id`)
	if err := s.db.GetContext(ctx, &id, query, name, rating); err != nil {
		return model.Player{}, fmt.Errorf("insert player: %w", err)
	}
	return model.Player{ID: id, Name: name, Rating: rating}, nil
}

// UpdatePlayerRating sets or clears a player's rating.
func (s *SQLStore) UpdatePlayerRating(ctx context.Context, id int64, rating *float64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE players SET rating = ? WHERE id = ?`), rating, id)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("player %d: %w", id, ErrNotFound)
	}
	return nil
}

// RenamePlayer changes a player's display name.
func (s *SQLStore) RenamePlayer(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE players SET name = ? WHERE id = ?`), name, id)
	if err != nil {
		return fmt.Errorf("rename player: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("player %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeletePlayer removes a player and every participation row naming them.
func (s *SQLStore) DeletePlayer(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM match_players WHERE player_id = ?`), id); err != nil {
		return fmt.Errorf("delete participations: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM players WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("player %d: %w", id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListPlayers returns players ordered by ID.
func (s *SQLStore) ListPlayers(ctx context.Context, ids ...int64) ([]model.Player, error) {
	query := `SELECT id, name, rating FROM players`
	var args []any
	if len(ids) > 0 {
		var err error
		query, args, err = sqlx.In(query+` WHERE id IN (?)`, ids)
		if err != nil {
			return nil, fmt.Errorf("build query: %w", err)
		}
	}
	query = s.db.Rebind(query + ` ORDER BY id`)

	var rows []playerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}
	out := make([]model.Player, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// CreateMatch stores the match row and both rosters in one transaction.
func (s *SQLStore) CreateMatch(ctx context.Context, m model.Match, teamA, teamB []int64) (model.Match, error) {
	if err := validateRosters(m, teamA, teamB); err != nil {
		return model.Match{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Match{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkPlayers(ctx, tx, teamA, teamB); err != nil {
		return model.Match{}, err
	}

	var id int64
	insertMatch := tx.Rebind(`INSERT INTO matches (played_at, score_a, score_b, replay_url) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := tx.GetContext(ctx, &id, insertMatch, m.PlayedAt.UnixMilli(), m.ScoreA, m.ScoreB, nullableString(m.ReplayURL)); err != nil {
		return model.Match{}, fmt.Errorf("insert match: %w", err)
	}
	if err := insertParticipations(ctx, tx, id, teamA, teamB); err != nil {
		return model.Match{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Match{}, fmt.Errorf("commit transaction: %w", err)
	}
	m.ID = id
	m.PlayedAt = time.UnixMilli(m.PlayedAt.UnixMilli()).UTC()
	return m, nil
}

// UpdateMatch replaces a match's date, scores, replay link and both rosters
// in one transaction.
func (s *SQLStore) UpdateMatch(ctx context.Context, m model.Match, teamA, teamB []int64) (model.Match, error) {
	if err := validateRosters(m, teamA, teamB); err != nil {
		return model.Match{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Match{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	update := tx.Rebind(`UPDATE matches SET played_at = ?, score_a = ?, score_b = ?, replay_url = ? WHERE id = ?`)
	res, err := tx.ExecContext(ctx, update, m.PlayedAt.UnixMilli(), m.ScoreA, m.ScoreB, nullableString(m.ReplayURL), m.ID)
	if err != nil {
		return model.Match{}, fmt.Errorf("update match: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Match{}, fmt.Errorf("match %d: %w", m.ID, ErrNotFound)
	}
	if err := checkPlayers(ctx, tx, teamA, teamB); err != nil {
		return model.Match{}, err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM match_players WHERE match_id = ?`), m.ID); err != nil {
		return model.Match{}, fmt.Errorf("delete participations: %w", err)
	}
	if err := insertParticipations(ctx, tx, m.ID, teamA, teamB); err != nil {
		return model.Match{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.Match{}, fmt.Errorf("commit transaction: %w", err)
	}
	m.PlayedAt = time.UnixMilli(m.PlayedAt.UnixMilli()).UTC()
	return m, nil
}

func checkPlayers(ctx context.Context, tx *sqlx.Tx, teamA, teamB []int64) error {
	all := append(append(make([]int64, 0, len(teamA)+len(teamB)), teamA...), teamB...)
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM players WHERE id IN (?)`, all)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var found int
	if err := tx.GetContext(ctx, &found, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("count players: %w", err)
	}
	if found != len(all) {
		return fmt.Errorf("%d of %d players: %w", len(all)-found, len(all), ErrNotFound)
	}
	return nil
}

func insertParticipations(ctx context.Context, tx *sqlx.Tx, matchID int64, teamA, teamB []int64) error {
	insert := tx.Rebind(`INSERT INTO match_players (match_id, player_id, side) VALUES (?, ?, ?)`)
	for side, team := range map[model.Side][]int64{model.SideA: teamA, model.SideB: teamB} {
		for _, pid := range team {
			if _, err := tx.ExecContext(ctx, insert, matchID, pid, string(side)); err != nil {
				return fmt.Errorf("insert participation: %w", err)
			}
		}
	}
	return nil
}

// ListMatches returns matches newest first with their rosters.
func (s *SQLStore) ListMatches(ctx context.Context) ([]MatchRecord, error) {
	var rows []matchRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, played_at, score_a, score_b, replay_url FROM matches ORDER BY played_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("select matches: %w", err)
	}
	parts, err := s.ListParticipations(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MatchRecord, len(rows))
	index := make(map[int64]int, len(rows))
	for i, r := range rows {
		out[i] = MatchRecord{Match: r.model()}
		index[r.ID] = i
	}
	for _, p := range parts {
		i, ok := index[p.MatchID]
		if !ok {
			continue
		}
		if p.Side == model.SideA {
			out[i].TeamA = append(out[i].TeamA, p.PlayerID)
		} else {
			out[i].TeamB = append(out[i].TeamB, p.PlayerID)
		}
	}
	return out, nil
}

// ListParticipations returns every participation row ordered by match and player.
func (s *SQLStore) ListParticipations(ctx context.Context) ([]model.Participation, error) {
	var rows []participationRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT match_id, player_id, side FROM match_players ORDER BY match_id, player_id`); err != nil {
		return nil, fmt.Errorf("select participations: %w", err)
	}
	out := make([]model.Participation, 0, len(rows))
	for _, r := range rows {
		side, err := model.ParseSide(r.Side)
		if err != nil {
			return nil, fmt.Errorf("match %d: %w", r.MatchID, err)
		}
		out = append(out, model.Participation{MatchID: r.MatchID, PlayerID: r.PlayerID, Side: side})
	}
	return out, nil
}

// DeleteMatch removes a match and its participations.
func (s *SQLStore) DeleteMatch(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM match_players WHERE match_id = ?`), id); err != nil {
		return fmt.Errorf("delete participations: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM matches WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteMatches removes the given matches and their participations and
// returns how many existed. Unknown ids are skipped.
func (s *SQLStore) DeleteMatches(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no match ids", ErrInvalidMatch)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sqlx.In(`DELETE FROM match_players WHERE match_id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("delete participations: %w", err)
	}
	query, args, err = sqlx.In(`DELETE FROM matches WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete matches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete matches: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return int(n), nil
}

// GetPlayer returns one player.
func (s *SQLStore) GetPlayer(ctx context.Context, id int64) (model.Player, error) {
	var r playerRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT id, name, rating FROM players WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Player{}, fmt.Errorf("player %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("get player: %w", err)
	}
	return r.model(), nil
}

func validateRosters(m model.Match, teamA, teamB []int64) error {
	switch {
	case len(teamA) == 0 || len(teamB) == 0:
		return fmt.Errorf("%w: both teams need players", ErrInvalidMatch)
	case m.ScoreA < 0 || m.ScoreB < 0:
		return fmt.Errorf("%w: negative score", ErrInvalidMatch)
	case m.PlayedAt.IsZero():
		return fmt.Errorf("%w: missing played_at", ErrInvalidMatch)
	}
	if m.ReplayURL != "" {
		u, err := url.Parse(m.ReplayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: replay_url must be an http(s) URL", ErrInvalidMatch)
		}
	}
	seen := make(map[int64]struct{}, len(teamA)+len(teamB))
	for _, id := range append(append([]int64{}, teamA...), teamB...) {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: player %d listed twice", ErrInvalidMatch, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
