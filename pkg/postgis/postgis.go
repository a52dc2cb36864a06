// Package postgis stores rooms in PostgreSQL/PostGIS and answers the same
// radius and viewport queries as the in-memory index.
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kass/go-room-rank/pkg/config"
	"github.com/kass/go-room-rank/pkg/models"
	"github.com/lib/pq"
)

const batchSize = 10000

const roomColumns = `id, title, ST_Y(location) AS lat, ST_X(location) AS lon,
	view_count, favorite_count, contract_count, created_at, status,
	amenities, furniture, rent_price, area, district, province`

// RoomStore is a PostGIS-backed room table
type RoomStore struct {
	db  *sql.DB
	log *slog.Logger
}

// StoreStats describes the size of the room table
type StoreStats struct {
	DatabaseSize string `json:"databaseSize"`
	TableSize    string `json:"tableSize"`
	IndexSize    string `json:"indexSize"`
	RowCount     int64  `json:"rowCount"`
}

// NewRoomStore connects using the postgis config section
func NewRoomStore(ctx context.Context, cfg config.PostGISConfig) (*RoomStore, error) {
	return Open(ctx, cfg.DSN(), cfg.MaxConnections)
}

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, dsn string, maxConns int) (*RoomStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 25
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &RoomStore{
		db:  db,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// SetLogger sets the logger used for progress records.
func (p *RoomStore) SetLogger(log *slog.Logger) {
	if log != nil {
		p.log = log
	}
}

// InitSchema creates the rooms table if it does not exist
func (p *RoomStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			location GEOMETRY(POINT, 4326),
			view_count DOUBLE PRECISION NOT NULL DEFAULT 0,
			favorite_count DOUBLE PRECISION NOT NULL DEFAULT 0,
			contract_count DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ,
			status TEXT NOT NULL DEFAULT '',
			amenities TEXT[] NOT NULL DEFAULT '{}',
			furniture TEXT[] NOT NULL DEFAULT '{}',
			rent_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			area DOUBLE PRECISION NOT NULL DEFAULT 0,
			district TEXT NOT NULL DEFAULT '',
			province TEXT NOT NULL DEFAULT ''
		);`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

// Reset drops the rooms table and recreates it empty
func (p *RoomStore) Reset(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DROP TABLE IF EXISTS rooms;`); err != nil {
		return fmt.Errorf("failed to drop rooms table: %w", err)
	}
	return p.InitSchema(ctx)
}

// CreateSpatialIndex creates a GIST index on the location column
func (p *RoomStore) CreateSpatialIndex(ctx context.Context) error {
	start := time.Now()
	query := `CREATE INDEX IF NOT EXISTS idx_rooms_location ON rooms USING GIST(location);`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create spatial index: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, "ANALYZE rooms;"); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}

	p.log.Info("created spatial index", "elapsed", time.Since(start))
	return nil
}

// BulkInsertRooms upserts rooms in batches, one transaction per batch
func (p *RoomStore) BulkInsertRooms(ctx context.Context, rooms []models.Room) error {
	stmt, err := p.db.PrepareContext(ctx, `
		INSERT INTO rooms (id, title, location, view_count, favorite_count, contract_count,
			created_at, status, amenities, furniture, rent_price, area, district, province)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			location = EXCLUDED.location,
			view_count = EXCLUDED.view_count,
			favorite_count = EXCLUDED.favorite_count,
			contract_count = EXCLUDED.contract_count,
			created_at = EXCLUDED.created_at,
			status = EXCLUDED.status,
			amenities = EXCLUDED.amenities,
			furniture = EXCLUDED.furniture,
			rent_price = EXCLUDED.rent_price,
			area = EXCLUDED.area,
			district = EXCLUDED.district,
			province = EXCLUDED.province
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for start := 0; start < len(rooms); start += batchSize {
		end := min(start+batchSize, len(rooms))
		if err := p.insertBatch(ctx, stmt, rooms[start:end]); err != nil {
			return err
		}
		p.log.Debug("inserted batch", "rooms", end, "total", len(rooms))
	}
	return nil
}

func (p *RoomStore) insertBatch(ctx context.Context, stmt *sql.Stmt, rooms []models.Room) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txStmt := tx.StmtContext(ctx, stmt)

	for _, room := range rooms {
		if _, err := txStmt.ExecContext(ctx, insertArgs(room)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert room %s: %w", room.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// insertArgs lists the statement parameters for room in column order.
func insertArgs(room models.Room) []any {
	var lon, lat sql.NullFloat64
	if room.Coordinates != nil {
		lon = sql.NullFloat64{Float64: room.Coordinates.Lon, Valid: true}
		lat = sql.NullFloat64{Float64: room.Coordinates.Lat, Valid: true}
	}
	var created sql.NullTime
	if room.CreatedAt != nil {
		created = sql.NullTime{Time: room.CreatedAt.UTC(), Valid: true}
	}

	return []any{
		room.ID, room.Title, lon, lat,
		room.Stats.ViewCount, room.Stats.FavoriteCount, room.Stats.ContractCount,
		created, room.Status,
		pq.Array(nonNil(room.Amenities)), pq.Array(nonNil(room.Furniture)),
		room.RentPrice, room.Area, room.Region.District, room.Region.Province,
	}
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// LoadRooms returns every stored room ordered by ID
func (p *RoomStore) LoadRooms(ctx context.Context) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY id`
	return p.queryRooms(ctx, query)
}

// QueryBox returns the rooms inside box ordered by ID
func (p *RoomStore) QueryBox(ctx context.Context, box models.BoundingBox) ([]models.Room, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("invalid bounding box: bottom-left %+v is above or right of top-right %+v",
			box.BottomLeft, box.TopRight)
	}

	query := `SELECT ` + roomColumns + `
		FROM rooms
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		ORDER BY id`
	return p.queryRooms(ctx, query,
		box.BottomLeft.Lon, box.BottomLeft.Lat,
		box.TopRight.Lon, box.TopRight.Lat)
}

// QueryRadius returns the rooms within meters of center, nearest first.
// Distances are computed by PostGIS on the spheroid, so they can differ
// slightly from the haversine distances used for ranking.
func (p *RoomStore) QueryRadius(ctx context.Context, center models.Location, meters float64) ([]models.ScoredRoom, error) {
	if meters < 0 {
		return nil, fmt.Errorf("invalid radius %.2f: must be non-negative", meters)
	}

	query := `SELECT ` + roomColumns + `,
			ST_Distance(location::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS dist
		FROM rooms
		WHERE ST_DWithin(location::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY dist, id`

	rows, err := p.db.QueryContext(ctx, query, center.Lon, center.Lat, meters)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredRoom
	for rows.Next() {
		var row roomRow
		var dist float64
		if err := rows.Scan(append(row.dest(), &dist)...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, models.ScoredRoom{Room: row.room(), DistanceMeters: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

func (p *RoomStore) queryRooms(ctx context.Context, query string, args ...any) ([]models.Room, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var results []models.Room
	for rows.Next() {
		var row roomRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, row.room())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

// Count returns the number of stored rooms
func (p *RoomStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return count, nil
}

// Stats returns database size and room table statistics
func (p *RoomStore) Stats(ctx context.Context) (StoreStats, error) {
	var stats StoreStats

	err := p.db.QueryRowContext(ctx,
		`SELECT pg_size_pretty(pg_database_size(current_database()))`).Scan(&stats.DatabaseSize)
	if err != nil {
		return stats, fmt.Errorf("failed to get database size: %w", err)
	}

	err = p.db.QueryRowContext(ctx, `
		SELECT
			pg_size_pretty(pg_total_relation_size('rooms')) AS total_size,
			pg_size_pretty(pg_indexes_size('rooms')) AS index_size
	`).Scan(&stats.TableSize, &stats.IndexSize)
	if err != nil {
		// Table might not exist yet
		stats.TableSize = "0 bytes"
		stats.IndexSize = "0 bytes"
		return stats, nil
	}

	stats.RowCount, err = p.Count(ctx)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Close closes the database connection
func (p *RoomStore) Close() error {
	return p.db.Close()
}

// roomRow holds the nullable column values of one rooms row.
type roomRow struct {
	id, title, status, district, province string
	lat, lon                               sql.NullFloat64
	views, favorites, contracts            float64
	createdAt                              sql.NullTime
	amenities, furniture                   pq.StringArray
	rentPrice, area                        float64
}

// dest returns scan targets matching roomColumns.
func (r *roomRow) dest() []any {
	return []any{
		&r.id, &r.title, &r.lat, &r.lon,
		&r.views, &r.favorites, &r.contracts, &r.createdAt, &r.status,
		&r.amenities, &r.furniture, &r.rentPrice, &r.area, &r.district, &r.province,
	}
}

func (r *roomRow) room() models.Room {
	room := models.Room{
		ID:    r.id,
		Title: r.title,
		Stats: models.Stats{
			ViewCount:     r.views,
			FavoriteCount: r.favorites,
			ContractCount: r.contracts,
		},
		Status:    r.status,
		Amenities: append([]string{}, r.amenities...),
		Furniture: append([]string{}, r.furniture...),
		RentPrice: r.rentPrice,
		Area:      r.area,
		Region:    models.Region{District: r.district, Province: r.province},
	}
	if r.lat.Valid && r.lon.Valid {
		room.Coordinates = &models.Location{Lat: r.lat.Float64, Lon: r.lon.Float64}
	}
	if r.createdAt.Valid {
		t := r.createdAt.Time.UTC()
		room.CreatedAt = &t
	}
	return room
}
