//go:build !tinygo

// Package store keeps readings in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"sensornet/host/bridge"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var (
	ErrNotFound = errors.New("store: no readings")
	ErrDriver   = errors.New("store: unsupported driver")
)

const columns = `received_at, source, mcu_id, packet_type, seq, sensor_id, rssi, encrypted,
	temperature, humidity, battery, serial,
	accel_x, accel_y, accel_z, mag_x, mag_y, mag_z, data`

const schemaBody = `
	received_at BIGINT NOT NULL,
	source      TEXT NOT NULL,
	mcu_id      TEXT NOT NULL,
	packet_type TEXT NOT NULL,
	seq         BIGINT NOT NULL,
	sensor_id   TEXT NOT NULL,
	rssi        INTEGER NOT NULL,
	encrypted   BOOLEAN NOT NULL,
	temperature DOUBLE PRECISION,
	humidity    DOUBLE PRECISION,
	battery     DOUBLE PRECISION,
	serial      TEXT NOT NULL,
	accel_x     INTEGER,
	accel_y     INTEGER,
	accel_z     INTEGER,
	mag_x       INTEGER,
	mag_y       INTEGER,
	mag_z       INTEGER,
	data        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_mcu ON readings (mcu_id, source, seq);
`

var schemas = map[string]string{
	DriverSQLite:   `CREATE TABLE IF NOT EXISTS readings (id INTEGER PRIMARY KEY AUTOINCREMENT,` + schemaBody,
	DriverPostgres: `CREATE TABLE IF NOT EXISTS readings (id BIGSERIAL PRIMARY KEY,` + schemaBody,
}

// Source values
const (
	SourceRadio = "radio"
	SourceLocal = "local"
)

// Row is one stored reading.
type Row struct {
	ID          int64
	At          time.Time
	Source      string
	MCUID       string
	PacketType  string
	Seq         uint32
	SensorID    string
	RSSI        int
	Encrypted   bool
	Temperature sql.NullFloat64
	Humidity    sql.NullFloat64
	Battery     sql.NullFloat64
	Serial      string
	Accel       []int16 // nil unless motion
	Mag         []int16
	Data        string
}

// Store is a readings table. It implements bridge.Sink.
type Store struct {
	db     *sql.DB
	driver string
}

var _ bridge.Sink = (*Store)(nil)

// Open connects with one of the supported drivers and creates the schema.
func Open(driver, dsn string) (*Store, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriver, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: schema: %w", err)
		}
	}
	return &Store{db: db, driver: driver}, nil
}

// OpenSQLite opens (or creates) a database file.
func OpenSQLite(path string) (*Store, error) {
	return Open(DriverSQLite, path)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// Write stores one reading.
func (s *Store) Write(ctx context.Context, r bridge.Reading) error {
	row := rowOf(r)
	accel := axes(row.Accel)
	mag := axes(row.Mag)

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO readings (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		row.At.UnixMilli(), row.Source, row.MCUID, row.PacketType, int64(row.Seq), row.SensorID,
		row.RSSI, row.Encrypted, row.Temperature, row.Humidity, row.Battery, row.Serial,
		accel[0], accel[1], accel[2], mag[0], mag[1], mag[2], row.Data,
	)
	if err != nil {
		return fmt.Errorf("store: insert %s/%d: %w", row.MCUID, row.Seq, err)
	}
	return nil
}

func axes(v []int16) [3]sql.NullInt64 {
	var out [3]sql.NullInt64
	if len(v) != 3 {
		return out
	}
	for i, a := range v {
		out[i] = sql.NullInt64{Int64: int64(a), Valid: true}
	}
	return out
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func validFloat(v float32) sql.NullFloat64 {
	return sql.NullFloat64{Float64: float64(v), Valid: true}
}

// rowOf flattens a reading. The message is used when present; lines that
// only carry data are filled from the unpacked record.
func rowOf(r bridge.Reading) Row {
	row := Row{
		At:        r.At,
		Source:    SourceRadio,
		MCUID:     r.MCUID(),
		Seq:       r.Index(),
		RSSI:      r.Line.RSSI,
		Encrypted: r.Line.Encrypted,
		Data:      r.Line.Data,
	}
	if r.Local() {
		row.Source = SourceLocal
	}

	if m := r.Line.Message; m != nil {
		row.PacketType = m.PacketType
		row.SensorID = m.SensorID
		row.Temperature = nullFloat(m.Temperature)
		row.Humidity = nullFloat(m.Humidity)
		row.Battery = nullFloat(m.Battery)
		row.Serial = m.Serial
		if len(m.Accel) == 3 && len(m.Mag) == 3 {
			row.Accel, row.Mag = m.Accel, m.Mag
		}
		return row
	}

	rec := r.Record
	if rec == nil {
		row.PacketType = "unknown"
		return row
	}
	row.PacketType = rec.TypeName()
	row.SensorID = fmt.Sprintf("%04x", rec.SensorID)
	switch {
	case rec.Climate != nil:
		row.Temperature = validFloat(rec.Climate.Temperature)
		row.Humidity = validFloat(rec.Climate.Humidity)
	case rec.ClimateExt != nil:
		row.Temperature = validFloat(rec.ClimateExt.Temperature)
		row.Humidity = validFloat(rec.ClimateExt.Humidity)
		row.Battery = validFloat(rec.ClimateExt.Battery)
		row.Serial = fmt.Sprintf("%08x", rec.ClimateExt.Serial)
	case rec.Motion != nil:
		row.Accel = rec.Motion.Accel[:]
		row.Mag = rec.Motion.Mag[:]
	}
	return row
}

const selectRows = `SELECT id, ` + columns + ` FROM readings`

func scanRow(sc interface{ Scan(...any) error }) (Row, error) {
	var (
		row   Row
		ms    int64
		seq   int64
		accel [3]sql.NullInt64
		mag   [3]sql.NullInt64
	)
	err := sc.Scan(&row.ID, &ms, &row.Source, &row.MCUID, &row.PacketType, &seq, &row.SensorID,
		&row.RSSI, &row.Encrypted, &row.Temperature, &row.Humidity, &row.Battery, &row.Serial,
		&accel[0], &accel[1], &accel[2], &mag[0], &mag[1], &mag[2], &row.Data)
	if err != nil {
		return Row{}, err
	}
	row.At = time.UnixMilli(ms)
	row.Seq = uint32(seq)
	row.Accel = fromAxes(accel)
	row.Mag = fromAxes(mag)
	return row, nil
}

func fromAxes(v [3]sql.NullInt64) []int16 {
	if !v[0].Valid {
		return nil
	}
	return []int16{int16(v[0].Int64), int16(v[1].Int64), int16(v[2].Int64)}
}

// Latest returns the newest reading of a node.
func (s *Store) Latest(ctx context.Context, mcuID string) (Row, error) {
	row, err := scanRow(s.db.QueryRowContext(ctx,
		s.rebind(selectRows+` WHERE mcu_id = ? ORDER BY id DESC LIMIT 1`), mcuID))
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	return row, err
}

// History returns up to limit readings of a node, newest first.
func (s *Store) History(ctx context.Context, mcuID string, limit int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(selectRows+` WHERE mcu_id = ? ORDER BY id DESC LIMIT ?`), mcuID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Gap is a run of sequence numbers never received.
type Gap struct {
	From uint32 // first missing
	To   uint32 // last missing
}

// Gaps lists the missing sequence numbers between the radio readings of a
// node, in arrival order. A sequence number at or below its predecessor
// is a node restart and opens no gap.
func (s *Store) Gaps(ctx context.Context, mcuID string) ([]Gap, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT seq FROM readings WHERE mcu_id = ? AND source = ? ORDER BY id ASC`),
		mcuID, SourceRadio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		gaps  []Gap
		prev  int64
		first = true
	)
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		if !first && seq > prev+1 {
			gaps = append(gaps, Gap{From: uint32(prev + 1), To: uint32(seq - 1)})
		}
		prev, first = seq, false
	}
	return gaps, rows.Err()
}
