// ════════════════════════════════════════════════════════════════════════════════════════════════
// SQLITE PERSISTENCE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Coroutine Prefetch Inference Harness
// Component: Stored weights and recorded sample batches
//
// Description:
//   Lets a run use a fixed weight set and a fixed input batch instead of the
//   simulators. The database is touched only during setup; nothing here runs
//   inside a timed region.
//
// Schema:
//   meta(key PRIMARY KEY, value)             width of stored rows
//   entities(row PRIMARY KEY, id BLOB)       entity id of each weight row
//   weights(row, pos, value)                 one Q3.13 raw value per item
//   samples(ord, id BLOB, seq, pos, value)   recorded batch, ord = arrival order
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"coroinfer/fixed"
	"coroinfer/ingest"
	"coroinfer/sensoridx"
)

var (
	// ErrEmpty is returned when the requested table holds no rows.
	ErrEmpty = errors.New("sqlstore: no rows stored")

	// ErrWidth is returned when the stored row width differs from the run's.
	ErrWidth = errors.New("sqlstore: stored width mismatch")

	// ErrEntitySet is returned when stored ids differ from the run's ids.
	ErrEntitySet = errors.New("sqlstore: stored entity set mismatch")
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entities (
	row INTEGER PRIMARY KEY,
	id  BLOB NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS weights (
	row   INTEGER NOT NULL,
	pos   INTEGER NOT NULL,
	value INTEGER NOT NULL,
	PRIMARY KEY (row, pos)
);
CREATE TABLE IF NOT EXISTS samples (
	ord   INTEGER NOT NULL,
	id    BLOB NOT NULL,
	seq   INTEGER NOT NULL,
	pos   INTEGER NOT NULL,
	value INTEGER NOT NULL,
	PRIMARY KEY (ord, pos)
);`

// DB wraps one SQLite file.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// META
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func setMeta(tx *sql.Tx, key string, value int) error {
	_, err := tx.Exec(`INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, strconv.Itoa(value))
	return err
}

func (d *DB) meta(key string) (int, error) {
	var s string
	if err := d.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrEmpty
		}
		return 0, err
	}
	return strconv.Atoi(s)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// WEIGHTS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// SaveWeights replaces the stored entity set and weight rows. weights holds
// len(ids) rows of width items.
func (d *DB) SaveWeights(ids []sensoridx.EntityID, weights []fixed.Q, width int) error {
	if len(weights) != len(ids)*width {
		return fmt.Errorf("%w: %d items for %d rows of %d", ErrWidth, len(weights), len(ids), width)
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM weights`, `DELETE FROM entities`} {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	if err := setMeta(tx, "weight_width", width); err != nil {
		return err
	}

	ent, err := tx.Prepare(`INSERT INTO entities(row, id) VALUES(?, ?)`)
	if err != nil {
		return err
	}
	defer ent.Close()
	wst, err := tx.Prepare(`INSERT INTO weights(row, pos, value) VALUES(?, ?, ?)`)
	if err != nil {
		return err
	}
	defer wst.Close()

	for row := range ids {
		if _, err := ent.Exec(row, ids[row][:]); err != nil {
			return err
		}
		for pos := 0; pos < width; pos++ {
			if _, err := wst.Exec(row, pos, int64(weights[row*width+pos])); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// LoadIDs returns the stored entity ids in row order.
func (d *DB) LoadIDs() ([]sensoridx.EntityID, error) {
	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrEmpty
	}
	ids := make([]sensoridx.EntityID, 0, count)
	rows, err := d.db.Query(`SELECT id FROM entities ORDER BY row`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var id sensoridx.EntityID
		if len(raw) != len(id) {
			return nil, fmt.Errorf("sqlstore: stored id of %d bytes", len(raw))
		}
		copy(id[:], raw)
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadWeights returns weight rows laid out in the order of ids. The stored
// entity set must equal ids as a set and the stored width must equal width.
func (d *DB) LoadWeights(ids []sensoridx.EntityID, width int) ([]fixed.Q, error) {
	stored, err := d.meta("weight_width")
	if err != nil {
		return nil, err
	}
	if stored != width {
		return nil, fmt.Errorf("%w: stored %d, run %d", ErrWidth, stored, width)
	}
	storedIDs, err := d.LoadIDs()
	if err != nil {
		return nil, err
	}
	if len(storedIDs) != len(ids) {
		return nil, fmt.Errorf("%w: stored %d entities, run %d", ErrEntitySet, len(storedIDs), len(ids))
	}
	target := make(map[sensoridx.EntityID]int, len(ids))
	for i, id := range ids {
		target[id] = i
	}
	// stored row → run row
	remap := make([]int, len(storedIDs))
	for row, id := range storedIDs {
		i, ok := target[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s not in run", ErrEntitySet, id)
		}
		remap[row] = i
	}

	out := make([]fixed.Q, len(ids)*width)
	rows, err := d.db.Query(`SELECT row, pos, value FROM weights ORDER BY row, pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var row, pos int
		var v int64
		if err := rows.Scan(&row, &pos, &v); err != nil {
			return nil, err
		}
		if row < 0 || row >= len(remap) || pos < 0 || pos >= width {
			return nil, fmt.Errorf("sqlstore: weight (%d,%d) outside shape", row, pos)
		}
		out[remap[row]*width+pos] = fixed.Q(v)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n != len(out) {
		return nil, fmt.Errorf("%w: %d of %d weights stored", ErrWidth, n, len(out))
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SAMPLES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// SaveSamples replaces the stored batch with recs in arrival order. Command
// frames are not stored.
func (d *DB) SaveSamples(recs []ingest.Record) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM samples`); err != nil {
		return err
	}
	st, err := tx.Prepare(`INSERT INTO samples(ord, id, seq, pos, value) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer st.Close()

	width := 0
	for ord := range recs {
		r := &recs[ord]
		if r.IsCommand() {
			continue
		}
		width = max(width, len(r.Payload))
		for pos, v := range r.Payload {
			if _, err := st.Exec(ord, r.ID[:], r.Seq, pos, int64(v)); err != nil {
				return err
			}
		}
	}
	if err := setMeta(tx, "sample_width", width); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadSamples returns the stored batch in arrival order. Every record's
// payload must hold at least width items.
func (d *DB) LoadSamples(width int) ([]ingest.Record, error) {
	stored, err := d.meta("sample_width")
	if err != nil {
		return nil, err
	}
	if stored < width {
		return nil, fmt.Errorf("%w: stored %d, run needs %d", ErrWidth, stored, width)
	}

	rows, err := d.db.Query(`SELECT ord, id, seq, pos, value FROM samples ORDER BY ord, pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ingest.Record
	last := -1
	for rows.Next() {
		var ord, pos int
		var seq uint32
		var raw []byte
		var v int64
		if err := rows.Scan(&ord, &raw, &seq, &pos, &v); err != nil {
			return nil, err
		}
		if ord != last {
			var rec ingest.Record
			if len(raw) != len(rec.ID) {
				return nil, fmt.Errorf("sqlstore: stored id of %d bytes", len(raw))
			}
			copy(rec.ID[:], raw)
			rec.Seq = seq
			rec.Payload = make([]fixed.Q, 0, stored)
			out = append(out, rec)
			last = ord
		}
		r := &out[len(out)-1]
		if pos != len(r.Payload) {
			return nil, fmt.Errorf("sqlstore: sample %d has a gap at item %d", ord, pos)
		}
		r.Payload = append(r.Payload, fixed.Q(v))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	for i := range out {
		if len(out[i].Payload) < width {
			return nil, fmt.Errorf("%w: sample %d has %d items", ErrWidth, i, len(out[i].Payload))
		}
	}
	return out, nil
}
