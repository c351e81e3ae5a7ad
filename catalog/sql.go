package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/nci/swathgrid/granule"
)

const createTable = `create table if not exists swath_rasters (
	campaign text not null,
	instrument text not null,
	date text not null,
	level text not null,
	channel text not null default '',
	path text not null,
	footprint text,
	min_lon double precision,
	min_lat double precision,
	max_lon double precision,
	max_lat double precision,
	center_lon double precision,
	center_lat double precision,
	updated text not null,
	primary key (campaign, instrument, date, level, channel)
)`

const upsert = `insert into swath_rasters
	(campaign, instrument, date, level, channel, path, footprint,
	 min_lon, min_lat, max_lon, max_lat, center_lon, center_lat, updated)
	values (%s)
	on conflict (campaign, instrument, date, level, channel) do update set
	path = excluded.path, footprint = excluded.footprint,
	min_lon = excluded.min_lon, min_lat = excluded.min_lat,
	max_lon = excluded.max_lon, max_lat = excluded.max_lat,
	center_lon = excluded.center_lon, center_lat = excluded.center_lat,
	updated = excluded.updated`

// SQL is a catalog stored in a swath_rasters table.
type SQL struct {
	db          *sql.DB
	driver      string
	placeholder func(n int) string
	insertSQL   string
}

// NewPostgres opens a Postgres catalog, for example
// "user=api host=/var/run/postgresql dbname=swath sslmode=disable".
func NewPostgres(dsn string) (*SQL, error) {
	return openSQL("postgres", dsn, func(n int) string { return fmt.Sprintf("$%d", n) })
}

// NewSQLite opens or creates a SQLite catalog file.
func NewSQLite(path string) (*SQL, error) {
	c, err := openSQL("sqlite3", path, func(int) string { return "?" })
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers
	c.db.SetMaxOpenConns(1)
	return c, nil
}

func openSQL(driver, dsn string, placeholder func(int) string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s catalog", driver)
	}
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create %s catalog table", driver)
	}

	marks := make([]string, 14)
	for i := range marks {
		marks[i] = placeholder(i + 1)
	}
	return &SQL{
		db:          db,
		driver:      driver,
		placeholder: placeholder,
		insertSQL:   fmt.Sprintf(upsert, strings.Join(marks, ", ")),
	}, nil
}

// SetPool sets the idle and open connection limits. SQLite catalogs keep
// their single writer connection.
func (c *SQL) SetPool(idle, open int) {
	if c.driver == "sqlite3" {
		return
	}
	c.db.SetMaxIdleConns(idle)
	c.db.SetMaxOpenConns(open)
}

func (c *SQL) Exists(ctx context.Context, key granule.Key) (bool, error) {
	q := fmt.Sprintf(`select count(*) from swath_rasters
		where campaign = %s and instrument = %s and date = %s and level = %s and channel = %s`,
		c.placeholder(1), c.placeholder(2), c.placeholder(3), c.placeholder(4), c.placeholder(5))
	var n int
	err := c.db.QueryRowContext(ctx, q, key.Campaign, key.Instrument, key.Date, key.Level, key.Channel).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "look up %s", key)
	}
	return n > 0, nil
}

func (c *SQL) Insert(ctx context.Context, e *Entry) error {
	k := e.Key
	_, err := c.db.ExecContext(ctx, c.insertSQL,
		k.Campaign, k.Instrument, k.Date, k.Level, k.Channel, e.Path, e.Footprint,
		e.Bounds[0], e.Bounds[1], e.Bounds[2], e.Bounds[3], e.Center[0], e.Center[1],
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errors.Wrapf(err, "insert %s", k)
	}
	return nil
}

func (c *SQL) Dates(ctx context.Context, campaign, instrument string) ([]time.Time, error) {
	q := fmt.Sprintf(`select distinct date from swath_rasters
		where campaign = %s and instrument = %s order by date`, c.placeholder(1), c.placeholder(2))
	rows, err := c.db.QueryContext(ctx, q, campaign, instrument)
	if err != nil {
		return nil, errors.Wrap(err, "list dates")
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		t, err := time.Parse(granule.DateLayout, s)
		if err != nil {
			return nil, errors.Wrapf(err, "catalogued date %q", s)
		}
		dates = append(dates, t)
	}
	return dates, rows.Err()
}

func (c *SQL) Close() error {
	return c.db.Close()
}
