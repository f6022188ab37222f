package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// gameSchema mirrors the tables of a campaign save that rankwatch reads.
// Numeric pilot columns are untyped, as in the game, so tests can store
// malformed values.
const gameSchema = `
CREATE TABLE squadron (
	id       INTEGER PRIMARY KEY,
	configID INTEGER
);
CREATE TABLE pilot (
	id          INTEGER PRIMARY KEY,
	name        TEXT,
	lastName    TEXT,
	rankId,
	pcp,
	sorties,
	goodSorties,
	description TEXT DEFAULT '',
	personageId TEXT DEFAULT '',
	squadronId  INTEGER
);
CREATE TABLE mission (
	id         INTEGER PRIMARY KEY,
	date       TEXT,
	squadronId INTEGER
);
CREATE TABLE event (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	pilotId   INTEGER,
	missionId INTEGER,
	date      TEXT
);
`

// PilotRow describes a pilot to insert into a fixture campaign.
type PilotRow struct {
	ID          int64
	FirstName   string
	LastName    string
	Rank        any
	PCP         any
	Sorties     any
	GoodSorties any
	Description string
	PersonageID string
	SquadronID  int64
}

// Campaign is a throwaway campaign save on disk.
type Campaign struct {
	t    testing.TB
	path string
	db   *sql.DB
}

// NewCampaign creates an empty campaign save in t.TempDir().
func NewCampaign(t testing.TB) *Campaign {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cp.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open campaign: %v", err)
	}
	if _, err := db.Exec(gameSchema); err != nil {
		db.Close()
		t.Fatalf("create campaign schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Campaign{t: t, path: path, db: db}
}

// Path returns the database file path.
func (c *Campaign) Path() string {
	return c.path
}

// DB returns the fixture's own connection.
func (c *Campaign) DB() *sql.DB {
	return c.db
}

// Exec runs a statement against the campaign, failing the test on error.
func (c *Campaign) Exec(query string, args ...any) {
	c.t.Helper()
	if _, err := c.db.Exec(query, args...); err != nil {
		c.t.Fatalf("exec %q: %v", query, err)
	}
}

// AddSquadron inserts a squadron.
func (c *Campaign) AddSquadron(id, configID int64) {
	c.t.Helper()
	c.Exec(`INSERT INTO squadron (id, configID) VALUES (?, ?)`, id, configID)
}

// AddPilot inserts a pilot. Nil numeric fields are stored as 0.
func (c *Campaign) AddPilot(p PilotRow) {
	c.t.Helper()
	c.Exec(`
		INSERT INTO pilot (id, name, lastName, rankId, pcp, sorties, goodSorties, description, personageId, squadronId)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.FirstName, p.LastName, orZero(p.Rank), orZero(p.PCP), orZero(p.Sorties), orZero(p.GoodSorties),
		p.Description, p.PersonageID, p.SquadronID)
}

// AddMission appends a mission. A zero squadron is stored as NULL.
func (c *Campaign) AddMission(id int64, date string, squadronID int64) {
	c.t.Helper()
	var sq any
	if squadronID != 0 {
		sq = squadronID
	}
	c.Exec(`INSERT INTO mission (id, date, squadronId) VALUES (?, ?, ?)`, id, date, sq)
}

// AddEvent records a pilot's participation in a mission.
func (c *Campaign) AddEvent(pilotID, missionID int64, date string) {
	c.t.Helper()
	c.Exec(`INSERT INTO event (pilotId, missionId, date) VALUES (?, ?, ?)`, pilotID, missionID, date)
}

// SetRank overwrites a pilot's rank, as the game would.
func (c *Campaign) SetRank(pilotID int64, rank int) {
	c.t.Helper()
	c.Exec(`UPDATE pilot SET rankId = ? WHERE id = ?`, rank, pilotID)
}

// DeletePilot removes a pilot, as the game does when a career is deleted.
func (c *Campaign) DeletePilot(pilotID int64) {
	c.t.Helper()
	c.Exec(`DELETE FROM pilot WHERE id = ?`, pilotID)
}

// Rank reads a pilot's current rank.
func (c *Campaign) Rank(pilotID int64) int {
	c.t.Helper()
	var rank int
	if err := c.db.QueryRow(`SELECT rankId FROM pilot WHERE id = ?`, pilotID).Scan(&rank); err != nil {
		c.t.Fatalf("read rank of pilot %d: %v", pilotID, err)
	}
	return rank
}

// AttemptCount returns the number of rows in promotion_attempts, or -1 when
// the table does not exist yet.
func (c *Campaign) AttemptCount() int {
	c.t.Helper()
	var name string
	err := c.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='promotion_attempts'`).Scan(&name)
	if err == sql.ErrNoRows {
		return -1
	}
	if err != nil {
		c.t.Fatalf("check attempts table: %v", err)
	}
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM promotion_attempts`).Scan(&n); err != nil {
		c.t.Fatalf("count attempts: %v", err)
	}
	return n
}

func orZero(v any) any {
	if v == nil {
		return 0
	}
	return v
}
