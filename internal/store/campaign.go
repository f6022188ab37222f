package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/rankwatch/internal/career"
)

// DefaultEventYear is used when a pilot has no dated events.
const DefaultEventYear = 1941

// SquadronCountries maps every squadron to its country.
func (s *Store) SquadronCountries(ctx context.Context) (map[int64]career.Country, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, configID FROM squadron`)
	if err != nil {
		return nil, fmt.Errorf("query squadrons: %w", err)
	}
	defer rows.Close()

	countries := make(map[int64]career.Country)
	for rows.Next() {
		var (
			sq       career.Squadron
			configID sql.NullInt64
		)
		if err := rows.Scan(&sq.ID, &configID); err != nil {
			return nil, fmt.Errorf("scan squadron: %w", err)
		}
		if !configID.Valid {
			continue
		}
		sq.ConfigID = configID.Int64
		countries[sq.ID] = sq.Country()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate squadrons: %w", err)
	}
	return countries, nil
}

// ListPilots returns every pilot ordered by ID.
// Non-numeric rank, pcp and sortie columns read as zero and are listed in
// Pilot.Malformed.
func (s *Store) ListPilots(ctx context.Context) ([]career.Pilot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, lastName, rankId, pcp, sorties, goodSorties, description, personageId, squadronId
		FROM pilot
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pilots: %w", err)
	}
	defer rows.Close()

	pilots := []career.Pilot{}
	for rows.Next() {
		var (
			p                                    career.Pilot
			first, last, desc, personage         sql.NullString
			rawRank, rawPCP, rawSorties, rawGood any
			squadron                             sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &first, &last, &rawRank, &rawPCP, &rawSorties, &rawGood,
			&desc, &personage, &squadron); err != nil {
			return nil, fmt.Errorf("scan pilot: %w", err)
		}
		p.FirstName = first.String
		p.LastName = last.String
		p.Description = desc.String
		p.PersonageID = personage.String
		p.SquadronID = squadron.Int64

		var ok bool
		if p.Rank, ok = looseInt(rawRank); !ok {
			p.Malformed = append(p.Malformed, "rankId")
		}
		if p.PCP, ok = looseFloat(rawPCP); !ok {
			p.Malformed = append(p.Malformed, "pcp")
		}
		if p.Sorties, ok = looseInt(rawSorties); !ok {
			p.Malformed = append(p.Malformed, "sorties")
		}
		if p.GoodSorties, ok = looseInt(rawGood); !ok {
			p.Malformed = append(p.Malformed, "goodSorties")
		}
		pilots = append(pilots, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pilots: %w", err)
	}
	return pilots, nil
}

// MissionsAfter returns missions with an ID greater than afterID in
// ascending ID order.
func (s *Store) MissionsAfter(ctx context.Context, afterID int64) ([]career.Mission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, squadronId
		FROM mission
		WHERE id > ?
		ORDER BY id ASC
	`, afterID)
	if err != nil {
		return nil, fmt.Errorf("query missions: %w", err)
	}
	defer rows.Close()

	missions := []career.Mission{}
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missions: %w", err)
	}
	return missions, nil
}

// LatestMission returns the mission with the highest ID.
// The boolean is false when the save has no missions.
func (s *Store) LatestMission(ctx context.Context) (career.Mission, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, date, squadronId FROM mission ORDER BY id DESC LIMIT 1
	`)
	return scanMissionRow(row)
}

// LatestSquadronMission returns the squadron's mission with the highest ID.
func (s *Store) LatestSquadronMission(ctx context.Context, squadronID int64) (career.Mission, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, date, squadronId FROM mission WHERE squadronId = ? ORDER BY id DESC LIMIT 1
	`, squadronID)
	return scanMissionRow(row)
}

// PlayerCandidates returns the IDs of the squadron's pilots bound to a
// personage, in ascending order.
func (s *Store) PlayerCandidates(ctx context.Context, squadronID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM pilot
		WHERE personageId <> '' AND squadronId = ?
		ORDER BY id ASC
	`, squadronID)
	if err != nil {
		return nil, fmt.Errorf("query player candidates: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan player candidate: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player candidates: %w", err)
	}
	return ids, nil
}

// HasEvent reports whether the pilot has an event in the mission.
func (s *Store) HasEvent(ctx context.Context, pilotID, missionID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM event WHERE pilotId = ? AND missionId = ? LIMIT 1
	`, pilotID, missionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query event: %w", err)
	}
	return true, nil
}

// LatestEvent returns the pilot's most recent event by date.
// The boolean is false when the pilot has none.
func (s *Store) LatestEvent(ctx context.Context, pilotID int64) (career.Event, bool, error) {
	var (
		missionID sql.NullInt64
		date      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT missionId, date FROM event WHERE pilotId = ? ORDER BY date DESC LIMIT 1
	`, pilotID).Scan(&missionID, &date)
	if err == sql.ErrNoRows {
		return career.Event{}, false, nil
	}
	if err != nil {
		return career.Event{}, false, fmt.Errorf("query latest event: %w", err)
	}
	return career.Event{PilotID: pilotID, MissionID: missionID.Int64, Date: date.String}, true, nil
}

// LatestEventYear returns the year of the pilot's most recent event, or
// DefaultEventYear when it has none or the date is unreadable.
func (s *Store) LatestEventYear(ctx context.Context, pilotID int64) (int, error) {
	e, ok, err := s.LatestEvent(ctx, pilotID)
	if err != nil {
		return 0, err
	}
	if !ok || len(e.Date) < 4 {
		return DefaultEventYear, nil
	}
	year, err := strconv.Atoi(e.Date[:4])
	if err != nil {
		return DefaultEventYear, nil
	}
	return year, nil
}

// CampaignCountry returns the birth country of the player pilot who started
// in the squadron, or fallback when no such pilot or tag exists.
func (s *Store) CampaignCountry(ctx context.Context, squadronID int64, fallback career.Country) (career.Country, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT description FROM pilot
		WHERE personageId <> '' AND description LIKE ?
		ORDER BY id ASC
	`, "%"+career.StartSquadronTag(squadronID)+"%")
	if err != nil {
		return fallback, fmt.Errorf("query campaign country: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var desc sql.NullString
		if err := rows.Scan(&desc); err != nil {
			return fallback, fmt.Errorf("scan campaign country: %w", err)
		}
		// LIKE also matches longer IDs sharing the prefix.
		if sq, ok := career.StartSquadron(desc.String); !ok || sq != squadronID {
			continue
		}
		if c, ok := career.BirthCountry(desc.String); ok {
			return c, nil
		}
		return fallback, nil
	}
	if err := rows.Err(); err != nil {
		return fallback, fmt.Errorf("iterate campaign country: %w", err)
	}
	return fallback, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(r rowScanner) (career.Mission, error) {
	var (
		m        career.Mission
		date     sql.NullString
		squadron sql.NullInt64
	)
	if err := r.Scan(&m.ID, &date, &squadron); err != nil {
		return career.Mission{}, fmt.Errorf("scan mission: %w", err)
	}
	m.Date = date.String
	m.SquadronID = squadron.Int64
	m.HasSquadron = squadron.Valid
	return m, nil
}

func scanMissionRow(row *sql.Row) (career.Mission, bool, error) {
	m, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return career.Mission{}, false, nil
	}
	if err != nil {
		return career.Mission{}, false, err
	}
	return m, true, nil
}
