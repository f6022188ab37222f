package notify

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/rankwatch/internal/career"
)

// Kind tags a notification record.
type Kind string

const (
	// KindAIPromotion announces a squadron-mate's promotion.
	KindAIPromotion Kind = "ai_promotion"
	// KindPlayerPromotion announces the player's own promotion ceremony.
	KindPlayerPromotion Kind = "player_promotion"
)

// AIPromotion is the payload of a KindAIPromotion notification.
type AIPromotion struct {
	Name           string `json:"name"`
	BeforeInsignia string `json:"before_insignia"`
	AfterInsignia  string `json:"after_insignia"`
	RankTitle      string `json:"rank_title"`
	Language       string `json:"language"`
}

// PlayerPromotion is the payload of a KindPlayerPromotion notification.
type PlayerPromotion struct {
	Ceremony    string         `json:"ceremony"`
	Insignia    string         `json:"insignia"`
	RankTitle   string         `json:"rank_title"`
	Language    string         `json:"language"`
	Country     career.Country `json:"country"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	OldRank     int            `json:"old_rank"`
	NewRank     int            `json:"new_rank"`
	MissionDate string         `json:"mission_date"`
}

// Notification is one queued record. Exactly one payload is set, matching
// Kind.
type Notification struct {
	ID      string           `json:"id"`
	SweepID string           `json:"sweep_id"`
	Kind    Kind             `json:"kind"`
	AI      *AIPromotion     `json:"ai,omitempty"`
	Player  *PlayerPromotion `json:"player,omitempty"`
}

// NewAI builds an AI promotion notification. Names are NFC-normalised.
func NewAI(id, sweepID string, p AIPromotion) Notification {
	p.Name = norm.NFC.String(p.Name)
	return Notification{ID: id, SweepID: sweepID, Kind: KindAIPromotion, AI: &p}
}

// NewPlayer builds a player promotion notification. Names are
// NFC-normalised.
func NewPlayer(id, sweepID string, p PlayerPromotion) Notification {
	p.FirstName = norm.NFC.String(p.FirstName)
	p.LastName = norm.NFC.String(p.LastName)
	return Notification{ID: id, SweepID: sweepID, Kind: KindPlayerPromotion, Player: &p}
}

// IDGenerator produces notification and sweep IDs.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 IDs, so notifications sort
// by creation time in logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Batch collects the notifications of one sweep and pushes them in display
// order: every AI notification in the order added, then the player's.
type Batch struct {
	mu     sync.Mutex
	ai     []Notification
	player *Notification
}

// AddAI appends an AI notification.
func (b *Batch) AddAI(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ai = append(b.ai, n)
}

// SetPlayer sets the player notification. A sweep has at most one player
// pilot, so a second call replaces the first.
func (b *Batch) SetPlayer(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.player = &n
}

// Len returns the number of notifications in the batch.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.ai)
	if b.player != nil {
		n++
	}
	return n
}

// Notifications returns the batch in display order.
func (b *Batch) Notifications() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, 0, len(b.ai)+1)
	out = append(out, b.ai...)
	if b.player != nil {
		out = append(out, *b.player)
	}
	return out
}

// Flush pushes the batch to sink in display order and returns how many were
// accepted. A closed sink accepts none.
func (b *Batch) Flush(sink *Sink) int {
	pushed := 0
	for _, n := range b.Notifications() {
		if !sink.Push(n) {
			break
		}
		pushed++
	}
	return pushed
}
