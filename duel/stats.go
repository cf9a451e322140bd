package duel

import (
	"sort"
	"sync"
)

type Record struct {
	Wins   int
	Draws  int
	Losses int
}

type StatsEntry struct {
	UserID int64
	Record
}

// Stats is the process-wide duel scoreboard
type Stats struct {
	mu      sync.Mutex
	records map[int64]*Record
}

func NewStats() *Stats {
	return &Stats{records: make(map[int64]*Record)}
}

func (s *Stats) record(userID int64) *Record {
	r, ok := s.records[userID]
	if !ok {
		r = &Record{}
		s.records[userID] = r
	}
	return r
}

func (s *Stats) RecordWin(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(userID).Wins++
}

func (s *Stats) RecordLoss(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(userID).Losses++
}

// RecordResult counts a win and a loss atomically
func (s *Stats) RecordResult(winnerID, loserID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(winnerID).Wins++
	s.record(loserID).Losses++
}

func (s *Stats) Get(userID int64) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[userID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Snapshot returns all records, most wins first
func (s *Stats) Snapshot() []StatsEntry {
	s.mu.Lock()
	entries := make([]StatsEntry, 0, len(s.records))
	for id, r := range s.records {
		entries = append(entries, StatsEntry{UserID: id, Record: *r})
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		if entries[i].Losses != entries[j].Losses {
			return entries[i].Losses < entries[j].Losses
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}

func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.records)
}
