package participants

import (
	"errors"
	"strconv"
	"sync"

	"golang.org/x/text/cases"
)

var ErrNotFound = errors.New("participants: participant not found")

// Participant is a chat member as last seen by the bot
type Participant struct {
	ChatID    int64
	UserID    int64
	FirstName string
	Handle    string
}

// Directory keeps per-chat participant lists. Each chat has its own lock.
type Directory struct {
	mu    sync.Mutex
	chats map[int64]*chatDirectory
}

type chatDirectory struct {
	mu    sync.RWMutex
	order []int64
	byID  map[int64]Participant
}

func NewDirectory() *Directory {
	return &Directory{chats: make(map[int64]*chatDirectory)}
}

// Handle returns the lookup handle for a user: case-folded username or the user ID
func Handle(userID int64, username string) string {
	if username == "" {
		return strconv.FormatInt(userID, 10)
	}
	return cases.Fold().String(username)
}

func (d *Directory) chat(chatID int64, create bool) *chatDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.chats[chatID]
	if !ok && create {
		c = &chatDirectory{byID: make(map[int64]Participant)}
		d.chats[chatID] = c
	}
	return c
}

// Observe upserts the sender of a message
func (d *Directory) Observe(chatID, userID int64, firstName, username string) Participant {
	p := Participant{
		ChatID:    chatID,
		UserID:    userID,
		FirstName: firstName,
		Handle:    Handle(userID, username),
	}
	d.put(p)
	return p
}

// Load seeds the directory with previously stored participants
func (d *Directory) Load(list []Participant) {
	for _, p := range list {
		d.put(p)
	}
}

func (d *Directory) put(p Participant) {
	c := d.chat(p.ChatID, true)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[p.UserID]; !ok {
		c.order = append(c.order, p.UserID)
	}
	c.byID[p.UserID] = p
}

func (d *Directory) Lookup(chatID, userID int64) (Participant, error) {
	c := d.chat(chatID, false)
	if c == nil {
		return Participant{}, ErrNotFound
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.byID[userID]
	if !ok {
		return Participant{}, ErrNotFound
	}
	return p, nil
}

// Name returns the first name of a participant or fallback when unknown
func (d *Directory) Name(chatID, userID int64, fallback string) string {
	p, err := d.Lookup(chatID, userID)
	if err != nil || p.FirstName == "" {
		return fallback
	}
	return p.FirstName
}

// Members returns the chat participants in first-seen order
func (d *Directory) Members(chatID int64) []Participant {
	c := d.chat(chatID, false)
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	members := make([]Participant, 0, len(c.order))
	for _, id := range c.order {
		members = append(members, c.byID[id])
	}
	return members
}
