package sfapi

import (
	"strconv"
	"strings"
	"time"
)

// ItemIdent is the stable identity of an equipment model, formatted as
// "<slot>:<class>:<model>". Two characters wearing the same model carry
// the same ident, which is what the scrapbook tracks.
type ItemIdent string

// ModelID returns the numeric model of the ident, or -1 when the ident
// is malformed. Models >= 100 are event reskins that do not occupy a
// scrapbook slot.
func (i ItemIdent) ModelID() int {
	idx := strings.LastIndexByte(string(i), ':')
	if idx < 0 {
		return -1
	}
	model, err := strconv.Atoi(string(i[idx+1:]))
	if err != nil {
		return -1
	}
	return model
}

// CharacterRef is one row of a hall of fame page.
type CharacterRef struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// HallOfFamePage lists the characters of one directory page. The server
// reports its total character count on every page, which lets callers
// refine how many pages exist.
type HallOfFamePage struct {
	Page         int
	TotalPlayers int
	Entries      []CharacterRef
}

// Character is a public view of another player, captured at FetchedAt.
type Character struct {
	UID       int64
	Name      string
	Level     int
	Stats     int
	Equipment []ItemIdent
	FetchedAt time.Time
}

// OwnCharacter is the authenticated player's own state, including the
// scrapbook and the arena cooldown.
type OwnCharacter struct {
	UID           int64
	Name          string
	Level         int
	Mushrooms     int
	Scrapbook     []ItemIdent
	NextFreeFight time.Time
}

type FightResult struct {
	Won           bool
	NextFreeFight time.Time
}

// ServerRef is one entry of the public server list.
type ServerRef struct {
	Name string
	URL  string
}
