package sfapi

import (
	"context"
	"strconv"
	"time"
)

// Session is an authenticated handle to one in-game character. A
// session must never have more than one request in flight; the caller
// is responsible for serializing access.
type Session struct {
	client *Client
	name   string
	sid    string
}

func (s *Session) Name() string { return s.name }

type ownPayload struct {
	UID         int64       `json:"id"`
	Name        string      `json:"name"`
	Level       int         `json:"level"`
	Mushrooms   int         `json:"mushrooms"`
	Scrapbook   []ItemIdent `json:"scrapbook"`
	NextFightIn int         `json:"next_fight_in"`
}

func (p ownPayload) own(now time.Time) OwnCharacter {
	return OwnCharacter{
		UID:           p.UID,
		Name:          p.Name,
		Level:         p.Level,
		Mushrooms:     p.Mushrooms,
		Scrapbook:     p.Scrapbook,
		NextFreeFight: now.Add(time.Duration(p.NextFightIn) * time.Second),
	}
}

type loginPayload struct {
	SessionID string     `json:"session_id"`
	Player    ownPayload `json:"player"`
}

// Login authenticates an existing character.
func (c *Client) Login(ctx context.Context, name, password string) (*Session, OwnCharacter, error) {
	var payload loginPayload
	err := c.send(ctx, "", "AccountLogin", map[string]string{
		"username": name,
		"password": password,
	}, &payload)
	if err != nil {
		return nil, OwnCharacter{}, err
	}
	sess := &Session{client: c, name: name, sid: payload.SessionID}
	return sess, payload.Player.own(time.Now()), nil
}

// Register creates a fresh character. Used for disposable scouts, which
// only ever read public data.
func (c *Client) Register(ctx context.Context, name, password string) (*Session, OwnCharacter, error) {
	var payload loginPayload
	err := c.send(ctx, "", "AccountCreate", map[string]string{
		"username": name,
		"password": password,
	}, &payload)
	if err != nil {
		return nil, OwnCharacter{}, err
	}
	sess := &Session{client: c, name: name, sid: payload.SessionID}
	return sess, payload.Player.own(time.Now()), nil
}

// LoginOrRegister logs a scout in, registering it first if the account
// does not exist yet.
func (c *Client) LoginOrRegister(ctx context.Context, name, password string) (*Session, OwnCharacter, error) {
	sess, own, err := c.Login(ctx, name, password)
	if err == nil || !IsAuth(err) {
		return sess, own, err
	}
	return c.Register(ctx, name, password)
}

// UpdatePlayer refreshes the session's own character, including the
// scrapbook contents.
func (s *Session) UpdatePlayer(ctx context.Context) (OwnCharacter, error) {
	var payload ownPayload
	err := s.client.send(ctx, s.sid, "UpdatePlayer", nil, &payload)
	if err != nil {
		return OwnCharacter{}, err
	}
	return payload.own(time.Now()), nil
}

type hofPayload struct {
	TotalPlayers int            `json:"total_players"`
	Entries      []CharacterRef `json:"entries"`
}

// HallOfFamePage fetches one page of the server-wide character
// directory. Pages are 30 characters each and re-fetching a page is
// idempotent.
func (s *Session) HallOfFamePage(ctx context.Context, page int) (HallOfFamePage, error) {
	var payload hofPayload
	err := s.client.send(ctx, s.sid, "HallOfFamePage", map[string]string{
		"page": strconv.Itoa(page),
	}, &payload)
	if err != nil {
		return HallOfFamePage{}, err
	}
	return HallOfFamePage{
		Page:         page,
		TotalPlayers: payload.TotalPlayers,
		Entries:      payload.Entries,
	}, nil
}

type viewPlayerPayload struct {
	Player struct {
		UID       int64       `json:"id"`
		Name      string      `json:"name"`
		Level     int         `json:"level"`
		Stats     int         `json:"stats"`
		Equipment []ItemIdent `json:"equipment"`
	} `json:"player"`
}

// ViewPlayer fetches the public profile of another character,
// including the currently equipped items.
func (s *Session) ViewPlayer(ctx context.Context, name string) (Character, error) {
	var payload viewPlayerPayload
	err := s.client.send(ctx, s.sid, "ViewPlayer", map[string]string{
		"name": name,
	}, &payload)
	if err != nil {
		return Character{}, err
	}
	return Character{
		UID:       payload.Player.UID,
		Name:      payload.Player.Name,
		Level:     payload.Player.Level,
		Stats:     payload.Player.Stats,
		Equipment: payload.Player.Equipment,
		FetchedAt: time.Now(),
	}, nil
}

type fightPayload struct {
	Won         bool `json:"won"`
	NextFightIn int  `json:"next_fight_in"`
}

// Fight attacks the named character in the arena.
func (s *Session) Fight(ctx context.Context, name string) (FightResult, error) {
	var payload fightPayload
	err := s.client.send(ctx, s.sid, "Fight", map[string]string{
		"name": name,
	}, &payload)
	if err != nil {
		return FightResult{}, err
	}
	return FightResult{
		Won:           payload.Won,
		NextFreeFight: time.Now().Add(time.Duration(payload.NextFightIn) * time.Second),
	}, nil
}
