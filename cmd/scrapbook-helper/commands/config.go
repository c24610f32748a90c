package commands

import (
	"context"
	"database/sql"
	"errors"

	"scrapbook-helper/lib/configutil"
	configlibsql "scrapbook-helper/lib/configutil/libsql"
	"scrapbook-helper/lib/serviceutil"
	"scrapbook-helper/lib/sfapi"
	hofdb "scrapbook-helper/services/hof/db"
	"scrapbook-helper/services/notify"
)

type Config struct {
	// Server is the game server to play on, e.g. "s1.sfgame.net".
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`

	Database configlibsql.Struct `json:"database"`

	// CrawlOrder is "random", "top-down" or "bottom-up".
	CrawlOrder string `json:"crawl_order"`
	// Scouts is how many generated crawl accounts to run, capped at 10.
	Scouts int `json:"scouts"`
	// ScoutNames holds previously registered scout accounts to reuse.
	ScoutNames []string `json:"scout_names"`

	// MaxLevel excludes targets above this level. 0 defaults to the
	// own character's level; a negative value disables the limit.
	MaxLevel int `json:"max_level"`
	// LossThreshold blacklists a target after this many lost fights.
	LossThreshold int  `json:"loss_threshold"`
	AutoBattle    bool `json:"auto_battle"`

	Notify notify.Config `json:"notify"`
}

// serverIdent is the key crawl state is stored under.
func serverIdent(cfg Config) string {
	return sfapi.Ident(cfg.Server)
}

func effectiveMaxLevel(cfg Config, own sfapi.OwnCharacter) int {
	switch {
	case cfg.MaxLevel > 0:
		return cfg.MaxLevel
	case cfg.MaxLevel < 0:
		return 0
	default:
		return own.Level
	}
}

func mustReadConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.Server == "" {
		serviceutil.Fatal("invalid config", errors.New("missing server"))
	}
	if cfg.Database.File == "" && cfg.Database.Url == "" {
		cfg.Database.File = "scrapbook.db"
	}
	return cfg
}

func mustOpenDB(cfg Config) *sql.DB {
	database, err := cfg.Database.OpenDB(hofdb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	return database
}

func mustLogin(ctx context.Context, cfg Config) (*sfapi.Client, *sfapi.Session, sfapi.OwnCharacter) {
	client, err := sfapi.NewClient(cfg.Server)
	if err != nil {
		serviceutil.Fatal("failed to create game client", err)
	}
	session, own, err := client.Login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		serviceutil.Fatal("failed to login", err)
	}
	return client, session, own
}
