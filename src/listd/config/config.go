package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	MySQLDSN       string
	RedisURL       string
	JWTSecret      string
	AdminToken     string
	Port           string
	ListID         string
	TwitterBearer  string
	TwitterBaseURL string
	CooloffMinutes int
	ItemsPerPage   int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func Load() Config {
	cooloff, _ := strconv.Atoi(getenv("SYNC_COOLOFF_MINUTES", "5"))
	perPage, _ := strconv.Atoi(getenv("ITEMS_PER_PAGE", "20"))
	return Config{
		MySQLDSN:       getenv("MYSQL_DSN", "listkeeper:listkeeper@tcp(localhost:3306)/listkeeper"),
		RedisURL:       getenv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:      getenv("JWT_SECRET", ""),
		AdminToken:     getenv("ADMIN_TOKEN", ""),
		Port:           getenv("PORT", "8080"),
		ListID:         getenv("TWITTER_LIST_ID", ""),
		TwitterBearer:  getenv("TWITTER_BEARER_TOKEN", ""),
		TwitterBaseURL: getenv("TWITTER_API_URL", "https://api.twitter.com/2"),
		CooloffMinutes: cooloff,
		ItemsPerPage:   perPage,
	}
}
