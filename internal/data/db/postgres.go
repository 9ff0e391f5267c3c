package db

import (
	"fmt"
	"net/url"

	"github.com/yungbote/learnhub/internal/platform/envutil"
)

// PostgresDSNFromEnv assembles a connection URL from POSTGRES_* variables.
// It is used when the postgres driver is selected without an explicit dsn.
func PostgresDSNFromEnv() string {
	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "learnhub")
	sslmode := envutil.String("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		Path:     "/" + name,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String()
}
