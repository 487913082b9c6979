package connectors

import (
	"fmt"
	"net/url"
)

// Secrets schemas. Every backend accepts a full "url" override; without one
// it requires the keys listed here and derives the DSN itself.

var requiredSecrets = map[Kind][]string{
	KindPostgres: {"host", "dbname"},
	KindMySQL:    {"host", "dbname"},
	KindSQLite:   {"path"},
	KindMongoDB:  {"host"},
}

var defaultPorts = map[Kind]string{
	KindPostgres: "5432",
	KindMySQL:    "3306",
	KindMongoDB:  "27017",
}

// ValidateSecrets checks the config against the backend's schema before any
// client is built.
func ValidateSecrets(cfg Config) error {
	if cfg.Secrets["url"] != "" && cfg.Kind != KindSQLite {
		return nil
	}
	var missing []string
	for _, key := range requiredSecrets[cfg.Kind] {
		if cfg.Secrets[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &SecretsError{Key: cfg.Key, Kind: cfg.Kind, Missing: missing}
	}
	return nil
}

func secretOr(secrets map[string]string, key, fallback string) string {
	if v := secrets[key]; v != "" {
		return v
	}
	return fallback
}

// buildDSN derives the driver DSN/URI from validated secrets, honoring an
// explicit url override.
func buildDSN(cfg Config) string {
	s := cfg.Secrets
	if u := s["url"]; u != "" && cfg.Kind != KindSQLite {
		return u
	}
	port := secretOr(s, "port", defaultPorts[cfg.Kind])
	switch cfg.Kind {
	case KindPostgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   fmt.Sprintf("%s:%s", s["host"], port),
			Path:   "/" + s["dbname"],
		}
		if s["username"] != "" {
			u.User = url.UserPassword(s["username"], s["password"])
		}
		q := u.Query()
		q.Set("sslmode", secretOr(s, "sslmode", "prefer"))
		u.RawQuery = q.Encode()
		return u.String()
	case KindMySQL:
		auth := ""
		if s["username"] != "" {
			auth = fmt.Sprintf("%s:%s@", s["username"], s["password"])
		}
		return fmt.Sprintf("%stcp(%s:%s)/%s?parseTime=true", auth, s["host"], port, s["dbname"])
	case KindSQLite:
		return s["path"]
	case KindMongoDB:
		auth := ""
		authDB := ""
		if s["username"] != "" && s["password"] != "" {
			auth = fmt.Sprintf("%s:%s@", url.QueryEscape(s["username"]), url.QueryEscape(s["password"]))
			if db := s["defaultauthdb"]; db != "" {
				authDB = "/" + db
			}
		}
		return fmt.Sprintf("mongodb://%s%s:%s%s", auth, s["host"], port, authDB)
	}
	return ""
}
