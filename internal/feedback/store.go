package feedback

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/scdaid-mcp-server/internal/domain"
)

// Driver names accepted in domain.FeedbackConfig
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultSQLitePath returns the per-user feedback database location.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "scdaid-feedback.db")
	}
	return filepath.Join(home, ".scdaid", "feedback.db")
}

// NewStore opens the store selected by cfg. An empty driver means sqlite.
func NewStore(cfg domain.FeedbackConfig) (Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath()
		}
		return NewSQLiteStore(path)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("feedback driver %s requires a dsn", cfg.Driver)
		}
		return NewPostgresStoreFromURL(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported feedback driver %q", cfg.Driver)
	}
}
