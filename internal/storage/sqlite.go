package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	log "github.com/sirupsen/logrus"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/logging"
	"github.com/pkg/errors"
)

// SqliteStore persists containers in a local SQLite database, one row per
// (campaign, kind). This is the default backend: a single file under the
// user's home directory is the natural storage unit for a login-node tool.
type SqliteStore struct {
	db  *sql.DB
	log *log.Entry
}

// NewSqliteStore opens (creating if necessary) the database at databasePath
// and ensures the schema exists. The returned cleanup function closes the
// database.
func NewSqliteStore(databasePath string) (*SqliteStore, func(), error) {
	logger := log.WithField("store", "sqlite")

	dbDir := filepath.Dir(databasePath)
	if _, err := os.Stat(dbDir); os.IsNotExist(err) {
		if errMkDir := os.MkdirAll(dbDir, 0o755); errMkDir != nil {
			return nil, func() {}, errors.Wrapf(errMkDir, "could not create directory %s for sqlite db", dbDir)
		}
	}

	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, func() {}, errors.Wrapf(err, "opening sqlite db at %s", databasePath)
	}

	s := &SqliteStore{db: db, log: logger}
	if err := s.setup(); err != nil {
		_ = db.Close()
		return nil, func() {}, err
	}

	return s, func() {
		if err := db.Close(); err != nil {
			logger.Warnf("error closing database: %v", err)
		}
	}, nil
}

func (s *SqliteStore) setup() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return errors.WithStack(err)
	}
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS containers (
		CampaignId TEXT,
		Kind TEXT,
		Doc TEXT,
		Updated INT,
		PRIMARY KEY(CampaignId, Kind))`)
	return errors.WithStack(err)
}

func (s *SqliteStore) readContainer(campaignID, kind string) (container, error) {
	var doc string
	row := s.db.QueryRow("SELECT Doc FROM containers WHERE CampaignId = ? AND Kind = ?", campaignID, kind)
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return container{}, nil
	} else if err != nil {
		return nil, errors.WithStack(err)
	}
	return decodeContainer([]byte(doc))
}

func (s *SqliteStore) writeContainer(campaignID, kind string, c container) error {
	data, err := encodeContainer(c)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		"INSERT INTO containers (CampaignId, Kind, Doc, Updated) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT(CampaignId, Kind) DO UPDATE SET Doc = excluded.Doc, Updated = excluded.Updated",
		campaignID, kind, string(data), time.Now().Unix())
	return errors.WithStack(err)
}

func (s *SqliteStore) Save(campaignID, kind, id string, attrs Attrs) bool {
	c, err := s.readContainer(campaignID, kind)
	if err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to read container %s/%s", campaignID, kind)
		return false
	}
	c[id] = attrs
	if err := s.writeContainer(campaignID, kind, c); err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to write container %s/%s", campaignID, kind)
		return false
	}
	return true
}

func (s *SqliteStore) Load(campaignID, kind, id string) (Attrs, bool) {
	c, err := s.readContainer(campaignID, kind)
	if err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to read container %s/%s", campaignID, kind)
		return nil, false
	}
	attrs, ok := c[id]
	return attrs, ok
}

func (s *SqliteStore) LoadAll(campaignID, kind string) []Attrs {
	c, err := s.readContainer(campaignID, kind)
	if err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to read container %s/%s", campaignID, kind)
		return nil
	}
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Attrs, 0, len(c))
	for _, id := range ids {
		out = append(out, withID(id, c[id]))
	}
	return out
}

func (s *SqliteStore) Delete(campaignID, kind, id string) bool {
	c, err := s.readContainer(campaignID, kind)
	if err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to read container %s/%s", campaignID, kind)
		return false
	}
	if _, ok := c[id]; !ok {
		return false
	}
	delete(c, id)
	if err := s.writeContainer(campaignID, kind, c); err != nil {
		logging.WithStacktrace(s.log, err).Warnf("failed to write container %s/%s", campaignID, kind)
		return false
	}
	return true
}

func (s *SqliteStore) ListCampaigns() []string {
	rows, err := s.db.Query("SELECT DISTINCT CampaignId FROM containers ORDER BY CampaignId")
	if err != nil {
		logging.WithStacktrace(s.log, errors.WithStack(err)).Warn("failed to list campaigns")
		return nil
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			logging.WithStacktrace(s.log, errors.WithStack(err)).Warn("failed to scan campaign id")
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}
