package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	storage "CitationMap/db"
	"CitationMap/internal/affiliation"
	"CitationMap/internal/batch"
	"CitationMap/internal/models"
	"CitationMap/pkg/logger"
)

var _ storage.CheckpointStorage = (*SQLiteDB)(nil)

// StartRun 记录一次运行，返回 run id
func (s *SQLiteDB) StartRun(scholarID string, strategy affiliation.Kind) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO runs (id, scholar_id, strategy) VALUES (?, ?, ?)`, id, scholarID, string(strategy))
	if err != nil {
		return "", fmt.Errorf("记录运行失败: %w", err)
	}
	return id, nil
}

func (s *SQLiteDB) FinishRun(runID string, summaries []batch.Summary) error {
	b, err := json.Marshal(summaries)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE runs SET finished_at = CURRENT_TIMESTAMP, summary = ? WHERE id = ?`, string(b), runID)
	return err
}

// SavePublications 覆盖保存论文列表
func (s *SQLiteDB) SavePublications(scholarID string, pubs []models.Publication) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
	INSERT INTO scholars (scholar_id, fetched_at) VALUES (?, CURRENT_TIMESTAMP)
	ON CONFLICT(scholar_id) DO UPDATE SET fetched_at = CURRENT_TIMESTAMP`, scholarID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM publications WHERE scholar_id = ?`, scholarID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO publications (scholar_id, seq, title, group_ids, citation) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range pubs {
		if _, err := stmt.Exec(scholarID, i, p.Title, joinIDs(p.CitationGroupIDs), p.Citation); err != nil {
			return fmt.Errorf("保存论文失败 [%s]: %w", p.Title, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteDB) LoadPublications(scholarID string) ([]models.Publication, bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM scholars WHERE scholar_id = ?`, scholarID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.db.Query(`SELECT title, group_ids, citation FROM publications WHERE scholar_id = ? ORDER BY seq`, scholarID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var pubs []models.Publication
	for rows.Next() {
		var p models.Publication
		var ids, citation sql.NullString
		if err := rows.Scan(&p.Title, &ids, &citation); err != nil {
			return nil, false, err
		}
		p.CitationGroupIDs = splitIDs(ids.String)
		p.Citation = citation.String
		pubs = append(pubs, p)
	}
	return pubs, true, rows.Err()
}

// SaveGroup 一个 group 的记录整体替换
func (s *SQLiteDB) SaveGroup(scholarID, groupID, path string, records []models.CitingAuthorRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM citation_groups WHERE scholar_id = ? AND group_id = ?`, scholarID, groupID); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO citation_groups (scholar_id, group_id, path) VALUES (?, ?, ?)`, scholarID, groupID, path); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
	INSERT INTO citing_records (scholar_id, group_id, seq, author_id, author_name, citing_title, cited_title, citation)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range records {
		if _, err := stmt.Exec(scholarID, groupID, i, r.AuthorID, r.AuthorName, r.CitingPaperTitle, r.CitedPaperTitle, r.SourceCitationText); err != nil {
			return fmt.Errorf("保存引用记录失败 [group=%s]: %w", groupID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteDB) LoadGroups(scholarID string) (map[string][]models.CitingAuthorRecord, error) {
	out := map[string][]models.CitingAuthorRecord{}

	groups, err := s.db.Query(`SELECT group_id FROM citation_groups WHERE scholar_id = ?`, scholarID)
	if err != nil {
		return nil, err
	}
	for groups.Next() {
		var id string
		if err := groups.Scan(&id); err != nil {
			groups.Close()
			return nil, err
		}
		out[id] = []models.CitingAuthorRecord{}
	}
	groups.Close()
	if err := groups.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
	SELECT group_id, author_id, author_name, citing_title, cited_title, citation
	FROM citing_records WHERE scholar_id = ? ORDER BY group_id, seq`, scholarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var gid string
		var r models.CitingAuthorRecord
		var name, citing, cited, citation sql.NullString
		if err := rows.Scan(&gid, &r.AuthorID, &name, &citing, &cited, &citation); err != nil {
			return nil, err
		}
		r.AuthorName, r.CitingPaperTitle, r.CitedPaperTitle, r.SourceCitationText = name.String, citing.String, cited.String, citation.String
		out[gid] = append(out[gid], r)
	}
	return out, rows.Err()
}

// Lookup 实现 affiliation.Memo
func (s *SQLiteDB) Lookup(kind affiliation.Kind, authorID string) (affiliation.Resolution, bool) {
	var res affiliation.Resolution
	var name, affs sql.NullString
	err := s.db.QueryRow(`SELECT name, affiliations FROM author_affiliations WHERE strategy = ? AND author_id = ?`,
		string(kind), authorID).Scan(&name, &affs)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("读取作者 %s 的机构记忆失败，按未命中处理: %v", authorID, err)
		}
		return res, false
	}
	res.Name = name.String
	if affs.String != "" {
		if err := json.Unmarshal([]byte(affs.String), &res.Affiliations); err != nil {
			return affiliation.Resolution{}, false
		}
	}
	return res, true
}

func (s *SQLiteDB) Store(kind affiliation.Kind, authorID string, res affiliation.Resolution) error {
	b, err := json.Marshal(res.Affiliations)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
	INSERT INTO author_affiliations (strategy, author_id, name, affiliations, updated_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(strategy, author_id) DO UPDATE SET
		name = excluded.name,
		affiliations = excluded.affiliations,
		updated_at = CURRENT_TIMESTAMP`, string(kind), authorID, res.Name, string(b))
	return err
}

// Reset 删除某个被引作者的论文与 group 断点，作者机构记忆保留
func (s *SQLiteDB) Reset(scholarID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM citation_groups WHERE scholar_id = ?`, scholarID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM scholars WHERE scholar_id = ?`, scholarID); err != nil {
		return err
	}
	return tx.Commit()
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return "," + strings.Join(ids, ",") + ","
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(strings.Trim(s, ","), ",") {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
