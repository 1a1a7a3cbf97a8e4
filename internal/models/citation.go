package models

import "strings"

// CitingAuthorRecord 爬虫阶段的输出。不保证唯一，重复项在下游处理
type CitingAuthorRecord struct {
	AuthorID           string `json:"author_id"`
	AuthorName         string `json:"author_name"`
	CitingPaperTitle   string `json:"citing_paper_title"`
	CitedPaperTitle    string `json:"cited_paper_title"`
	SourceCitationText string `json:"source_citation_text"`
}

func (r CitingAuthorRecord) IsSentinel() bool {
	return IsSentinelAuthor(r.AuthorID)
}

// AffiliationRecord 机构解析阶段的输出。Affiliation 为空表示未知机构
type AffiliationRecord struct {
	AuthorID           string `json:"author_id"`
	AuthorName         string `json:"author_name"`
	CitingPaperTitle   string `json:"citing_paper_title"`
	CitedPaperTitle    string `json:"cited_paper_title"`
	Affiliation        string `json:"raw_affiliation_text"`
	SourceCitationText string `json:"source_citation_text"`
}

func (r AffiliationRecord) IsSentinel() bool {
	return IsSentinelAuthor(r.AuthorID)
}

// Key (引用作者, 引用论文, 被引论文, 机构) 四元组，导出时按它去重。
// 哨兵作者没有 id，用名字区分
func (r AffiliationRecord) Key() string {
	author := r.AuthorID
	if r.IsSentinel() {
		author = NoAuthorFound + ":" + strings.TrimSpace(r.AuthorName)
	}
	return strings.Join([]string{
		author,
		strings.ToLower(strings.TrimSpace(r.CitingPaperTitle)),
		strings.ToLower(strings.TrimSpace(r.CitedPaperTitle)),
		r.Affiliation,
	}, "\x00")
}

// WithAffiliation 复制一条记录并替换机构文本
func (r AffiliationRecord) WithAffiliation(affiliation string) AffiliationRecord {
	r.Affiliation = affiliation
	return r
}

// NewAffiliationRecord 从爬虫记录构造机构记录
func NewAffiliationRecord(rec CitingAuthorRecord, authorName, affiliation string) AffiliationRecord {
	if authorName == "" {
		authorName = rec.AuthorName
	}
	return AffiliationRecord{
		AuthorID:           rec.AuthorID,
		AuthorName:         authorName,
		CitingPaperTitle:   rec.CitingPaperTitle,
		CitedPaperTitle:    rec.CitedPaperTitle,
		Affiliation:        affiliation,
		SourceCitationText: rec.SourceCitationText,
	}
}

// CitationInfoRow 导出单元：机构记录 + 地理编码结果 + 主页链接
type CitationInfoRow struct {
	AuthorName       string     `json:"citing_author_name"`
	CitingPaperTitle string     `json:"citing_paper_title"`
	CitedPaperTitle  string     `json:"cited_paper_title"`
	Affiliation      string     `json:"affiliation"`
	Latitude         Coordinate `json:"latitude"`
	Longitude        Coordinate `json:"longitude"`
	County           string     `json:"county"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	Country          string     `json:"country"`
	AuthorID         string     `json:"author_id"`
	CitationText     string     `json:"citation_text"`
	ProfileLink      string     `json:"profile_link"`
}

// NewCitationInfoRow 合并机构记录与地理编码结果
func NewCitationInfoRow(rec AffiliationRecord, geo GeocodeResult) CitationInfoRow {
	row := CitationInfoRow{
		AuthorName:       rec.AuthorName,
		CitingPaperTitle: rec.CitingPaperTitle,
		CitedPaperTitle:  rec.CitedPaperTitle,
		Affiliation:      rec.Affiliation,
		AuthorID:         rec.AuthorID,
		CitationText:     rec.SourceCitationText,
		ProfileLink:      ProfileLink(rec.AuthorID),
	}
	if rec.IsSentinel() {
		row.Affiliation = ""
		return row
	}
	row.Latitude = geo.Latitude
	row.Longitude = geo.Longitude
	row.County = geo.County
	row.City = geo.City
	row.State = geo.State
	row.Country = geo.Country
	return row
}

// HasLocation 经纬度均有效
func (r CitationInfoRow) HasLocation() bool {
	return r.Latitude.Valid && r.Longitude.Valid
}
