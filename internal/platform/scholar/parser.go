package scholar

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"CitationMap/internal/models"
	"CitationMap/internal/platform"
)

// 反爬页面的特征文本
var blockMarkers = []string{"CAPTCHA", "not a robot", "Access Denied", "Forbidden"}

// DetectBlock 页面文本中是否出现反爬标记
func DetectBlock(text string) bool {
	for _, m := range blockMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// CitationPage 一页 "Cited by" 结果
type CitationPage struct {
	Entries   []models.CitingEntry
	NextHref  string // 下一页的相对链接，没有则为空
	Malformed int    // 无法解析的结果块数量
}

// ParseCitationPage 解析引用列表页。page 为当前页码（从 1 开始），用于定位下一页按钮。
// 每个结果块至少产生一条记录：找不到作者主页链接时使用哨兵作者
func ParseCitationPage(html string, page int) (CitationPage, error) {
	var out CitationPage
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return out, fmt.Errorf("%w: %v", platform.ErrMalformedPage, err)
	}

	doc.Find("div.gs_ri").Each(func(_ int, block *goquery.Selection) {
		titleTag := block.Find("h3.gs_rt").First()
		if titleTag.Length() == 0 {
			out.Malformed++
			return
		}
		title := cleanTitle(titleTag.Text())

		byline := block.Find("div.gs_a").First()
		bylineAuthors := "Unknown Author"
		if byline.Length() > 0 {
			bylineAuthors = strings.TrimSpace(strings.SplitN(byline.Text(), "-", 2)[0])
		}

		found := false
		block.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			id := userParam(href)
			if id == "" {
				return
			}
			name := strings.TrimSpace(a.Text())
			if name == "" {
				name = bylineAuthors
			}
			out.Entries = append(out.Entries, models.CitingEntry{AuthorID: id, AuthorName: name, PaperTitle: title})
			found = true
		})
		if !found {
			out.Entries = append(out.Entries, models.CitingEntry{
				AuthorID:   models.NoAuthorFound,
				AuthorName: bylineAuthors,
				PaperTitle: title,
			})
		}
	})

	want := strconv.Itoa(page + 1)
	doc.Find("a.gs_nma").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != want {
			return true
		}
		out.NextHref, _ = a.Attr("href")
		return false
	})
	return out, nil
}

// ProfilePage 作者主页的一页
type ProfilePage struct {
	Name           string
	Affiliation    string
	OrganizationID string
	Publications   []models.Publication
	Rows           int // 本页论文行数，用于判断是否还有下一页
}

// ParseProfilePage 解析 /citations?user= 页面
func ParseProfilePage(html string) (ProfilePage, error) {
	var out ProfilePage
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return out, fmt.Errorf("%w: %v", platform.ErrMalformedPage, err)
	}

	out.Name = strings.TrimSpace(doc.Find("#gsc_prf_in").First().Text())
	if out.Name == "" {
		return out, fmt.Errorf("%w: 主页缺少作者名", platform.ErrMalformedPage)
	}
	aff := doc.Find("div.gsc_prf_il").First()
	out.Affiliation = strings.TrimSpace(aff.Text())
	if href, ok := aff.Find("a.gsc_prf_ila").Attr("href"); ok {
		out.OrganizationID = queryParam(href, "org")
	}

	doc.Find("tr.gsc_a_tr").Each(func(_ int, row *goquery.Selection) {
		out.Rows++
		title := strings.TrimSpace(row.Find("a.gsc_a_at").First().Text())
		if title == "" {
			return
		}
		pub := models.Publication{Title: title, Citation: citationText(row)}
		if href, ok := row.Find("a.gsc_a_ac").Attr("href"); ok {
			pub.CitationGroupIDs = splitGroupIDs(queryParam(href, "cites"))
		}
		out.Publications = append(out.Publications, pub)
	})
	return out, nil
}

// ParseOrganizationName 解析机构页标题
func ParseOrganizationName(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: %v", platform.ErrMalformedPage, err)
	}
	tag := doc.Find("h2.gsc_authors_header").First()
	if tag.Length() == 0 {
		return "", fmt.Errorf("%w: 机构页缺少 gsc_authors_header", platform.ErrMalformedPage)
	}
	return strings.TrimSpace(strings.ReplaceAll(tag.Text(), "Learn more", "")), nil
}

// citationText 作者行与出处行拼成一条引用文本
func citationText(row *goquery.Selection) string {
	parts := []string{}
	row.Find("div.gs_gray").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, ", ")
}

func cleanTitle(s string) string {
	for _, tag := range []string{"[HTML]", "[PDF]", "[CITATION]", "[BOOK]", "[C]", "[B]"} {
		s = strings.ReplaceAll(s, tag, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

func userParam(href string) string {
	if !strings.Contains(href, "user=") {
		return ""
	}
	return queryParam(href, "user")
}

func queryParam(href, key string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}

func splitGroupIDs(s string) []string {
	if s == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
