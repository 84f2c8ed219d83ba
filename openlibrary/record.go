package openlibrary

import (
	"errors"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/ramonpiresone/biblioteca"
)

// editionData is the jscmd=data shape of one bibkey in the Books API
// response. Only the fields the catalog consumes are decoded.
type editionData struct {
	URL         string              `json:"url"`
	Key         string              `json:"key"`
	Title       string              `json:"title"`
	Authors     []editionAuthor     `json:"authors"`
	Identifiers map[string][]string `json:"identifiers"`
	PublishDate string              `json:"publish_date"`
	Notes       string              `json:"notes"`
	Excerpts    []editionExcerpt    `json:"excerpts"`
	Cover       editionCover        `json:"cover"`
}

type editionAuthor struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type editionExcerpt struct {
	Text    string `json:"text"`
	Comment string `json:"comment"`
}

type editionCover struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

var (
	errNoIdentifier = errors.New("record carries no open library identifier")
	errNoTitle      = errors.New("record carries no title")

	yearPattern = regexp.MustCompile(`\b\d{4}\b`)
)

// mapEdition converts one decoded edition into the domain record. The
// identifier and the title are mandatory; everything else is carried when the
// source publishes it.
func mapEdition(edition editionData) (biblioteca.BibliographicRecord, error) {
	olid := editionOLID(edition)
	if olid == "" {
		return biblioteca.BibliographicRecord{}, errNoIdentifier
	}

	if strings.TrimSpace(edition.Title) == "" {
		return biblioteca.BibliographicRecord{}, errNoTitle
	}

	record := biblioteca.BibliographicRecord{
		OLID:    biblioteca.BookID(olid),
		Title:   edition.Title,
		Authors: make([]string, 0, len(edition.Authors)),
		ISBNs:   make([]string, 0, 2),
		Covers: biblioteca.Covers{
			Small:  edition.Cover.Small,
			Medium: edition.Cover.Medium,
			Large:  edition.Cover.Large,
		},
		Description: editionDescription(edition),
	}

	for _, author := range edition.Authors {
		if author.Name != "" {
			record.Authors = append(record.Authors, author.Name)
		}
	}

	record.ISBNs = append(record.ISBNs, edition.Identifiers["isbn_13"]...)
	record.ISBNs = append(record.ISBNs, edition.Identifiers["isbn_10"]...)

	if year, found := publishYear(edition.PublishDate); found {
		record.FirstPublishYear = &year
	}

	return record, nil
}

// editionOLID takes the first openlibrary identifier, falling back to the
// trailing element of the record's catalog path.
func editionOLID(edition editionData) string {
	if ids := edition.Identifiers["openlibrary"]; len(ids) > 0 {
		return ids[0]
	}

	if edition.Key != "" {
		return path.Base(edition.Key)
	}

	return ""
}

// editionDescription prefers the record notes, then the first excerpt.
func editionDescription(edition editionData) string {
	if edition.Notes != "" {
		return edition.Notes
	}

	for _, excerpt := range edition.Excerpts {
		if excerpt.Text != "" {
			return excerpt.Text
		}
	}

	return ""
}

// publishYear extracts the last four-digit run of the publish date, which
// handles "1988", "October 1, 1988" and "2004-05-01" alike.
func publishYear(publishDate string) (int, bool) {
	runs := yearPattern.FindAllString(publishDate, -1)
	if len(runs) == 0 {
		return 0, false
	}

	year, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0, false
	}

	return year, true
}
