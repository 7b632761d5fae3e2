package fragment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vkoval/fragsnipe/internal/model"
)

var priceNumRe = regexp.MustCompile(`(\d+)`)

// parsePrice extracts an integer TON price from a scraped cell. Returns
// nil when no digits are present; such listings still participate in
// dedup but never in affordability comparisons.
func parsePrice(cellText string) *int64 {
	cleaned := strings.NewReplacer(",", "", " ", "", " ", "").Replace(cellText)
	m := priceNumRe.FindStringSubmatch(cleaned)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// parseListings dispatches on category since the two sale pages use
// different table markup.
func parseListings(kind model.ListingKind, html string) ([]model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sale page: %w", err)
	}

	if kind == model.KindUsernames {
		return parseUsernameRows(doc), nil
	}
	return parseNumberRows(doc), nil
}

// parseNumberRows reads the numbers sale table: selectable rows with a
// cell link, a TON price cell, and an optional status badge.
func parseNumberRows(doc *goquery.Document) []model.Listing {
	var listings []model.Listing

	doc.Find("table tr.tm-row-selectable").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("td a.table-cell").First()
		priceCell := row.Find(".icon-before.icon-ton").First()
		if link.Length() == 0 || priceCell.Length() == 0 {
			return
		}

		href := link.AttrOr("href", "")
		id := href[strings.LastIndex(href, "/")+1:]
		if id == "" {
			return
		}

		label := strings.TrimSpace(row.Find(".table-cell-value").First().Text())
		priceText := strings.TrimSpace(priceCell.Text())
		status := strings.TrimSpace(row.Find(".tm-status-avail, .tm-status-sold, .tm-status-bid").First().Text())

		listings = append(listings, model.Listing{
			ID:           id,
			DisplayLabel: label,
			RawPriceText: priceText,
			PriceTON:     parsePrice(priceText),
			Status:       status,
		})
	})

	return listings
}

// parseUsernameRows reads the username sale table. Rows are identified
// by their /username/ link; the price cell is found by scanning cells
// for TON amounts since the page carries no dedicated class.
func parseUsernameRows(doc *goquery.Document) []model.Listing {
	var listings []model.Listing

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 {
			return
		}

		link := row.Find(`td a[href*="/username/"]`).First()
		if link.Length() == 0 {
			return
		}

		href := link.AttrOr("href", "")
		id := href[strings.LastIndex(href, "/")+1:]
		if id == "" {
			return
		}

		label := strings.TrimPrefix(strings.TrimSpace(link.Text()), "@")

		var priceText string
		row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			text := strings.TrimSpace(cell.Text())
			if strings.Contains(text, "TON") || parsePrice(text) != nil {
				priceText = text
				return false
			}
			return true
		})
		if priceText == "" {
			return
		}

		status := strings.TrimSpace(row.Find("td").First().Text())
		if status == "" {
			status = "For sale"
		}

		listings = append(listings, model.Listing{
			ID:           id,
			DisplayLabel: label,
			RawPriceText: priceText,
			PriceTON:     parsePrice(priceText),
			Status:       status,
		})
	})

	return listings
}
