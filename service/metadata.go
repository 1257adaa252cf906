package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const GoogleBooksURL = "https://www.googleapis.com/books/v1/volumes"

var ErrNoMetadata = errors.New("no metadata found for isbn")

// googleBooksVolumesResp is the response from GET /volumes?q=isbn:...
type googleBooksVolumesResp struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Authors             []string `json:"authors"`
			PublishedDate       string   `json:"publishedDate"`
			Categories          []string `json:"categories"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// BookMetadata is the subset of catalogue data a book record can take.
type BookMetadata struct {
	Title           string
	Author          string
	ISBN            string
	Category        string
	PublicationYear int
}

// MetadataClient looks books up on the Google Books volumes API.
type MetadataClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewMetadataClient(baseURL string) *MetadataClient {
	if baseURL == "" {
		baseURL = GoogleBooksURL
	}
	return &MetadataClient{BaseURL: baseURL, HTTP: &http.Client{Timeout: 15 * time.Second}}
}

func normalizeISBN(isbn string) string {
	isbn = strings.TrimSpace(isbn)
	isbn = strings.ReplaceAll(isbn, "-", "")
	return strings.ReplaceAll(isbn, " ", "")
}

func (c *MetadataClient) FetchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	isbn = normalizeISBN(isbn)
	if isbn == "" {
		return nil, fmt.Errorf("isbn is required")
	}
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books returned %d", resp.StatusCode)
	}
	var data googleBooksVolumesResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.TotalItems == 0 || len(data.Items) == 0 {
		return nil, ErrNoMetadata
	}
	info := data.Items[0].VolumeInfo
	meta := &BookMetadata{
		Title:           strings.TrimSpace(info.Title),
		Author:          strings.Join(info.Authors, ", "),
		ISBN:            isbn,
		PublicationYear: yearOf(info.PublishedDate),
	}
	if len(info.Categories) > 0 {
		meta.Category = info.Categories[0]
	}
	for _, id := range info.IndustryIdentifiers {
		if id.Type == "ISBN_13" {
			meta.ISBN = id.Identifier
			break
		}
	}
	return meta, nil
}

// yearOf reads the year from "2006", "2006-05" or "2006-05-01".
func yearOf(published string) int {
	if len(published) < 4 {
		return 0
	}
	y, err := strconv.Atoi(published[:4])
	if err != nil {
		return 0
	}
	return y
}
