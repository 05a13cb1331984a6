// Package catalog is a read-only client for the external job-posting
// catalog. The pipeline uses it to re-fetch targets whose queue payload lacks
// a recipient contact.
package catalog

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/applyflow/applyflow/internal/application"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
	defaultTimeout  = 15 * time.Second
)

// Client talks to the catalog HTTP API.
type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// New creates a catalog client for the given base URL.
func New(apiURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		token:  token,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		APIURL: apiURL,
	}
}

type postingItem struct {
	ID               string `mapstructure:"id"`
	Title            string `mapstructure:"title"`
	Company          string `mapstructure:"company"`
	Location         string `mapstructure:"location"`
	RecipientContact string `mapstructure:"recipient_contact"`
	Salary           string `mapstructure:"salary"`
}

// GetPosting fetches one posting by id.
func (c *Client) GetPosting(ctx context.Context, id string) (*application.TargetPosting, error) {
	var raw map[string]any
	if err := c.getJSON(ctx, fmt.Sprintf("%s/postings/%s", c.APIURL, id), &raw); err != nil {
		return nil, err
	}

	var item postingItem
	if err := mapstructure.Decode(raw, &item); err != nil {
		return nil, fmt.Errorf("decode posting %s: %w", id, err)
	}

	return &application.TargetPosting{
		ID:               item.ID,
		Title:            item.Title,
		Company:          item.Company,
		Location:         item.Location,
		RecipientContact: item.RecipientContact,
		Salary:           item.Salary,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("catalog request", zap.String("url", url))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept-Encoding", contentEncoding)
}
