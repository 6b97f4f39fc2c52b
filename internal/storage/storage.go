// Package storage retrieves coverage reports from an S3-compatible object
// store. Reports are laid out as
//
//	<repository>/<branch>/<YYYYMMDD_HHMMSS>/coverage.xml
//
// and "latest" means the lexicographically greatest timestamp segment.
package storage

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/everstacklabs/coverwatch/internal/cache"
	"github.com/everstacklabs/coverwatch/internal/httpclient"
)

// ErrNotFound means no coverage report exists for the requested branch.
// It is non-fatal: the pipeline degrades to an informational report.
var ErrNotFound = errors.New("coverage report not found")

var timestampRE = regexp.MustCompile(`^\d{8}_\d{6}$`)

// Client lists and downloads coverage reports.
type Client struct {
	http     *httpclient.Client
	endpoint string
	bucket   string
}

// New creates a storage client against the given endpoint and bucket.
func New(http *httpclient.Client, endpoint, bucket string) *Client {
	return &Client{
		http:     http,
		endpoint: strings.TrimRight(endpoint, "/"),
		bucket:   bucket,
	}
}

// listBucketResult is the subset of the S3 ListObjectsV2 response we need.
type listBucketResult struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	IsTruncated           bool     `xml:"IsTruncated"`
	NextContinuationToken string   `xml:"NextContinuationToken"`
	CommonPrefixes        []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

// LatestReport resolves the most recent timestamp directory under
// <repository>/<branch>/ and returns the raw coverage.xml bytes. Returns
// ErrNotFound when the branch has no timestamped reports.
func (c *Client) LatestReport(ctx context.Context, repository, branch string) ([]byte, error) {
	ts, err := c.latestTimestamp(ctx, repository, branch)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s/%s/coverage.xml", repository, branch, ts)
	resp, err := c.http.Get(ctx, cache.KindReport, fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, key))
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == 404 {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("fetching %s: %w", key, err)
	}
	return resp.Body, nil
}

// latestTimestamp lists the branch prefix and picks the greatest timestamp
// segment. The YYYYMMDD_HHMMSS format sorts newest-first under a descending
// string sort. Listings are paginated: S3 caps a page at 1000 entries, so
// every page is walked before the newest segment is chosen.
func (c *Client) latestTimestamp(ctx context.Context, repository, branch string) (string, error) {
	prefix := fmt.Sprintf("%s/%s/", repository, branch)
	baseURL := fmt.Sprintf("%s/%s?list-type=2&delimiter=%s&prefix=%s",
		c.endpoint, c.bucket, url.QueryEscape("/"), url.QueryEscape(prefix))

	var timestamps []string
	token := ""
	for {
		listURL := baseURL
		if token != "" {
			listURL += "&continuation-token=" + url.QueryEscape(token)
		}

		resp, err := c.http.Get(ctx, cache.KindListing, listURL)
		if err != nil {
			var se *httpclient.StatusError
			if errors.As(err, &se) && se.StatusCode == 404 {
				return "", fmt.Errorf("listing %s: %w", prefix, ErrNotFound)
			}
			return "", fmt.Errorf("listing %s: %w", prefix, err)
		}

		var listing listBucketResult
		if err := xml.Unmarshal(resp.Body, &listing); err != nil {
			return "", fmt.Errorf("decoding listing for %s: %w", prefix, err)
		}

		for _, cp := range listing.CommonPrefixes {
			seg := strings.TrimSuffix(strings.TrimPrefix(cp.Prefix, prefix), "/")
			if timestampRE.MatchString(seg) {
				timestamps = append(timestamps, seg)
			}
		}

		if !listing.IsTruncated || listing.NextContinuationToken == "" {
			break
		}
		token = listing.NextContinuationToken
	}

	if len(timestamps) == 0 {
		return "", fmt.Errorf("no reports under %s: %w", prefix, ErrNotFound)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(timestamps)))
	return timestamps[0], nil
}
