package content

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultPageSize   = 100
	contentfulTimeout = 30 * time.Second
)

// ContentfulClient fetches entry text through the Contentful Delivery API.
type ContentfulClient struct {
	http        *resty.Client
	space       string
	environment string
	pageSize    int
}

// NewContentfulClient builds a client for one space and environment.
// baseURL is the Delivery API root, e.g. https://cdn.contentful.com.
func NewContentfulClient(baseURL, space, environment, accessToken string) *ContentfulClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(contentfulTimeout).
		SetHeader("Accept", "application/json").
		SetAuthToken(accessToken).
		SetRetryCount(3).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		if r == nil {
			return false
		}
		code := r.StatusCode()
		return code >= 500 || code == http.StatusTooManyRequests
	})

	return &ContentfulClient{
		http:        client,
		space:       space,
		environment: environment,
		pageSize:    defaultPageSize,
	}
}

type entriesPage struct {
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
	Items []struct {
		Fields map[string]any `json:"fields"`
	} `json:"items"`
}

// FetchText pages through every entry of the queried content type and
// concatenates the selected field, in the order the API returns entries.
// Entries without a string value for the field are skipped.
func (c *ContentfulClient) FetchText(ctx context.Context, q Query) (string, error) {
	if q.ContentType == "" || q.Field == "" {
		return "", fmt.Errorf("%w: content type and field are required", ErrFetchFailed)
	}

	path := fmt.Sprintf("/spaces/%s/environments/%s/entries", c.space, c.environment)
	var text []byte
	skip := 0
	for {
		var page entriesPage
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"content_type": q.ContentType,
				"select":       "fields." + q.Field,
				"skip":         strconv.Itoa(skip),
				"limit":        strconv.Itoa(c.pageSize),
			}).
			SetResult(&page).
			Get(path)
		if err != nil {
			return "", fmt.Errorf("%w: request entries: %v", ErrFetchFailed, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return "", fmt.Errorf("%w: contentful responded %s", ErrFetchFailed, resp.Status())
		}

		for _, item := range page.Items {
			if value, ok := item.Fields[q.Field].(string); ok {
				text = append(text, value...)
			}
		}

		skip += len(page.Items)
		if len(page.Items) == 0 || skip >= page.Total {
			return string(text), nil
		}
	}
}
