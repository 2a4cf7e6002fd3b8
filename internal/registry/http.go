package registry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"takjil/internal/auth"
	"takjil/internal/venues"
)

// TokenSource supplies the bearer credential for collection requests.
type TokenSource interface {
	Token() string
}

// HTTPClient speaks the collection contract over HTTP:
//
//	GET   {base}/v1/collections/{name}/stream   server-sent events, one full snapshot per event
//	POST  {base}/v1/collections/{name}          -> {"id": "..."}
//	PATCH {base}/v1/collections/{name}/{id}
type HTTPClient struct {
	baseURL    string
	collection string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewHTTPClient(baseURL, collection string, tokens TokenSource, client *http.Client, logger *zap.SugaredLogger) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		collection: collection,
		tokens:     tokens,
		httpClient: client,
		logger:     logger,
	}
}

func (c *HTTPClient) collectionURL() string {
	return c.baseURL + "/v1/collections/" + url.PathEscape(c.collection)
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

func (c *HTTPClient) Subscribe(onSnapshot func([]venues.Record), onError func(error)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.collectionURL()+"/stream", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	sub := newSubscription(onSnapshot, onError, cancel)
	go c.stream(ctx, req, sub)
	return sub, nil
}

func (c *HTTPClient) stream(ctx context.Context, req *http.Request, sub *Subscription) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			sub.fail(fmt.Errorf("%w: open stream: %v", ErrNetwork, err))
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		sub.fail(statusError(resp, "open stream"))
		return
	}

	reader := bufio.NewReader(resp.Body)
	var data bytes.Buffer
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = errors.New("stream closed by server")
			}
			sub.fail(fmt.Errorf("%w: %v", ErrNetwork, err))
			return
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			records, err := c.decodeSnapshot(data.Bytes())
			data.Reset()
			if err != nil {
				sub.fail(err)
				return
			}
			if !sub.deliver(records) {
				return
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// comments, event names and retry hints carry nothing for us
		}
	}
}

// decodeSnapshot turns one event payload into records. Documents that fail
// to decode are logged and left out of the snapshot.
func (c *HTTPClient) decodeSnapshot(payload []byte) ([]venues.Record, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: malformed snapshot payload", ErrNetwork)
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: snapshot payload is not an array", ErrNetwork)
	}

	items := doc.Array()
	records := make([]venues.Record, 0, len(items))
	for _, item := range items {
		r, err := venues.Decode("", []byte(item.Raw))
		if err != nil {
			c.logger.Warnw("quarantined venue document", "id", item.Get("id").String(), "error", err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (c *HTTPClient) Create(ctx context.Context, r venues.Record) (string, error) {
	r.ID = ""
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.collectionURL(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: create: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError(resp, "create")
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: create: %v", ErrNetwork, err)
	}
	id := gjson.GetBytes(raw, "id")
	if id.Type != gjson.String || id.Str == "" {
		return "", fmt.Errorf("%w: create response without id: %s", ErrNetwork, string(raw))
	}
	return id.Str, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string, patch venues.Patch) error {
	body, err := json.Marshal(patch.Fields())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.collectionURL()+"/"+url.PathEscape(id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrNetwork, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(resp, "update "+id)
	}
	return nil
}

func statusError(resp *http.Response, op string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	msg := strings.TrimSpace(string(raw))

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s: %s", ErrValidation, op, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s: http=%d", auth.ErrAuth, op, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s: http=%d body=%s", ErrNetwork, op, resp.StatusCode, msg)
}
