package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/types"
)

const (
	DefaultTrelloBaseURL = "https://api.trello.com/1"
	trelloNameLimit      = 16384
)

type TrelloConfig struct {
	BaseURL  string
	APIKey   string
	APIToken string
	BoardID  string
	// ListID receives new cards. Empty means the board's first list.
	ListID string
}

// Trello creates cards through the Trello REST API.
type Trello struct {
	cfg  TrelloConfig
	http httpDoer
	log  *logrus.Entry

	mu     sync.Mutex
	listID string
}

func NewTrello(cfg TrelloConfig, log *logrus.Entry, opts ...Option) (*Trello, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTrelloBaseURL
	}
	if cfg.APIKey == "" || cfg.APIToken == "" || (cfg.ListID == "" && cfg.BoardID == "") {
		return nil, fmt.Errorf("trello: %w", ErrNotConfigured)
	}
	return &Trello{cfg: cfg, http: newDoer(opts), log: log.WithField("tracker", NameTrello), listID: cfg.ListID}, nil
}

func (t *Trello) Name() string { return NameTrello }

func (t *Trello) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", t.cfg.APIKey)
	params.Set("token", t.cfg.APIToken)
	return t.cfg.BaseURL + path + "?" + params.Encode()
}

// targetList resolves and caches the list new cards go to.
func (t *Trello) targetList(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listID != "" {
		return t.listID, nil
	}
	data, err := t.http.do(ctx, http.MethodGet, t.endpoint("/boards/"+url.PathEscape(t.cfg.BoardID)+"/lists", nil), nil, nil)
	if err != nil {
		return "", fmt.Errorf("trello board lists: %w", err)
	}
	var lists []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &lists); err != nil {
		return "", fmt.Errorf("trello board lists: %w", err)
	}
	if len(lists) == 0 || lists[0].ID == "" {
		return "", fmt.Errorf("trello board %s has no lists", t.cfg.BoardID)
	}
	t.listID = lists[0].ID
	return t.listID, nil
}

// Push creates a card and returns its id.
func (t *Trello) Push(ctx context.Context, task types.Task) (string, error) {
	listID, err := t.targetList(ctx)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("idList", listID)
	params.Set("name", truncateRunes(task.Description, trelloNameLimit))
	desc := task.Description
	if task.OwnerName != "" {
		desc += "\n\nOwner: " + task.OwnerName
	}
	params.Set("desc", desc)
	if task.Deadline != nil {
		params.Set("due", task.Deadline.UTC().Format(time.RFC3339))
	}

	data, err := t.http.do(ctx, http.MethodPost, t.endpoint("/cards", params), nil, nil)
	if err != nil {
		return "", fmt.Errorf("trello create card: %w", err)
	}
	var card struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &card); err != nil || card.ID == "" {
		return "", fmt.Errorf("trello create card: unexpected response %s", truncate(data, 200))
	}
	t.log.WithFields(logrus.Fields{"task_id": task.ID, "card": card.ID}).Info("trello card created")
	return card.ID, nil
}
