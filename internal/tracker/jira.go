package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/types"
)

const (
	jiraSummaryLimit     = 255
	defaultJiraIssueType = "Task"
)

var jiraPriorities = map[types.Priority]string{
	types.PriorityLow:      "Lowest",
	types.PriorityMedium:   "Medium",
	types.PriorityHigh:     "High",
	types.PriorityCritical: "Highest",
}

type JiraConfig struct {
	BaseURL    string
	Email      string
	APIToken   string
	ProjectKey string
	IssueType  string
}

// Jira creates issues through the Jira Cloud REST API v3.
type Jira struct {
	cfg  JiraConfig
	http httpDoer
	log  *logrus.Entry
}

func NewJira(cfg JiraConfig, log *logrus.Entry, opts ...Option) (*Jira, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" || cfg.Email == "" || cfg.APIToken == "" || cfg.ProjectKey == "" {
		return nil, fmt.Errorf("jira: %w", ErrNotConfigured)
	}
	if cfg.IssueType == "" {
		cfg.IssueType = defaultJiraIssueType
	}
	return &Jira{cfg: cfg, http: newDoer(opts), log: log.WithField("tracker", NameJira)}, nil
}

func (j *Jira) Name() string { return NameJira }

// Atlassian document format, the minimum Jira accepts for descriptions.
type adfNode struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

func adfDocument(paragraphs ...string) adfNode {
	doc := adfNode{Type: "doc", Version: 1}
	for _, p := range paragraphs {
		if p == "" {
			continue
		}
		doc.Content = append(doc.Content, adfNode{
			Type:    "paragraph",
			Content: []adfNode{{Type: "text", Text: p}},
		})
	}
	return doc
}

type jiraName struct {
	Name string `json:"name"`
}

type jiraFields struct {
	Project     map[string]string `json:"project"`
	Summary     string            `json:"summary"`
	Description adfNode           `json:"description"`
	IssueType   jiraName          `json:"issuetype"`
	Priority    jiraName          `json:"priority"`
	DueDate     string            `json:"duedate,omitempty"`
}

func (j *Jira) issueFields(task types.Task) jiraFields {
	priority, ok := jiraPriorities[task.Priority]
	if !ok {
		priority = jiraPriorities[types.PriorityMedium]
	}
	owner := ""
	if task.OwnerName != "" {
		owner = "Owner: " + task.OwnerName
	}
	f := jiraFields{
		Project:     map[string]string{"key": j.cfg.ProjectKey},
		Summary:     truncateRunes(task.Description, jiraSummaryLimit),
		Description: adfDocument(task.Description, owner),
		IssueType:   jiraName{Name: j.cfg.IssueType},
		Priority:    jiraName{Name: priority},
	}
	if task.Deadline != nil {
		f.DueDate = task.Deadline.UTC().Format("2006-01-02")
	}
	return f
}

// Push creates an issue and returns its key.
func (j *Jira) Push(ctx context.Context, task types.Task) (string, error) {
	body, err := json.Marshal(map[string]jiraFields{"fields": j.issueFields(task)})
	if err != nil {
		return "", fmt.Errorf("encode jira issue: %w", err)
	}
	data, err := j.http.do(ctx, http.MethodPost, j.cfg.BaseURL+"/rest/api/3/issue", body, func(r *http.Request) {
		r.SetBasicAuth(j.cfg.Email, j.cfg.APIToken)
	})
	if err != nil {
		return "", fmt.Errorf("jira create issue: %w", err)
	}
	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &created); err != nil || created.Key == "" {
		return "", fmt.Errorf("jira create issue: unexpected response %s", truncate(data, 200))
	}
	j.log.WithFields(logrus.Fields{"task_id": task.ID, "issue": created.Key}).Info("jira issue created")
	return created.Key, nil
}
