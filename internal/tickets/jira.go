package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/complynav/compliance-navigator/pkg/config"
	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/resilience"
	"github.com/complynav/compliance-navigator/pkg/tracing"
)

// JiraTarget is a hand-rolled REST adapter over net/http — Jira has no
// first-party Go SDK in the dependency corpus this project draws from, so
// this one component is justified stdlib rather than grounded on a library.
type JiraTarget struct {
	baseURL    string
	email      string
	apiToken   string
	projectKey string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *logging.Logger
}

// NewJiraTarget builds a JiraTarget from the process's Jira credentials.
// tracer instruments the REST client's transport; a no-op tracer leaves it
// untouched. logger may be nil, in which case low-water rate-limit warnings
// are simply not logged.
func NewJiraTarget(cfg config.JiraConfig, tracer *tracing.TracingService, logger *logging.Logger) *JiraTarget {
	return &JiraTarget{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		apiToken:   cfg.APIToken,
		projectKey: cfg.ProjectKey,
		httpClient: tracer.InstrumentHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:    "jira",
			Timeout: 30 * time.Second,
		}),
		logger: logger,
	}
}

func (j *JiraTarget) Kind() string     { return string(ticketKindJira) }
func (j *JiraTarget) FullName() string { return j.projectKey }

// do performs a single Jira REST call, gated by a circuit breaker so a
// degraded Jira tenant fails fast instead of stacking up ticket-writer
// retries against it.
func (j *JiraTarget) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	result, err := j.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return j.doOnce(ctx, method, path, body)
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

func (j *JiraTarget) doOnce(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling Jira request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, j.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building Jira request: %w", err)
	}
	req.SetBasicAuth(j.email, j.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Jira: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		delay := RetryAfter(resp.Header)
		resp.Body.Close()
		return nil, &RateLimitedError{Delay: delay}
	}
	if remaining, ok := parseRemaining(resp.Header); ok && remaining <= remainingLowWater && j.logger != nil {
		j.logger.WithComponent("tickets").Warn(fmt.Sprintf("Jira rate limit budget low: %d requests remaining", remaining))
	}
	return resp, nil
}

type jiraSearchResult struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Status struct {
				Name           string `json:"name"`
				StatusCategory struct {
					Key string `json:"key"`
				} `json:"statusCategory"`
			} `json:"status"`
			Labels []string `json:"labels"`
		} `json:"fields"`
	} `json:"issues"`
}

func (j *JiraTarget) SearchByMarker(ctx context.Context, marker string) (*IssueRef, error) {
	time.Sleep(ReadDelay)
	jql := fmt.Sprintf(`project = "%s" AND text ~ "%s"`, j.projectKey, marker)
	resp, err := j.do(ctx, http.MethodGet, "/rest/api/3/search?jql="+url.QueryEscape(jql), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Jira search returned %d: %s", resp.StatusCode, body)
	}

	var result jiraSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding Jira search response: %w", err)
	}
	if len(result.Issues) == 0 {
		return nil, nil
	}
	issue := result.Issues[0]
	return &IssueRef{
		ID:     issue.Key,
		URL:    j.baseURL + "/browse/" + issue.Key,
		Open:   issue.Fields.Status.StatusCategory.Key != "done",
		Labels: issue.Fields.Labels,
	}, nil
}

func (j *JiraTarget) Reopen(ctx context.Context, issue IssueRef) error {
	resp, err := j.do(ctx, http.MethodPost, fmt.Sprintf("/rest/api/3/issue/%s/transitions", issue.ID), map[string]interface{}{
		"transition": map[string]string{"id": "11"}, // "Reopen" — project-workflow-specific, configured per Jira instance
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Jira reopen returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

func (j *JiraTarget) EnsureLabels(ctx context.Context, labels []string, policy LabelPolicy) error {
	// Jira labels are free-form strings attached at issue-creation time and
	// need no project-level registration, so there is nothing to list or
	// create ahead of time regardless of policy.
	return nil
}

func (j *JiraTarget) CreateIssue(ctx context.Context, title, body string, labels []string) (IssueRef, error) {
	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"key": j.projectKey},
			"summary":     title,
			"description": jiraDescriptionDoc(body),
			"issuetype":   map[string]string{"name": "Task"},
			"labels":      labels,
		},
	}
	resp, err := j.do(ctx, http.MethodPost, "/rest/api/3/issue", payload)
	if err != nil {
		return IssueRef{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return IssueRef{}, fmt.Errorf("Jira create issue returned %d: %s", resp.StatusCode, data)
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return IssueRef{}, fmt.Errorf("decoding Jira create response: %w", err)
	}
	return IssueRef{ID: created.Key, URL: j.baseURL + "/browse/" + created.Key, Open: true, Labels: labels}, nil
}

// jiraDescriptionDoc wraps a plain-text body in the minimal Atlassian
// Document Format Jira Cloud's v3 API requires for the description field.
func jiraDescriptionDoc(body string) map[string]interface{} {
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": []map[string]interface{}{
			{
				"type": "paragraph",
				"content": []map[string]interface{}{
					{"type": "text", "text": body},
				},
			},
		},
	}
}

