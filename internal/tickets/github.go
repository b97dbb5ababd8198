package tickets

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v56/github"
	"golang.org/x/oauth2"

	"github.com/complynav/compliance-navigator/pkg/config"
	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/tracing"
)

// GitHubTarget adapts a single owner/repo to the Target contract. It
// authenticates either with a personal access token or, when an App
// installation is configured, by minting a short-lived App JWT and
// exchanging it for an installation token on every call (installation
// tokens expire in an hour; adapters are otherwise stateless).
type GitHubTarget struct {
	owner, repo string
	client      *github.Client
	logger      *logging.Logger
}

// NewGitHubTarget builds a GitHubTarget from owner/repo and the process's
// GitHub credentials. The App path is preferred when configured. tracer
// instruments the underlying HTTP transport so every call the go-github
// client makes shows up as a client span; a no-op tracer leaves the
// transport untouched. logger may be nil, in which case low-water
// rate-limit warnings are simply not logged.
func NewGitHubTarget(ctx context.Context, owner, repo string, cfg config.GitHubConfig, tracer *tracing.TracingService, logger *logging.Logger) (*GitHubTarget, error) {
	httpClient, err := githubHTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	httpClient = tracer.InstrumentHTTPClient(httpClient)
	return &GitHubTarget{owner: owner, repo: repo, client: github.NewClient(httpClient), logger: logger}, nil
}

func githubHTTPClient(ctx context.Context, cfg config.GitHubConfig) (*http.Client, error) {
	if cfg.UsesApp() {
		token, err := mintAppInstallationToken(ctx, cfg)
		if err != nil {
			return nil, err
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		return oauth2.NewClient(ctx, ts), nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	return oauth2.NewClient(ctx, ts), nil
}

// mintAppInstallationToken signs a short-lived App JWT (RS256, per GitHub's
// App auth model) and exchanges it for an installation access token.
func mintAppInstallationToken(ctx context.Context, cfg config.GitHubConfig) (string, error) {
	key, err := parseRSAPrivateKey(cfg.AppPrivateKey)
	if err != nil {
		return "", fmt.Errorf("parsing GitHub App private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Add(-30 * time.Second).Unix(),
		"exp": now.Add(9 * time.Minute).Unix(),
		"iss": cfg.AppID,
	}
	appJWT, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing GitHub App JWT: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: appJWT, TokenType: "Bearer"})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	token, _, err := client.Apps.CreateInstallationToken(ctx, cfg.AppInstallationID, nil)
	if err != nil {
		return "", fmt.Errorf("exchanging App JWT for installation token: %w", err)
	}
	return token.GetToken(), nil
}

func parseRSAPrivateKey(pemBytes string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemBytes))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in GITHUB_APP_PRIVATE_KEY")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("GITHUB_APP_PRIVATE_KEY is not an RSA key")
	}
	return key, nil
}

func (g *GitHubTarget) Kind() string     { return string(ticketKindGitHub) }
func (g *GitHubTarget) FullName() string { return g.owner + "/" + g.repo }

func (g *GitHubTarget) SearchByMarker(ctx context.Context, marker string) (*IssueRef, error) {
	query := fmt.Sprintf("repo:%s/%s in:body %q", g.owner, g.repo, marker)
	time.Sleep(ReadDelay)
	result, resp, err := g.client.Search.Issues(ctx, query, nil)
	if err := g.rateLimitErr(resp, err); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("searching GitHub issues: %w", err)
	}
	if len(result.Issues) == 0 {
		return nil, nil
	}
	issue := result.Issues[0]
	return &IssueRef{
		ID:     strconv.Itoa(issue.GetNumber()),
		URL:    issue.GetHTMLURL(),
		Open:   issue.GetState() == "open",
		Labels: labelNames(issue.Labels),
	}, nil
}

func (g *GitHubTarget) Reopen(ctx context.Context, issue IssueRef) error {
	num, err := strconv.Atoi(issue.ID)
	if err != nil {
		return fmt.Errorf("parsing issue number %q: %w", issue.ID, err)
	}
	_, resp, err := g.client.Issues.Edit(ctx, g.owner, g.repo, num, &github.IssueRequest{State: github.String("open")})
	if err := g.rateLimitErr(resp, err); err != nil {
		return err
	}
	if err != nil {
		return fmt.Errorf("reopening issue #%d: %w", num, err)
	}
	return nil
}

func (g *GitHubTarget) EnsureLabels(ctx context.Context, labels []string, policy LabelPolicy) error {
	existing := make(map[string]bool)
	time.Sleep(ReadDelay)
	repoLabels, resp, err := g.client.Issues.ListLabels(ctx, g.owner, g.repo, nil)
	if err := g.rateLimitErr(resp, err); err != nil {
		return err
	}
	if err != nil {
		return fmt.Errorf("listing labels: %w", err)
	}
	for _, l := range repoLabels {
		existing[l.GetName()] = true
	}

	for _, want := range labels {
		if existing[want] {
			continue
		}
		if policy == LabelPolicyRequireExisting {
			if g.logger != nil {
				g.logger.WithComponent("tickets").Warn(fmt.Sprintf("label %q does not exist on %s/%s and was not created", want, g.owner, g.repo))
			}
			continue
		}
		_, _, err := g.client.Issues.CreateLabel(ctx, g.owner, g.repo, &github.Label{Name: github.String(want)})
		if err != nil && !strings.Contains(err.Error(), "already_exists") {
			return fmt.Errorf("creating label %q: %w", want, err)
		}
		time.Sleep(ReadDelay)
	}
	return nil
}

func (g *GitHubTarget) CreateIssue(ctx context.Context, title, body string, labels []string) (IssueRef, error) {
	issue, resp, err := g.client.Issues.Create(ctx, g.owner, g.repo, &github.IssueRequest{
		Title:  github.String(title),
		Body:   github.String(body),
		Labels: &labels,
	})
	if err := g.rateLimitErr(resp, err); err != nil {
		return IssueRef{}, err
	}
	if err != nil {
		return IssueRef{}, fmt.Errorf("creating GitHub issue: %w", err)
	}
	return IssueRef{
		ID:     strconv.Itoa(issue.GetNumber()),
		URL:    issue.GetHTMLURL(),
		Open:   true,
		Labels: labelNames(issue.Labels),
	}, nil
}

// rateLimitErr inspects resp for a 403/429 (returning a *RateLimitedError
// carrying the tracker's actual Retry-After delay) and, on every response,
// logs a warning once the remaining rate-limit budget drops to or below
// remainingLowWater.
func (g *GitHubTarget) rateLimitErr(resp *github.Response, err error) error {
	if resp == nil {
		return nil
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitedError{Delay: RetryAfter(resp.Response.Header)}
	}
	if resp.Rate.Remaining <= remainingLowWater && g.logger != nil {
		g.logger.WithComponent("tickets").Warn(fmt.Sprintf("GitHub rate limit budget low: %d requests remaining", resp.Rate.Remaining))
	}
	return nil
}

func labelNames(labels []*github.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	return names
}
