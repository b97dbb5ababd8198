package tickets

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// httpsRemote, sshRemote, and gitRemote cover the three origin URL forms
// spec.md 4.10 names: HTTPS, SSH, and git:// .
var (
	httpsRemote = regexp.MustCompile(`^https://(?:[^@/]+@)?github\.com/([^/]+)/([^/.]+)(?:\.git)?$`)
	sshRemote   = regexp.MustCompile(`^git@github\.com:([^/]+)/([^/.]+)(?:\.git)?$`)
	gitRemote   = regexp.MustCompile(`^git://github\.com/([^/]+)/([^/.]+)(?:\.git)?$`)
)

// ResolveGitHubOwnerRepo resolves "owner/repo" from an explicit targetRepo
// argument, or, when absent, by parsing the nearest enclosing .git/config's
// [remote "origin"] url field.
func ResolveGitHubOwnerRepo(repoPath, targetRepo string) (owner, repo string, err error) {
	if targetRepo != "" {
		parts := strings.SplitN(targetRepo, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("targetRepo %q is not in owner/repo form", targetRepo)
		}
		return parts[0], parts[1], nil
	}

	configPath, err := findGitConfig(repoPath)
	if err != nil {
		return "", "", err
	}
	url, err := originURL(configPath)
	if err != nil {
		return "", "", err
	}
	return parseGitHubURL(url)
}

func findGitConfig(start string) (string, error) {
	dir := start
	for {
		candidate := filepath.Join(dir, ".git", "config")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no .git/config found above %s", start)
		}
		dir = parent
	}
}

func originURL(configPath string) (string, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", configPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	inOrigin := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if inOrigin && strings.HasPrefix(line, "url") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1]), nil
			}
		}
	}
	return "", fmt.Errorf("no [remote \"origin\"] url found in %s", configPath)
}

func parseGitHubURL(u string) (owner, repo string, err error) {
	for _, re := range []*regexp.Regexp{httpsRemote, sshRemote, gitRemote} {
		if m := re.FindStringSubmatch(u); m != nil {
			return m[1], m[2], nil
		}
	}
	return "", "", fmt.Errorf("origin url %q is not a recognised GitHub remote form", u)
}
