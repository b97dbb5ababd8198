package scanners

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complynav/compliance-navigator/pkg/types"
)

func TestNormaliseGitleaks_Determinism(t *testing.T) {
	raw := []byte(`[
		{"RuleID": "aws-secret-key", "File": "config.env", "StartLine": 4, "Description": "AWS secret", "Tags": ["secret"]},
		{"RuleID": "generic-token", "File": "app.go", "StartLine": 10, "Description": "token", "Tags": []}
	]`)

	first := normaliseGitleaks(raw)
	second := normaliseGitleaks(raw)
	require.Equal(t, first, second)
	require.Len(t, first, 2)

	assert.Equal(t, types.SeverityCritical, first[0].Severity)
	assert.Equal(t, types.SeverityHigh, first[1].Severity)
	assert.NotEmpty(t, first[0].ID)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestNormaliseGitleaks_InvalidJSON(t *testing.T) {
	findings := normaliseGitleaks([]byte(`not json`))
	assert.Nil(t, findings)
}

func TestNormaliseNpmAudit(t *testing.T) {
	raw := []byte(`{
		"vulnerabilities": {
			"lodash": {
				"name": "lodash",
				"severity": "high",
				"via": [{"title": "Prototype Pollution", "severity": "high"}],
				"range": "<4.17.21",
				"fixAvailable": {"name": "lodash", "version": "4.17.21"}
			}
		}
	}`)

	findings := normaliseNpmAudit(raw)
	require.Len(t, findings, 1)
	assert.Equal(t, types.SeverityHigh, findings[0].Severity)
	assert.Contains(t, findings[0].Remediation, "4.17.21")
}

func TestNormaliseCheckov_ObjectAndArray(t *testing.T) {
	single := []byte(`{"results": {"failed_checks": [
		{"check_id": "CKV_AWS_19", "check_name": "S3 encryption", "resource": "aws_s3_bucket.x", "file_path": "main.tf", "severity": "HIGH"}
	]}}`)
	findings := normaliseCheckov(single)
	require.Len(t, findings, 1)
	assert.Equal(t, types.SeverityHigh, findings[0].Severity)

	arr := []byte(`[{"results": {"failed_checks": [
		{"check_id": "CKV_AWS_20", "check_name": "Public bucket", "resource": "aws_s3_bucket.y", "file_path": "main.tf"}
	]}}]`)
	findingsArr := normaliseCheckov(arr)
	require.Len(t, findingsArr, 1)
	assert.Equal(t, types.SeverityMedium, findingsArr[0].Severity) // missing severity defaults to medium
}

func TestNormaliseCheckov_EmptyIsNotParseFailure(t *testing.T) {
	findings := normaliseCheckov([]byte(`{"results": {"failed_checks": []}}`))
	assert.NotNil(t, findings)
	assert.Len(t, findings, 0)
}
