// Package auditchain implements the hash-chained, append-only audit log
// (C3): every entry's hash covers the previous entry's hash, so any
// in-place modification is detectable by recomputation from genesis.
package auditchain

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/complynav/compliance-navigator/pkg/errors"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// Genesis is the literal prevHash value for an audit log's first entry.
const Genesis = "GENESIS"

// payload is the pre-hash shape of one audit entry. Field order here is
// fixed and is the canonical JSON order this package commits to — the spec
// permits either sorted keys or insertion order as long as one is chosen and
// documented; this package uses struct (insertion) order throughout.
type payload struct {
	TS       string      `json:"ts"`
	Kind     string      `json:"kind"`
	Tool     string      `json:"tool,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	PrevHash string      `json:"prevHash"`
}

type entryOnDisk struct {
	payload
	Hash string `json:"hash"`
}

// Chain is a single process-wide, mutex-guarded writer for one audit log
// file. Appends are serialised: only one may be in flight at a time.
type Chain struct {
	path string
	mu   sync.Mutex
}

// New returns a Chain bound to path. The file is created (with parent
// directories) on first append if it does not already exist.
func New(path string) *Chain {
	return &Chain{path: path}
}

// Path returns the log file path this chain writes to.
func (c *Chain) Path() string {
	return c.path
}

func canonicalPayloadBytes(p payload) ([]byte, error) {
	// encoding/json preserves struct field order, which is what we commit
	// to as "canonical" per the documented ordering choice above.
	return json.Marshal(p)
}

func hashPayload(p payload) (string, error) {
	b, err := canonicalPayloadBytes(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// lastHash reads the file's last line and returns its hash, or Genesis if
// the file is empty or absent.
func (c *Chain) lastHash() (string, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Genesis, nil
		}
		return "", err
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if last == "" {
		return Genesis, nil
	}

	var e entryOnDisk
	if err := json.Unmarshal([]byte(last), &e); err != nil {
		return "", err
	}
	return e.Hash, nil
}

// Append writes one audit entry. ts is supplied by the caller (handlers
// stamp each entry with its own clock read via Now) so Append never reads
// the clock itself.
func (c *Chain) Append(tsRFC3339Nano, kind, tool string, data interface{}) (types.AuditEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return types.AuditEvent{}, fmt.Errorf("create audit log directory: %w", err)
	}

	prevHash, err := c.lastHash()
	if err != nil {
		return types.AuditEvent{}, fmt.Errorf("read previous audit entry: %w", err)
	}

	p := payload{
		TS:       tsRFC3339Nano,
		Kind:     kind,
		Tool:     tool,
		Data:     data,
		PrevHash: prevHash,
	}
	hash, err := hashPayload(p)
	if err != nil {
		return types.AuditEvent{}, fmt.Errorf("hash audit entry: %w", err)
	}

	entry := entryOnDisk{payload: p, Hash: hash}
	line, err := json.Marshal(entry)
	if err != nil {
		return types.AuditEvent{}, fmt.Errorf("serialize audit entry: %w", err)
	}

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return types.AuditEvent{}, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return types.AuditEvent{}, fmt.Errorf("write audit entry: %w", err)
	}

	ts, err := parseRFC3339Nano(tsRFC3339Nano)
	if err != nil {
		return types.AuditEvent{}, fmt.Errorf("parse audit entry timestamp: %w", err)
	}

	return types.AuditEvent{
		TS:       ts,
		Kind:     types.AuditEventKind(kind),
		Tool:     tool,
		Data:     data,
		PrevHash: prevHash,
		Hash:     hash,
	}, nil
}

// Verify walks the log from line 1, checking linkage and recomputing each
// entry's hash. It never returns an error on successful I/O — a missing
// file is reported as valid with zero entries, and the first mismatch is
// reported via the returned VerifyResult rather than an error return.
func Verify(logPath string) (types.VerifyResult, error) {
	result := types.VerifyResult{Valid: true, LogPath: logPath}

	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	prevHash := Genesis
	var firstTS, lastTS string

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var e entryOnDisk
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			result.Valid = false
			result.BrokenAt = lineNo
			result.BrokenReason = "invalid JSON"
			break
		}

		if e.PrevHash != prevHash {
			result.Valid = false
			result.BrokenAt = lineNo
			result.BrokenReason = "prevHash linkage mismatch"
			break
		}

		recomputed, err := hashPayload(e.payload)
		if err != nil {
			return result, err
		}
		if recomputed != e.Hash {
			result.Valid = false
			result.BrokenAt = lineNo
			result.BrokenReason = "hash mismatch"
			break
		}

		if lineNo == 1 {
			firstTS = e.TS
		}
		lastTS = e.TS
		prevHash = e.Hash
		result.TotalEntries = lineNo
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}

	if firstTS != "" {
		if t, err := parseRFC3339Nano(firstTS); err == nil {
			result.FirstEntryTS = &t
		}
	}
	if lastTS != "" {
		if t, err := parseRFC3339Nano(lastTS); err == nil {
			result.LastEntryTS = &t
		}
	}

	return result, nil
}

// AsAppError converts a failed VerifyResult into an AppError carrying the
// broken line number, for handlers that need to return IntegrityBroken.
func AsAppError(result types.VerifyResult) error {
	if result.Valid {
		return nil
	}
	return apperrors.NewIntegrityBrokenError(result.BrokenAt, result.BrokenReason)
}
