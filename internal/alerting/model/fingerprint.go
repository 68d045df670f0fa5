package model

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

type fingerprintInput struct {
	Labels   map[string]string `json:"labels"`
	RuleID   string            `json:"rule_id"`
	Severity Severity          `json:"severity"`
}

// Fingerprint returns a deterministic identity hash over rule id, labels and
// severity. encoding/json marshals map keys in sorted order, so label
// insertion order never affects the result. MD5 is intentional: the hash is
// a deduplication key, not a security boundary.
func Fingerprint(ruleID string, labels map[string]string, severity Severity) string {
	if labels == nil {
		labels = map[string]string{}
	}
	data, _ := json.Marshal(fingerprintInput{Labels: labels, RuleID: ruleID, Severity: severity})
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
