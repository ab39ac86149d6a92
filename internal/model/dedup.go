package model

import "time"

// DedupEntry remembers one accepted notification so re-deliveries can be
// recognized, either by exact fingerprint or by content within a time window.
type DedupEntry struct {
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	PackageName string    `json:"package_name"`
	ContentHash string    `json:"content_hash"`
	PostTime    int64     `json:"post_time"`
}
