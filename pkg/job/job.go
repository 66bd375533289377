// Package job holds the request and result types exchanged between the
// scraping side and the download coordinator.
package job

import "fmt"

// ConflictPolicy says what the download host does when the target file exists
type ConflictPolicy string

const (
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictUniquify  ConflictPolicy = "uniquify"
	ConflictFail      ConflictPolicy = "fail"
)

// ParseConflictPolicy validates s; an empty string selects overwrite
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(s); p {
	case ConflictOverwrite, ConflictUniquify, ConflictFail:
		return p, nil
	case "":
		return ConflictOverwrite, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", s)
	}
}

// Request is one download task. It is not modified after it is sent.
// ConflictPolicy is carried as received; the coordinator resolves an empty or
// unknown value to overwrite.
type Request struct {
	Filename       string         `json:"filename"`
	ConflictPolicy ConflictPolicy `json:"conflictAction"`
	Images         []string       `json:"images"`
	SourceURI      string         `json:"uri"`
	Referer        string         `json:"referer,omitempty"`
}

// Status is the terminal status of a job
type Status string

const (
	StatusComplete        Status = "complete"
	StatusInterrupted     Status = "interrupted"
	StatusInvalidFilename Status = "invalidFilename"
	// StatusFailed means the archive could not be assembled
	StatusFailed Status = "failed"
)

// Result is the single terminal answer to a Request
type Result struct {
	Status   Status `json:"status"`
	Filename string `json:"filename"`
	Error    string `json:"error,omitempty"`
}

// OK reports whether the archive reached the download target
func (r Result) OK() bool {
	return r.Status == StatusComplete
}

// Warning reports one image that could not be fetched
type Warning struct {
	Brief string `json:"brief"`
	Src   string `json:"src"`
}
