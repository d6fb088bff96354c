package models

import (
	"encoding/json"
	"strings"
)

// ItemFile is one file entry of an archive.org item
type ItemFile struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Format string `json:"format"`
	Size   string `json:"size,omitempty"`
	MD5    string `json:"md5,omitempty"`
	SHA1   string `json:"sha1,omitempty"`
}

// ItemMetadata is the response of archive.org/metadata/<identifier>.
// Metadata values are heterogeneous (strings or lists), so they stay raw.
type ItemMetadata struct {
	Created         int64                      `json:"created,omitempty"`
	ItemSize        int64                      `json:"item_size,omitempty"`
	FilesCount      int                        `json:"files_count,omitempty"`
	Server          string                     `json:"server,omitempty"`
	Dir             string                     `json:"dir,omitempty"`
	Metadata        map[string]json.RawMessage `json:"metadata,omitempty"`
	Files           []ItemFile                 `json:"files,omitempty"`
	WorkableServers []string                   `json:"workable_servers,omitempty"`
}

// MetadataString returns a metadata field as display text.
// List values are joined with ", ".
func (m ItemMetadata) MetadataString(key string) string {
	raw, ok := m.Metadata[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ", ")
	}
	return string(raw)
}

// Exists reports whether the upstream returned an actual item.
// archive.org answers unknown identifiers with an empty object.
func (m ItemMetadata) Exists() bool {
	return len(m.Metadata) > 0
}

// ItemViews is one identifier's entry from the views/v1/short API
type ItemViews struct {
	AllTime   int  `json:"all_time"`
	Last30Day int  `json:"last_30day"`
	Last7Day  int  `json:"last_7day"`
	HaveData  bool `json:"have_data"`
}
