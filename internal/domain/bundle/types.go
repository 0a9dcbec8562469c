package bundle

// BaseID is the reserved identifier for the bundle embedded in the host.
const BaseID = "base"

// Version is one entry returned by a listing. Active, Previous, Base and
// HostVersion are annotated at read time and never stored.
type Version struct {
	ID             string `json:"id"`
	Version        string `json:"version"`
	Description    string `json:"description"`
	ReleaseDate    string `json:"releaseDate"`
	MinHostVersion string `json:"minHostVersion,omitempty"`
	HostVersion    string `json:"hostVersion"`
	Good           bool   `json:"good"`
	Active         bool   `json:"active"`
	Previous       bool   `json:"previous"`
	Base           bool   `json:"base"`
	Size           int64  `json:"size"`
}

// Metadata is the record persisted inside each version directory.
type Metadata struct {
	Version        string `json:"version"`
	Description    string `json:"description"`
	ReleaseDate    string `json:"releaseDate"`
	MinHostVersion string `json:"minHostVersion,omitempty"`
	Good           bool   `json:"good"`
}

// Config is the persisted activation state.
type Config struct {
	ActiveVersion         string `json:"activeVersion"`
	PreviousActiveVersion string `json:"previousActiveVersion,omitempty"`
}

// DefaultConfig returns the state used when no config file exists or it
// cannot be parsed.
func DefaultConfig() Config {
	return Config{ActiveVersion: BaseID}
}

// HostInfo describes the embedded base bundle and the running host.
type HostInfo struct {
	BaseVersion string
	HostVersion string
	ReleaseDate string
}

// Base synthesizes the listing entry for the embedded bundle.
func (h HostInfo) Base() Version {
	return Version{
		ID:          BaseID,
		Version:     h.BaseVersion,
		Description: BaseID,
		ReleaseDate: h.ReleaseDate,
		HostVersion: h.HostVersion,
		Good:        true,
		Base:        true,
	}
}

// Payload is a bundle save request as submitted by the host.
type Payload struct {
	Version        string      `json:"version"`
	Description    string      `json:"description"`
	ReleaseDate    string      `json:"releaseDate"`
	MinHostVersion string      `json:"minHostVersion,omitempty"`
	Files          []*Node     `json:"files"`
	Signatures     []Signature `json:"signatures,omitempty"`
}

// Metadata strips the file tree and signatures, keeping what gets persisted.
// The stored record always starts unconfirmed.
func (p *Payload) Metadata(version string) Metadata {
	return Metadata{
		Version:        version,
		Description:    p.Description,
		ReleaseDate:    p.ReleaseDate,
		MinHostVersion: p.MinHostVersion,
	}
}

// Node is a directory (Files set) or a file (Content set) in a payload tree.
// Content is base64(gzip(bytes)).
type Node struct {
	Name    string  `json:"name"`
	Files   []*Node `json:"files"`
	Content string  `json:"content,omitempty"`
}

// IsDir reports whether the node describes a directory.
func (n *Node) IsDir() bool {
	return n.Files != nil
}

// Signature is carried by payloads but never persisted.
type Signature struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// Status is the activation state a host needs to drive its rollback policy.
type Status struct {
	ActiveVersion         string `json:"activeVersion"`
	PreviousActiveVersion string `json:"previousActiveVersion,omitempty"`
	Confirmed             bool   `json:"confirmed"`
}
