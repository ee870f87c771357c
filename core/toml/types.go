// Package toml renders the SEP-1 discovery document (stellar.toml) for
// this anchor's currently configured assets and mounted modules.
//
// The Publisher is the anchor-server half of what the teacher SDK called
// "toml": a Resolver also exists in the teacher's package for the
// opposite direction (fetching another anchor's document), but this
// server never consumes another anchor's document, so only the
// render/parse halves are carried forward here (see DESIGN.md).
package toml

// OrgDoc is the discovery document's optional documentation block
// (spec.md §4.1 "the documentation block iff configured").
type OrgDoc struct {
	Name            string
	URL             string
	Description     string
	Logo            string
	PhysicalAddress string
	OfficialEmail   string
	SupportEmail    string
}

// MountSet records which of the three optional modules are mounted on
// the HTTP surface, driving which endpoint keys the discovery document
// carries (spec.md §4.1, P8).
type MountSet struct {
	Auth  bool
	SEP24 bool
	SEP6  bool
}

// Equal reports whether two mount sets carry the same mounted modules,
// used by Publisher to decide whether a mount-set change actually
// invalidates the render cache.
func (m MountSet) Equal(other MountSet) bool {
	return m.Auth == other.Auth && m.SEP24 == other.SEP24 && m.SEP6 == other.SEP6
}
