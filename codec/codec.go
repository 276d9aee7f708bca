// Package codec centralizes artifact payload encoding.
//
// Codec selection is a breaking-change boundary: persisted artifacts store
// the codec name in their header, and bytes written by one codec are only
// guaranteed to decode with the same codec.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its stable name.
//
// Loading an artifact resolves the codec from the name stored in the
// artifact header, so renaming a codec breaks old artifacts.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
