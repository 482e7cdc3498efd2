package hook

// Version information for the fieldhook runtime.
const (
	// Version is the current version of the runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information.
type Info struct {
	// Version is the runtime version string.
	Version string

	// FieldName is the reserved interceptor field name in effect.
	FieldName string

	// MethodName is the notification method name in effect.
	MethodName string
}

// GetInfo returns information about the runtime configuration in effect.
//
// Example:
//
//	info := hook.GetInfo()
//	fmt.Printf("fieldhook %s observing %q\n", info.Version, info.FieldName)
func GetInfo() Info {
	st := state()
	method := st.opts.MethodName
	if method == "" {
		method = MethodName
	}
	return Info{
		Version:    Version,
		FieldName:  st.pipeline.FieldName(),
		MethodName: method,
	}
}
