// Package hook notifies interceptors about field mutations of the objects
// they are attached to.
//
// An object takes part by carrying a reference to its interceptor in a
// field named instanceInterceptor (or by implementing InterceptorProvider):
//
//	type Box struct {
//		count               int
//		instanceInterceptor hook.Interceptor
//	}
//
// The interceptor implements Interceptor:
//
//	type Recorder struct{}
//
//	func (Recorder) SetField(name string, value any) {
//		fmt.Println(name, "=", value)
//	}
//
// # Direct writes
//
// The fieldhook tool rewrites methods of such types so that every field
// assignment is followed by a call into this package:
//
//	// Original code:
//	func (b *Box) Inc() {
//		b.count++
//	}
//
//	// Rewritten code:
//	func (b *Box) Inc() {
//		b.count++
//		fieldhook.Notify(b, "count", b.count)
//	}
//
// # Reflective writes
//
// Code that mutates objects generically uses SetField or FieldOf instead of
// reflect.Value.Set, so those writes are observed too:
//
//	err := hook.SetField(box, "count", 7) // Recorder prints: count = 7
//
// # Guarantees
//
//   - Writes to the instanceInterceptor field itself are never reported.
//   - A write is reported at most once, after it happened. Failed reflective
//     writes are not reported.
//   - Writes performed by an interceptor while it is being notified are not
//     reported again, on any goroutine-local call path.
//   - Interceptor panics are recovered and counted; they never reach the
//     code performing the write. Each one is logged as a warning to stderr,
//     or to Options.LogOutput.
//
// # Finding the notification method
//
// Interceptors are resolved in this order: ContextInterceptor, Interceptor,
// then any exported method named SetField whose parameters are a string and
// a non-basic type (for example SetField(name string, v fmt.Stringer)).
// Objects whose interceptor has no such method are silently skipped.
//
// # Environment
//
//	FIELDHOOK_FIELD   reserved field name (default instanceInterceptor)
//	FIELDHOOK_METHOD  notification method name (default SetField)
//	FIELDHOOK_DEBUG   log every mutation event when true
package hook
