//go:build !protogen

package calendar

// NewGRPCSink is only available in protogen builds (requires the generated
// calendar collaborator stubs). Non-protogen builds run with NoopSink.
func NewGRPCSink(_ string) (Sink, error) {
	return nil, nil
}
