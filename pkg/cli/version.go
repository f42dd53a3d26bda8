package cli

import (
	"fmt"
	"io"
	"reflect"
)

// PrintVersion writes the name, version and build of the binary to w.
func PrintVersion(w io.Writer, name string, version Version, buildID BuildID) {
	if w == nil {
		return
	}
	if reflect.ValueOf(w).Kind() == reflect.Pointer && reflect.ValueOf(w).IsNil() {
		return
	}

	fmt.Fprintf(w, "%s %s\n", name, version)
	if buildID != "" {
		fmt.Fprintf(w, "build: %s\n", buildID)
	}
}
