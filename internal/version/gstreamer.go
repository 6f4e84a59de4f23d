//go:build gstreamer

package version

func init() {
	gstreamerEnabled = true
}
