// Package persist holds frame visitors that store or fingerprint frames
// received by a consumer session.
//
// Every visitor copies what it needs out of the view before returning;
// none of them keep a reference to mapped memory.
//
//	sink, err := persist.NewFileSink(persist.FileSinkConfig{Dir: "/var/lib/framelink", Compress: true})
//	if err != nil { ... }
//	defer sink.Close()
//	visit := persist.Chain(persist.NewChecksum().Visit, sink.Visit)
package persist
