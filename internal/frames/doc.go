// Package frames implements the per-frame exchange between a producer and a
// consumer: one descriptor in, one mapped read-only view out.
//
// A Channel owns one connected socket and the geometry both ends agreed on.
// Publish and Consume are synchronous; each fully completes, including the
// close of every descriptor it touched, before returning.
//
// Producer side:
//
//	ch, _ := frames.NewChannel(conn, geometry)
//	if err := ch.Offer(); err != nil { ... } // optional geometry handshake
//	err := ch.Publish(fd)                    // fd stays owned by the caller
//
// Consumer side:
//
//	ch, _ := frames.NewChannel(conn, geometry)
//	if err := ch.Accept(); err != nil { ... }
//	err := ch.Consume(func(v frames.View) error {
//		for y := 0; y < v.Rows(); y++ {
//			_ = v.Row(y)
//		}
//		return nil
//	})
package frames
