// Package remote sends remote-control key presses to Panasonic Viera
// televisions.
//
// A Device is one television's control endpoint: the host it was discovered
// on, the absolute control URL, and the SOAP service type. Devices usually
// come from package discovery, but can be built directly when the three
// parameters are known:
//
//	tv := remote.NewDevice("192.168.1.20:55000",
//	    "http://192.168.1.20:55000/nrc/control_0",
//	    "urn:panasonic-com:service:p00NetworkControl:1")
//
//	if _, err := tv.Send(ctx, "mute"); err != nil {
//	    log.Fatal(err)
//	}
//	tv.Send(ctx, "num", 23) // NRC_D2-ONOFF, then NRC_D3-ONOFF
//
// # Spacing
//
// TVs drop key presses that arrive faster than they can process them. Every
// transmission through a Device waits until MinInterval (default 500ms) has
// passed since the previous one, failed transmissions included. Sends from
// several goroutines are serialized by the Device.
//
// # Errors
//
// Failures are returned as *Error with a Kind; use the Is* predicates or
// errors.Is with ErrUnknownCommand, ErrInvalidArgument and
// ErrNoServiceDescription.
package remote
