// Package discovery finds Panasonic Viera TVs on the local network.
//
// A discovery pass multicasts one SSDP M-SEARCH for the Viera remote
// controller service, collects replies until the socket stays quiet for the
// receive timeout, and turns each Panasonic reply into a remote.Device by
// fetching the service description named in its LOCATION header.
//
// # Usage Example
//
//	devices, err := discovery.Discover(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, d := range devices {
//	    fmt.Println(d)
//	}
//
// A TV whose address is already known can be resolved without SSDP:
//
//	tv, err := discovery.Resolve(ctx, discovery.DefaultLocation("192.168.1.20"))
//
// # Network Requirements
//
//   - The discovery socket binds UDP port 1900 with SO_REUSEADDR
//   - TVs must be on the same network segment as the host
//   - Firewalls must allow inbound UDP replies on port 1900
//
// Discovery blocks for at least one receive timeout (1s by default).
package discovery
