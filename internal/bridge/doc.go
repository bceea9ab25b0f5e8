// Package bridge connects Viera TVs to an MQTT broker.
//
// Messages published to <prefix>/<device>/command are parsed into a
// command name and optional number and sent to the named device. Each
// device has its own worker, so commands to one TV keep their order and
// spacing while other TVs are served in parallel. The outcome of every
// message is published as JSON to <prefix>/<device>/result:
//
//	mosquitto_pub -t viera/living-room/command -m "num 23"
//	mosquitto_sub -t viera/living-room/result
//	{"command":"num","argument":23,"ok":true}
package bridge
