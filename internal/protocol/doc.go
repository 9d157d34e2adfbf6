// Package protocol implements the comma-delimited frame grammar shared by the
// serial link and the MQTT side of the bridge.
//
// A frame body is a protocol code followed by comma-separated fields:
//
//	<code>,<field>,<field>,...
//
// Device and module IDs are fixed-length tokens. All numbers are
// non-negative decimal. Bodies that list a variable number of tokens are
// split with ChunkList so no single MQTT payload exceeds MaxPayloadLen.
package protocol
