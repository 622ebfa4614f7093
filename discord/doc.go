// Package discord holds the wire-level schema shared by the gateway and
// rest packages: opcodes, close codes, intents, and payload structs.
package discord
